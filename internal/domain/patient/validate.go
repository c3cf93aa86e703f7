package patient

import (
	"strings"
)

// ValidationError lists every required field left empty.
type ValidationError struct {
	Missing []string `json:"missing"`
}

func (e *ValidationError) Error() string {
	return "please fill in the following required fields: " + strings.Join(e.Missing, ", ")
}

type requiredField struct {
	name  string
	value func(*Patient) string
}

var requiredFields = []requiredField{
	{"Full Name", func(p *Patient) string { return p.FullName }},
	{"Gender", func(p *Patient) string { return p.Gender }},
	{"PHN", func(p *Patient) string { return p.PHN }},
	{"Address Line 1", func(p *Patient) string { return p.AddressLine1 }},
	{"District", func(p *Patient) string { return p.District }},
	{"Province", func(p *Patient) string { return p.Province }},
	{"Contact Numbers", func(p *Patient) string { return p.ContactNumbers }},
}

// Validate reports all missing required fields at once, in form order.
func Validate(p *Patient) error {
	var missing []string
	for _, f := range requiredFields {
		if strings.TrimSpace(f.value(p)) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
