package patient

import (
	"time"

	"github.com/ehr/registry/internal/phn"
)

// Draft is an unsaved registration form. It is a plain value owned by the
// caller; nothing about it is kept between requests.
type Draft struct {
	Patient
}

// NewDraft returns a form filled with the registration desk defaults.
func NewDraft(now time.Time) Draft {
	return Draft{Patient: Patient{
		Title:            "Mr.",
		Gender:           "Male",
		District:         "Kegalle",
		Province:         "Sabaragamuwa",
		Birthday:         NewDate(now),
		MaritalStatus:    "Single",
		Occupation:       "Student",
		BloodType:        "A+",
		PrimaryPhysician: "Dr. S. Perera",
	}}
}

// Reset discards every entered value and returns the defaults for now.
func (d Draft) Reset(now time.Time) Draft {
	return NewDraft(now)
}

// GeneratePHN fills the PHN from the draft's NIC.
func (d Draft) GeneratePHN(gen *phn.Generator) Draft {
	d.PHN = gen.Generate(d.NIC)
	return d
}
