package patient

// Options are the choice lists offered by the registration form.
type Options struct {
	Titles            []string `json:"titles"`
	Genders           []string `json:"genders"`
	Districts         []string `json:"districts"`
	Provinces         []string `json:"provinces"`
	BloodTypes        []string `json:"blood_types"`
	MaritalStatuses   []string `json:"marital_statuses"`
	PrimaryPhysicians []string `json:"primary_physicians"`
	SearchFields      []string `json:"search_fields"`
}

var (
	Titles = []string{"Mr.", "Mrs.", "Miss", "Master", "Baby", "Ven.", "Dr.", "Other"}

	Genders = []string{"Male", "Female", "Prefer not to say"}

	Districts = []string{
		"Kegalle", "Gampaha", "Kalutara", "Kandy", "Matale", "Nuwara Eliya",
		"Galle", "Matara", "Hambantota", "Jaffna", "Kilinochchi", "Mannar",
		"Vavuniya", "Mullaitivu", "Batticaloa", "Ampara", "Trincomalee",
		"Kurunegala", "Puttalam", "Anuradhapura", "Polonnaruwa", "Badulla",
		"Monaragala", "Ratnapura", "Colombo",
	}

	Provinces = []string{
		"Sabaragamuwa", "Central", "Southern", "Northern", "Eastern",
		"North Western", "North Central", "Uva", "Western",
	}

	BloodTypes = []string{"Unknown", "A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

	MaritalStatuses = []string{"Single", "Married", "Divorced", "Widowed"}

	PrimaryPhysicians = []string{
		"", "Dr. S. Perera", "Dr. R. Fernando", "Dr. M. Silva",
		"Dr. J. Rajapaksa", "Dr. L. Dias",
	}
)

// AllOptions returns copies of every choice list.
func AllOptions() Options {
	return Options{
		Titles:            clone(Titles),
		Genders:           clone(Genders),
		Districts:         clone(Districts),
		Provinces:         clone(Provinces),
		BloodTypes:        clone(BloodTypes),
		MaritalStatuses:   clone(MaritalStatuses),
		PrimaryPhysicians: clone(PrimaryPhysicians),
		SearchFields:      []string{string(ByPHN), string(ByNIC), string(ByName)},
	}
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
