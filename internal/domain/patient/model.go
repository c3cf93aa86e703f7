package patient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ehr/registry/internal/label"
)

const dateLayout = "2006-01-02"

// Date is a calendar date carried as YYYY-MM-DD on the wire.
type Date struct {
	time.Time
}

func NewDate(t time.Time) *Date {
	y, m, d := t.Date()
	return &Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("birthday must be YYYY-MM-DD: %w", err)
	}
	d.Time = t
	return nil
}

// Patient maps to the patients table. The avatar bytes are loaded separately.
type Patient struct {
	ID                int64     `db:"id" json:"id"`
	Title             string    `db:"title" json:"title"`
	FullName          string    `db:"full_name" json:"full_name"`
	OtherNames        string    `db:"other_names" json:"other_names"`
	Gender            string    `db:"gender" json:"gender"`
	AddressLine1      string    `db:"address_line1" json:"address_line1"`
	AddressLine2      string    `db:"address_line2" json:"address_line2"`
	District          string    `db:"district" json:"district"`
	Province          string    `db:"province" json:"province"`
	MHDivision        string    `db:"mh_division" json:"mh_division"`
	Birthday          *Date     `db:"birthday" json:"birthday,omitempty"`
	Age               string    `db:"age" json:"age"`
	NIC               string    `db:"nic" json:"nic"`
	PHN               string    `db:"phn" json:"phn"`
	MaritalStatus     string    `db:"marital_status" json:"marital_status"`
	Guardian          string    `db:"guardian" json:"guardian"`
	ContactNumbers    string    `db:"contact_numbers" json:"contact_numbers"`
	Occupation        string    `db:"occupation" json:"occupation"`
	BloodType         string    `db:"blood_type" json:"blood_type"`
	KnownAllergies    string    `db:"known_allergies" json:"known_allergies"`
	ChronicConditions string    `db:"chronic_conditions" json:"chronic_conditions"`
	PrimaryPhysician  string    `db:"primary_physician" json:"primary_physician"`
	HasAvatar         bool      `db:"-" json:"has_avatar"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Normalize trims surrounding whitespace from every free-text field.
func (p *Patient) Normalize() {
	for _, f := range []*string{
		&p.Title, &p.FullName, &p.OtherNames, &p.Gender,
		&p.AddressLine1, &p.AddressLine2, &p.District, &p.Province, &p.MHDivision,
		&p.Age, &p.NIC, &p.PHN, &p.MaritalStatus, &p.Guardian, &p.ContactNumbers,
		&p.Occupation, &p.BloodType, &p.KnownAllergies, &p.ChronicConditions, &p.PrimaryPhysician,
	} {
		*f = strings.TrimSpace(*f)
	}
}

// LabelRecord returns the fields printed on the registration label.
func (p *Patient) LabelRecord() label.Record {
	return label.Record{
		label.FieldTitle:    p.Title,
		label.FieldFullName: p.FullName,
		label.FieldAddress1: p.AddressLine1,
		label.FieldContact:  p.ContactNumbers,
		label.FieldPHN:      p.PHN,
	}
}
