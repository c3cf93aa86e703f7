package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ehr/registry/internal/platform/db"
)

type patientRepoPG struct {
	db *db.Connector
}

// NewPatientRepo returns a repository that opens a connection per call.
func NewPatientRepo(connector *db.Connector) Repository {
	return &patientRepoPG{db: connector}
}

const patientCols = `id, title, full_name, other_names, gender,
	address_line1, address_line2, district, province, mh_division,
	birthday, age, nic, phn, marital_status, guardian, contact_numbers,
	occupation, blood_type, known_allergies, chronic_conditions, primary_physician,
	avatar IS NOT NULL, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient, avatar []byte) error {
	err := r.db.Do(ctx, func(ctx context.Context, conn db.Conn) error {
		return conn.QueryRow(ctx, `
			INSERT INTO patients (
				title, full_name, other_names, gender,
				address_line1, address_line2, district, province, mh_division,
				birthday, age, nic, phn, marital_status, guardian, contact_numbers,
				occupation, blood_type, known_allergies, chronic_conditions, primary_physician,
				avatar
			) VALUES (
				$1,$2,$3,$4,
				$5,$6,$7,$8,$9,
				$10,$11,$12,$13,$14,$15,$16,
				$17,$18,$19,$20,$21,
				$22
			) RETURNING id, created_at, updated_at`,
			p.Title, p.FullName, p.OtherNames, p.Gender,
			p.AddressLine1, p.AddressLine2, p.District, p.Province, p.MHDivision,
			birthdayArg(p.Birthday), p.Age, nullIfEmpty(p.NIC), p.PHN, p.MaritalStatus, p.Guardian, p.ContactNumbers,
			p.Occupation, p.BloodType, p.KnownAllergies, p.ChronicConditions, p.PrimaryPhysician,
			avatar,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	})
	if err != nil {
		return translate("patient create", err)
	}
	p.HasAvatar = avatar != nil
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	var p *Patient
	err := r.db.Do(ctx, func(ctx context.Context, conn db.Conn) error {
		var err error
		p, err = scanPatient(conn.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return nil, translate("patient get", err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.db.Do(ctx, func(ctx context.Context, conn db.Conn) error {
		return conn.QueryRow(ctx, `
			UPDATE patients SET
				title=$2, full_name=$3, other_names=$4, gender=$5,
				address_line1=$6, address_line2=$7, district=$8, province=$9, mh_division=$10,
				birthday=$11, age=$12, nic=$13, phn=$14, marital_status=$15, guardian=$16, contact_numbers=$17,
				occupation=$18, blood_type=$19, known_allergies=$20, chronic_conditions=$21, primary_physician=$22
			WHERE id = $1
			RETURNING created_at, updated_at, avatar IS NOT NULL`,
			p.ID, p.Title, p.FullName, p.OtherNames, p.Gender,
			p.AddressLine1, p.AddressLine2, p.District, p.Province, p.MHDivision,
			birthdayArg(p.Birthday), p.Age, nullIfEmpty(p.NIC), p.PHN, p.MaritalStatus, p.Guardian, p.ContactNumbers,
			p.Occupation, p.BloodType, p.KnownAllergies, p.ChronicConditions, p.PrimaryPhysician,
		).Scan(&p.CreatedAt, &p.UpdatedAt, &p.HasAvatar)
	})
	if err != nil {
		return translate("patient update", err)
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var (
		items []*Patient
		total int
	)
	err := r.db.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPatient(rows)
			if err != nil {
				return err
			}
			items = append(items, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, translate("patient list", err)
	}
	return items, total, nil
}

func (r *patientRepoPG) Find(ctx context.Context, by SearchField, term string) (*Patient, error) {
	var where string
	switch by {
	case ByPHN:
		where = "phn = $1"
	case ByNIC:
		where = "nic = $1"
	case ByName:
		where = `full_name ILIKE $1 ESCAPE '\'`
		term = "%" + escapeLike(term) + "%"
	default:
		return nil, fmt.Errorf("unknown search field %q", by)
	}

	var p *Patient
	err := r.db.Do(ctx, func(ctx context.Context, conn db.Conn) error {
		var err error
		p, err = scanPatient(conn.QueryRow(ctx,
			`SELECT `+patientCols+` FROM patients WHERE `+where+` ORDER BY id LIMIT 1`, term))
		return err
	})
	if err != nil {
		return nil, translate("patient find", err)
	}
	return p, nil
}

func (r *patientRepoPG) SetAvatar(ctx context.Context, id int64, avatar []byte) error {
	err := r.db.Do(ctx, func(ctx context.Context, conn db.Conn) error {
		tag, err := conn.Exec(ctx, `UPDATE patients SET avatar = $2 WHERE id = $1`, id, avatar)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return translate("patient set avatar", err)
	}
	return nil
}

func (r *patientRepoPG) GetAvatar(ctx context.Context, id int64) ([]byte, error) {
	var avatar []byte
	err := r.db.Do(ctx, func(ctx context.Context, conn db.Conn) error {
		return conn.QueryRow(ctx, `SELECT avatar FROM patients WHERE id = $1`, id).Scan(&avatar)
	})
	if err != nil {
		return nil, translate("patient get avatar", err)
	}
	if avatar == nil {
		return nil, ErrNotFound
	}
	return avatar, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p        Patient
		birthday *time.Time
		nic      *string
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.FullName, &p.OtherNames, &p.Gender,
		&p.AddressLine1, &p.AddressLine2, &p.District, &p.Province, &p.MHDivision,
		&birthday, &p.Age, &nic, &p.PHN, &p.MaritalStatus, &p.Guardian, &p.ContactNumbers,
		&p.Occupation, &p.BloodType, &p.KnownAllergies, &p.ChronicConditions, &p.PrimaryPhysician,
		&p.HasAvatar, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if birthday != nil {
		p.Birthday = NewDate(*birthday)
	}
	if nic != nil {
		p.NIC = *nic
	}
	return &p, nil
}

// translate maps driver errors onto the package sentinels.
func translate(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if constraint, ok := db.UniqueViolation(err); ok {
		return fmt.Errorf("%w: %s", ErrConflict, conflictField(constraint))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func conflictField(constraint string) string {
	switch {
	case strings.Contains(constraint, "nic"):
		return "NIC"
	case strings.Contains(constraint, "phn"):
		return "PHN"
	}
	return constraint
}

// NIC is unique but optional; empty values are stored as NULL so they never
// collide.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func birthdayArg(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
