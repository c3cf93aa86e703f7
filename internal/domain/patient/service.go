package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/registry/internal/barcode"
	"github.com/ehr/registry/internal/label"
	"github.com/ehr/registry/internal/phn"
	"github.com/ehr/registry/internal/platform/metrics"
)

type Service struct {
	patients Repository
	phn      *phn.Generator
	labels   *label.Compositor
	barcodes *barcode.Encoder
	logger   zerolog.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithGenerator(g *phn.Generator) ServiceOption {
	return func(s *Service) { s.phn = g }
}

func WithCompositor(c *label.Compositor) ServiceOption {
	return func(s *Service) { s.labels = c }
}

func WithBarcodeEncoder(e *barcode.Encoder) ServiceOption {
	return func(s *Service) { s.barcodes = e }
}

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(patients Repository, opts ...ServiceOption) *Service {
	s := &Service{
		patients: patients,
		phn:      phn.NewGenerator(phn.DefaultFacilityCode),
		labels:   label.NewCompositor(),
		barcodes: barcode.NewEncoder(),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -- Registration form --

func (s *Service) NewDraft() Draft {
	return NewDraft(s.now())
}

func (s *Service) GeneratePHN(nic string) string {
	return s.phn.Generate(strings.TrimSpace(nic))
}

// -- Patient --

// RegisterPatient validates p and stores it together with an optional,
// already processed avatar in a single insert.
func (s *Service) RegisterPatient(ctx context.Context, p *Patient, avatar []byte) error {
	p.Normalize()
	if err := Validate(p); err != nil {
		return err
	}
	if err := s.patients.Create(ctx, p, avatar); err != nil {
		return err
	}
	metrics.RecordPatientRegistered()
	s.logger.Info().Int64("patient_id", p.ID).Str("phn", p.PHN).Msg("patient registered")
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	p.Normalize()
	if err := Validate(p); err != nil {
		return err
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// FindPatient looks a patient up for reprinting.
func (s *Service) FindPatient(ctx context.Context, by SearchField, term string) (*Patient, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, &ValidationError{Missing: []string{"Search Term"}}
	}
	return s.patients.Find(ctx, by, term)
}

// -- Avatar --

func (s *Service) SetAvatar(ctx context.Context, id int64, upload []byte, crop *Crop) error {
	avatar, err := ProcessAvatar(upload, crop)
	if err != nil {
		return err
	}
	return s.patients.SetAvatar(ctx, id, avatar)
}

func (s *Service) ClearAvatar(ctx context.Context, id int64) error {
	return s.patients.SetAvatar(ctx, id, nil)
}

func (s *Service) Avatar(ctx context.Context, id int64) ([]byte, error) {
	return s.patients.GetAvatar(ctx, id)
}

// -- Export --

const exportPageSize = 500

// AllPatients pages through the whole register in id order.
func (s *Service) AllPatients(ctx context.Context) ([]*Patient, error) {
	var all []*Patient
	for offset := 0; ; offset += exportPageSize {
		page, total, err := s.patients.List(ctx, exportPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("export page at %d: %w", offset, err)
		}
		all = append(all, page...)
		if len(page) < exportPageSize || offset+exportPageSize >= total {
			return all, nil
		}
	}
}
