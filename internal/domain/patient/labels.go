package patient

import (
	"context"
	"strings"
	"time"

	"github.com/ehr/registry/internal/barcode"
	"github.com/ehr/registry/internal/platform/metrics"
	"github.com/ehr/registry/internal/printout"
)

const (
	DefaultQRSize = 256
	MaxQRSize     = 1024
)

// Rendering is an encoded PNG ready for packaging.
type Rendering struct {
	PHN      string
	PNG      []byte
	Warnings []string
}

// Label renders the full registration label for a stored patient.
func (s *Service) Label(ctx context.Context, id int64) (*Rendering, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.RenderLabel(p)
}

// RenderLabel composes and encodes the label for p.
func (s *Service) RenderLabel(p *Patient) (*Rendering, error) {
	start := time.Now()
	res, err := s.labels.Compose(p.LabelRecord())
	if err != nil {
		return nil, err
	}
	s.reportWarnings(p.PHN, res.Warnings)

	data, err := printout.EncodePNG(res.Image, barcode.DefaultDPI)
	if err != nil {
		return nil, err
	}
	metrics.RecordLabelRendered("label", time.Since(start))
	return &Rendering{PHN: p.PHN, PNG: data, Warnings: res.Warnings}, nil
}

// Barcode renders only the Code-128 symbol, as printed right after
// registration.
func (s *Service) Barcode(ctx context.Context, id int64) (*Rendering, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	sym := s.barcodes.EncodeOrPlaceholder(p.PHN, barcode.DefaultWidthCM, barcode.DefaultDPI)
	var warnings []string
	if sym.Fallback != nil {
		warnings = append(warnings, "barcode placeholder used: "+sym.Fallback.Error())
	}
	warnings = append(warnings, sym.Warnings...)
	s.reportWarnings(p.PHN, warnings)

	data, err := printout.EncodePNG(sym.Image, barcode.DefaultDPI)
	if err != nil {
		return nil, err
	}
	metrics.RecordLabelRendered("barcode", time.Since(start))
	return &Rendering{PHN: p.PHN, PNG: data, Warnings: warnings}, nil
}

// QRCode renders the PHN as a QR code for wristbands.
func (s *Service) QRCode(ctx context.Context, id int64, size int) (*Rendering, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	if size > MaxQRSize {
		size = MaxQRSize
	}
	start := time.Now()
	data, err := barcode.QRCode(p.PHN, size)
	if err != nil {
		return nil, err
	}
	metrics.RecordLabelRendered("qr", time.Since(start))
	return &Rendering{PHN: p.PHN, PNG: data}, nil
}

func (s *Service) reportWarnings(phn string, warnings []string) {
	for _, w := range warnings {
		metrics.RecordFallback(FallbackKind(w))
		s.logger.Warn().Str("phn", phn).Msg(w)
	}
}

// FallbackKind classifies a render warning for metrics.
func FallbackKind(warning string) string {
	switch {
	case strings.HasPrefix(warning, "barcode"):
		return "barcode"
	case strings.HasPrefix(warning, "label drawing"):
		return "draw"
	}
	return "font"
}
