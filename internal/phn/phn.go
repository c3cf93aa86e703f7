// Package phn builds Patient Health Numbers of the form
// PHN-<facility>-<yyMMddHHmmss>-<suffix>.
package phn

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const (
	// DefaultFacilityCode identifies the issuing hospital.
	DefaultFacilityCode = "1250"

	prefix          = "PHN"
	timestampLayout = "060102150405"
	suffixLen       = 4
)

var (
	ErrMalformed    = errors.New("malformed phn")
	ErrFacilityCode = errors.New("facility code must be digits")
)

// ValidateFacility checks that code can stand in the facility segment, so
// generated numbers still Parse.
func ValidateFacility(code string) error {
	if !allDigits(code) {
		return fmt.Errorf("%w, got %q", ErrFacilityCode, code)
	}
	return nil
}

// Generator issues PHNs. It performs no uniqueness check; the store's unique
// constraint is the only arbiter and a clash surfaces as a conflict there.
type Generator struct {
	facility string
	now      func() time.Time
	intn     func(n int) int
}

// Option customises a Generator.
type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRand overrides the random source used for NIC-less suffixes.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.intn = r.Intn }
}

func NewGenerator(facility string, opts ...Option) *Generator {
	if facility == "" {
		facility = DefaultFacilityCode
	}
	g := &Generator{
		facility: facility,
		now:      time.Now,
		intn:     rand.Intn,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a PHN whose suffix is the last four characters of nic, or a
// random zero-padded 4-digit number when nic is shorter than four characters.
func (g *Generator) Generate(nic string) string {
	return fmt.Sprintf("%s-%s-%s-%s", prefix, g.facility, g.now().Format(timestampLayout), g.suffix(nic))
}

func (g *Generator) suffix(nic string) string {
	r := []rune(nic)
	if len(r) >= suffixLen {
		return string(r[len(r)-suffixLen:])
	}
	return fmt.Sprintf("%04d", 1000+g.intn(9000))
}

// Parts is a PHN split into its four segments.
type Parts struct {
	Facility  string
	Timestamp string
	Suffix    string
}

// Parse splits a PHN back into its segments. The suffix comes from a NIC and
// may itself contain hyphens, so only the first three separators are used.
func Parse(s string) (Parts, error) {
	segs := strings.SplitN(s, "-", 4)
	if len(segs) != 4 || segs[0] != prefix {
		return Parts{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if !allDigits(segs[1]) || !allDigits(segs[2]) {
		return Parts{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if len([]rune(segs[3])) != suffixLen {
		return Parts{}, fmt.Errorf("%w: suffix of %q", ErrMalformed, s)
	}
	return Parts{Facility: segs[1], Timestamp: segs[2], Suffix: segs[3]}, nil
}

// Clean strips the separators so the remainder fits the barcode alphabet.
func Clean(s string) string {
	return strings.ReplaceAll(s, "-", "")
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
