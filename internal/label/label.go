// Package label composes the printable patient identification label: the
// facility name, patient identity, address and contact lines, a Code-128
// symbol of the PHN and the time the label was generated.
package label

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/ehr/registry/internal/barcode"
	"github.com/ehr/registry/internal/typeface"
)

// Field keys read from a Record.
const (
	FieldTitle    = "title"
	FieldFullName = "full_name"
	FieldAddress1 = "address_line1"
	FieldContact  = "contact_numbers"
	FieldPHN      = "phn"
)

const (
	DefaultFacility = "GENERAL HOSPITAL ABCDEFG"
	StampLayout     = "2006-01-02 15:04:05"
	ellipsis        = "..."
)

// ErrMissingPHN is returned when the record has no PHN to encode.
var ErrMissingPHN = errors.New("label: record has no PHN")

// Record is the flat field mapping the label is drawn from.
type Record map[string]string

// Placement records where a region was drawn.
type Placement struct {
	Role Role
	Text string
	Rect image.Rectangle
}

// Result is a composed label.
type Result struct {
	Image       image.Image
	Payload     string
	Placements  []Placement
	Warnings    []string
	GeneratedAt time.Time
}

// Placement returns the first placement drawn for role.
func (r *Result) Placement(role Role) (Placement, bool) {
	for _, p := range r.Placements {
		if p.Role == role {
			return p, true
		}
	}
	return Placement{}, false
}

// Compositor draws labels. It holds no per-render state and may be shared.
type Compositor struct {
	spec     Spec
	facility string
	encoder  *barcode.Encoder
	fonts    func() *typeface.Set
	now      func() time.Time
}

type Option func(*Compositor)

func WithSpec(s Spec) Option {
	return func(c *Compositor) { c.spec = s }
}

func WithFacility(name string) Option {
	return func(c *Compositor) {
		if name != "" {
			c.facility = name
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Compositor) { c.now = now }
}

func WithEncoder(e *barcode.Encoder) Option {
	return func(c *Compositor) { c.encoder = e }
}

// WithFonts sets how the typefaces for each render are resolved.
func WithFonts(load func() *typeface.Set) Option {
	return func(c *Compositor) { c.fonts = load }
}

// WithFontFiles prefers the given TrueType files, falling back to the
// embedded fonts when they cannot be read.
func WithFontFiles(boldPath, regularPath string) Option {
	return WithFonts(func() *typeface.Set { return typeface.Load(boldPath, regularPath) })
}

func NewCompositor(opts ...Option) *Compositor {
	c := &Compositor{
		spec:     DefaultSpec,
		facility: DefaultFacility,
		encoder:  barcode.NewEncoder(),
		fonts:    func() *typeface.Set { return typeface.Load("", "") },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Truncate shortens s to max characters, replacing the tail with "..." when
// it does not fit. A max of zero leaves s unchanged.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	keep := max - len(ellipsis)
	if keep < 0 {
		keep = 0
	}
	return string(r[:keep]) + ellipsis
}

// Text returns the untruncated text for a region.
func (c *Compositor) Text(role Role, rec Record) string {
	switch role {
	case RoleFacility:
		return c.facility
	case RoleName:
		return strings.TrimSpace(rec[FieldTitle] + " " + rec[FieldFullName])
	case RoleAddress:
		return strings.TrimSpace(rec[FieldAddress1])
	case RoleContact:
		return "Tel: " + strings.TrimSpace(rec[FieldContact])
	}
	return ""
}

// Compose draws the label for rec. Once the canvas exists the only outcome
// is an image: font substitutions, barcode fallbacks and drawing panics are
// reported in Result.Warnings.
func (c *Compositor) Compose(rec Record) (res *Result, err error) {
	phn := strings.TrimSpace(rec[FieldPHN])
	if phn == "" {
		return nil, ErrMissingPHN
	}

	w, h := c.spec.PixelSize()
	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetColor(color.Black)

	fonts := c.fonts()
	res = &Result{GeneratedAt: c.now()}
	defer func() {
		if r := recover(); r != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("label drawing aborted: %v", r))
		}
		res.Warnings = append(fonts.Warnings(), res.Warnings...)
		res.Image = dc.Image()
	}()

	y := c.spec.Top
	for _, region := range c.spec.Regions {
		text := c.Text(region.Role, rec)
		if region.Optional && strings.TrimSpace(text) == "" {
			continue
		}
		text = Truncate(text, region.MaxChars)
		face := fonts.Face(region.Bold, region.SizePx)
		res.Placements = append(res.Placements, drawText(dc, face, region.Role, text, y, region.Centered))
		y += region.Advance
	}

	slot := c.spec.Barcode
	sym := c.encoder.EncodeOrPlaceholder(phn, slot.WidthCM, c.spec.DPI)
	res.Payload = sym.Payload
	if sym.Fallback != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("barcode placeholder used: %v", sym.Fallback))
	}
	res.Warnings = append(res.Warnings, sym.Warnings...)
	bw, bh := sym.Image.Bounds().Dx(), sym.Image.Bounds().Dy()
	bx := (w - bw) / 2
	dc.DrawImage(sym.Image, bx, y)
	res.Placements = append(res.Placements, Placement{
		Role: RoleBarcode,
		Text: sym.Payload,
		Rect: image.Rect(bx, y, bx+bw, y+bh),
	})

	stamp := res.GeneratedAt.Format(StampLayout)
	face := fonts.Face(slot.StampBold, slot.StampSizePx)
	res.Placements = append(res.Placements, drawText(dc, face, RoleStamp, stamp, y+bh-slot.StampOffset, true))

	return res, nil
}

// drawText draws text with its top edge at y.
func drawText(dc *gg.Context, face font.Face, role Role, text string, y int, centered bool) Placement {
	dc.SetFontFace(face)
	tw, _ := dc.MeasureString(text)
	x := 0.0
	if centered {
		x = (float64(dc.Width()) - tw) / 2
	}
	m := face.Metrics()
	dc.DrawString(text, x, float64(y+m.Ascent.Ceil()))
	return Placement{
		Role: role,
		Text: text,
		Rect: image.Rect(int(x), y, int(x+tw), y+m.Height.Ceil()),
	}
}
