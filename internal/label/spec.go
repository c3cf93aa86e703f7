package label

import "math"

// Role identifies the content drawn in a text region.
type Role string

const (
	RoleFacility Role = "facility"
	RoleName     Role = "name"
	RoleAddress  Role = "address"
	RoleContact  Role = "contact"
	RoleBarcode  Role = "barcode"
	RoleStamp    Role = "timestamp"
)

// Region is one line of text on the label.
type Region struct {
	Role     Role
	Bold     bool
	SizePx   float64
	Centered bool
	// MaxChars is the character budget including the ellipsis; 0 means no limit.
	MaxChars int
	// Advance moves the cursor down after the region is drawn.
	Advance int
	// Optional regions are skipped, without advancing, when their text is empty.
	Optional bool
}

// BarcodeSlot places the symbol below the text regions.
type BarcodeSlot struct {
	WidthCM float64
	// StampOffset is how far above the bottom of the symbol the generation
	// timestamp starts.
	StampOffset int
	StampBold   bool
	StampSizePx float64
}

// Spec describes the physical label and its layout.
type Spec struct {
	WidthMM  float64
	HeightMM float64
	DPI      int
	// Top is the y coordinate of the first region.
	Top     int
	Regions []Region
	Barcode BarcodeSlot
}

// DefaultSpec is the 100 x 43 mm adhesive label printed at 600 DPI.
var DefaultSpec = Spec{
	WidthMM:  100,
	HeightMM: 43,
	DPI:      600,
	Top:      60,
	Regions: []Region{
		{Role: RoleFacility, Bold: true, SizePx: 80, Centered: true, Advance: 100},
		{Role: RoleName, Bold: true, SizePx: 64, Centered: true, Advance: 80},
		{Role: RoleAddress, Bold: true, SizePx: 64, Centered: true, MaxChars: 45, Advance: 70, Optional: true},
		{Role: RoleContact, Bold: true, SizePx: 80, Centered: true, MaxChars: 35, Advance: 80},
	},
	Barcode: BarcodeSlot{
		WidthCM:     8,
		StampOffset: 40,
		StampBold:   true,
		StampSizePx: 64,
	},
}

// PixelSize returns the canvas dimensions at the spec's resolution.
func (s Spec) PixelSize() (int, int) {
	return mmToPixels(s.WidthMM, s.DPI), mmToPixels(s.HeightMM, s.DPI)
}

func mmToPixels(mm float64, dpi int) int {
	return int(math.Round(mm / 25.4 * float64(dpi)))
}
