package label

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/registry/internal/barcode"
	"github.com/ehr/registry/internal/typeface"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func johnSilva() Record {
	return Record{
		FieldTitle:    "Mr.",
		FieldFullName: "John Silva",
		FieldPHN:      "PHN-1250-240101120000-1234",
		FieldAddress1: "No 1, Temple Road, Kegalle",
		FieldContact:  "0771234567",
	}
}

func TestDefaultSpec_PixelSize(t *testing.T) {
	w, h := DefaultSpec.PixelSize()
	assert.Equal(t, 2362, w)
	assert.Equal(t, 1016, h)
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 50)
	got := Truncate(long, 45)
	assert.Len(t, got, 45)
	assert.Equal(t, strings.Repeat("a", 42)+"...", got)

	short := strings.Repeat("b", 30)
	assert.Equal(t, short, Truncate(short, 45))

	assert.Equal(t, strings.Repeat("c", 45), Truncate(strings.Repeat("c", 45), 45))
	assert.Equal(t, "ab...", Truncate("abcdefgh", 5))
	assert.Equal(t, "unbounded", Truncate("unbounded", 0))
	assert.Equal(t, "කෑගල්ල...", Truncate("කෑගල්ල දිස්ත්‍රික්කය", 9))
}

func TestCompose_EndToEnd(t *testing.T) {
	c := NewCompositor(WithClock(fixedClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))))

	res, err := c.Compose(johnSilva())
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, image.Rect(0, 0, 2362, 1016), res.Image.Bounds())
	assert.Equal(t, "PHN12502401011200001234", res.Payload)

	bc, ok := res.Placement(RoleBarcode)
	require.True(t, ok)
	assert.Equal(t, 1890, bc.Rect.Dx())
	assert.Equal(t, bc.Rect.Min.X, 2362-bc.Rect.Max.X, "barcode is centered")
	assert.LessOrEqual(t, bc.Rect.Max.Y, 1016)

	dark := 0
	row := bc.Rect.Min.Y + bc.Rect.Dy()/4
	for x := bc.Rect.Min.X; x < bc.Rect.Max.X; x++ {
		if gray(res.Image.At(x, row)) < 128 {
			dark++
		}
	}
	assert.Greater(t, dark, 100, "bars drawn in the barcode slot")

	name, ok := res.Placement(RoleName)
	require.True(t, ok)
	assert.Equal(t, "Mr. John Silva", name.Text)

	contact, _ := res.Placement(RoleContact)
	assert.Equal(t, "Tel: 0771234567", contact.Text)

	stamp, ok := res.Placement(RoleStamp)
	require.True(t, ok)
	assert.Equal(t, "2024-01-01 12:00:00", stamp.Text)
	assert.Equal(t, bc.Rect.Max.Y-40, stamp.Rect.Min.Y)
}

func TestCompose_RegionsCentered(t *testing.T) {
	res, err := NewCompositor().Compose(johnSilva())
	require.NoError(t, err)

	for _, p := range res.Placements {
		left := p.Rect.Min.X
		right := 2362 - p.Rect.Max.X
		assert.InDelta(t, left, right, 2, "%s not centered", p.Role)
	}
}

func TestCompose_Truncation(t *testing.T) {
	rec := johnSilva()
	rec[FieldAddress1] = strings.Repeat("x", 50)
	rec[FieldContact] = strings.Repeat("7", 40)

	res, err := NewCompositor().Compose(rec)
	require.NoError(t, err)

	addr, _ := res.Placement(RoleAddress)
	assert.Len(t, addr.Text, 45)
	assert.Equal(t, strings.Repeat("x", 42)+"...", addr.Text)

	tel, _ := res.Placement(RoleContact)
	assert.Len(t, tel.Text, 35)
	assert.True(t, strings.HasPrefix(tel.Text, "Tel: "))
	assert.Equal(t, "Tel: "+strings.Repeat("7", 27)+"...", tel.Text)
}

func TestCompose_ShortAddressUnmodified(t *testing.T) {
	rec := johnSilva()
	rec[FieldAddress1] = strings.Repeat("y", 30)

	res, err := NewCompositor().Compose(rec)
	require.NoError(t, err)
	addr, _ := res.Placement(RoleAddress)
	assert.Equal(t, rec[FieldAddress1], addr.Text)
}

func TestCompose_EmptyAddressSkipped(t *testing.T) {
	rec := johnSilva()
	rec[FieldAddress1] = "  "

	withAddr, err := NewCompositor().Compose(johnSilva())
	require.NoError(t, err)
	res, err := NewCompositor().Compose(rec)
	require.NoError(t, err)

	_, ok := res.Placement(RoleAddress)
	assert.False(t, ok)

	a, _ := withAddr.Placement(RoleContact)
	b, _ := res.Placement(RoleContact)
	assert.Equal(t, a.Rect.Min.Y-70, b.Rect.Min.Y)
}

func TestCompose_MissingPHN(t *testing.T) {
	rec := johnSilva()
	delete(rec, FieldPHN)

	_, err := NewCompositor().Compose(rec)
	assert.True(t, errors.Is(err, ErrMissingPHN))
}

func TestCompose_UnencodablePHNUsesPlaceholder(t *testing.T) {
	rec := johnSilva()
	rec[FieldPHN] = "PHN-1250-240101120000-ශ්‍රී"

	res, err := NewCompositor().Compose(rec)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "placeholder")

	bc, _ := res.Placement(RoleBarcode)
	assert.Equal(t, 1890, bc.Rect.Dx())
	assert.Equal(t, image.Rect(0, 0, 2362, 1016), res.Image.Bounds())
}

func TestCompose_FontFallback(t *testing.T) {
	res, err := NewCompositor(WithFontFiles("/missing/arialbd.ttf", "/missing/arial.ttf")).Compose(johnSilva())
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 2)
	assert.Equal(t, image.Rect(0, 0, 2362, 1016), res.Image.Bounds())
}

func TestCompose_BasicFontKeepsLayout(t *testing.T) {
	basicOnly := WithFonts(func() *typeface.Set { return &typeface.Set{} })
	rec := johnSilva()
	rec[FieldAddress1] = strings.Repeat("z", 60)

	res, err := NewCompositor(basicOnly).Compose(rec)
	require.NoError(t, err)

	addr, _ := res.Placement(RoleAddress)
	assert.Len(t, addr.Text, 45)
	for _, p := range res.Placements {
		assert.InDelta(t, p.Rect.Min.X, 2362-p.Rect.Max.X, 2, "%s not centered", p.Role)
	}
	bc, _ := res.Placement(RoleBarcode)
	assert.Equal(t, 1890, bc.Rect.Dx())
}

func TestCompose_Deterministic(t *testing.T) {
	at := time.Date(2024, 3, 9, 8, 15, 0, 0, time.UTC)
	c := NewCompositor(WithClock(fixedClock(at)))

	a, err := c.Compose(johnSilva())
	require.NoError(t, err)
	b, err := c.Compose(johnSilva())
	require.NoError(t, err)

	assert.Equal(t, a.Image.(*image.RGBA).Pix, b.Image.(*image.RGBA).Pix)
}

func TestCompose_OnlyTimestampDiffers(t *testing.T) {
	a, err := NewCompositor(WithClock(fixedClock(time.Date(2024, 3, 9, 8, 15, 0, 0, time.UTC)))).Compose(johnSilva())
	require.NoError(t, err)
	b, err := NewCompositor(WithClock(fixedClock(time.Date(2025, 11, 28, 23, 47, 59, 0, time.UTC)))).Compose(johnSilva())
	require.NoError(t, err)

	sa, _ := a.Placement(RoleStamp)
	sb, _ := b.Placement(RoleStamp)
	stamp := sa.Rect.Union(sb.Rect).Inset(-8)

	differs := false
	bounds := a.Image.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pa, pb := a.Image.At(x, y), b.Image.At(x, y)
			if pa == pb {
				continue
			}
			if !image.Pt(x, y).In(stamp) {
				t.Fatalf("pixel (%d,%d) outside the timestamp differs", x, y)
			}
			differs = true
		}
	}
	assert.True(t, differs)
}

func TestCompose_CustomFacilityAndEncoder(t *testing.T) {
	c := NewCompositor(
		WithFacility("BASE HOSPITAL KEGALLE"),
		WithEncoder(barcode.NewEncoder(barcode.WithoutCaption())),
	)
	res, err := c.Compose(johnSilva())
	require.NoError(t, err)

	f, _ := res.Placement(RoleFacility)
	assert.Equal(t, "BASE HOSPITAL KEGALLE", f.Text)
}

func gray(c color.Color) uint8 {
	return color.GrayModel.Convert(c).(color.Gray).Y
}

func TestCompose_CaptionFontFallbackReported(t *testing.T) {
	missing := func() *typeface.Set { return typeface.Load("", "/missing/caption.ttf") }
	c := NewCompositor(WithEncoder(barcode.NewEncoder(barcode.WithFonts(missing))))

	res, err := c.Compose(johnSilva())
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.True(t, strings.HasPrefix(res.Warnings[0], "caption font: "), res.Warnings[0])
	assert.Contains(t, res.Warnings[0], "/missing/caption.ttf")
}
