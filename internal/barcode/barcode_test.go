package barcode

import (
	"errors"
	"image"
	"math"
	"strings"
	"testing"

	"github.com/boombuler/barcode/code128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/registry/internal/typeface"
)

func TestPixelsFromCM(t *testing.T) {
	assert.Equal(t, 1890, PixelsFromCM(8.0, 600))
	assert.Equal(t, 2362, PixelsFromCM(10.0, 600))
	assert.Equal(t, 1016, PixelsFromCM(4.3, 600))

	for _, cm := range []float64{0.5, 1, 2.54, 3.3, 5, 7.25, 12} {
		want := int(math.Round(cm / 2.54 * 600))
		assert.Equal(t, want, PixelsFromCM(cm, 600), "%.2fcm", cm)
	}
}

func TestEncode_PHNScaledToExactWidth(t *testing.T) {
	enc := NewEncoder()

	sym, err := enc.Encode("PHN-1250-240101120000-1234", DefaultWidthCM, DefaultDPI)
	require.NoError(t, err)
	assert.Nil(t, sym.Fallback)
	assert.Equal(t, "PHN12502401011200001234", sym.Payload)
	assert.Equal(t, 1890, sym.Image.Bounds().Dx())
	assert.Greater(t, sym.Image.Bounds().Dy(), 100)
	assert.Less(t, sym.Image.Bounds().Dy(), 1016)
}

func TestEncode_WidthMatchesForVariousTargets(t *testing.T) {
	enc := NewEncoder(WithoutCaption())
	for _, cm := range []float64{2, 4.5, 8, 9.9} {
		sym, err := enc.Encode("ABC123", cm, 300)
		require.NoError(t, err)
		assert.Equal(t, PixelsFromCM(cm, 300), sym.Image.Bounds().Dx(), "%.1fcm", cm)
	}
}

func TestEncode_PreservesAspectRatio(t *testing.T) {
	enc := NewEncoder()
	bc, err := code128.Encode("PHN12502401011200001234")
	require.NoError(t, err)
	raw, _ := enc.render(bc, DefaultDPI)

	sym, err := enc.Encode("PHN-1250-240101120000-1234", DefaultWidthCM, DefaultDPI)
	require.NoError(t, err)

	rawRatio := float64(raw.Bounds().Dy()) / float64(raw.Bounds().Dx())
	gotRatio := float64(sym.Image.Bounds().Dy()) / float64(sym.Image.Bounds().Dx())
	assert.InDelta(t, rawRatio, gotRatio, 0.002)
}

func TestRender_BarsFollowModules(t *testing.T) {
	enc := NewEncoder(WithoutCaption())
	bc, err := code128.Encode("PHN1234")
	require.NoError(t, err)

	img, _ := enc.render(bc, 300)
	row := img.Bounds().Dy() / 2

	var wantRuns, gotRuns int
	prev := false
	for x := 0; x < bc.Bounds().Dx(); x++ {
		dark := isDark(bc.At(x, 0))
		if dark && !prev {
			wantRuns++
		}
		prev = dark
	}
	prev = false
	for x := 0; x < img.Bounds().Dx(); x++ {
		dark := isDark(img.At(x, row))
		if dark && !prev {
			gotRuns++
		}
		prev = dark
	}
	assert.Equal(t, wantRuns, gotRuns)

	// quiet zones stay blank
	assert.False(t, isDark(img.At(2, row)))
	assert.False(t, isDark(img.At(img.Bounds().Dx()-3, row)))
}

func TestEncode_RejectsUnencodable(t *testing.T) {
	enc := NewEncoder()
	for _, payload := range []string{"", "ශ්‍රී ලංකා", strings.Repeat("9A", 60)} {
		_, err := enc.Encode(payload, DefaultWidthCM, DefaultDPI)
		var encErr *EncodeError
		require.True(t, errors.As(err, &encErr), "payload %q", payload)
		assert.Equal(t, CleanPayload(payload), encErr.Payload)
	}
}

func TestEncode_InvalidTarget(t *testing.T) {
	_, err := NewEncoder().Encode("ABC", 0, 600)
	assert.Error(t, err)
}

func TestEncodeOrPlaceholder_FallsBack(t *testing.T) {
	sym := NewEncoder().EncodeOrPlaceholder("日本語", DefaultWidthCM, DefaultDPI)
	require.NotNil(t, sym)
	require.Error(t, sym.Fallback)
	assert.Equal(t, 1890, sym.Image.Bounds().Dx())
	assert.Equal(t, PixelsFromCM(placeholderCM, DefaultDPI), sym.Image.Bounds().Dy())
}

func TestEncodeOrPlaceholder_PrimaryPath(t *testing.T) {
	sym := NewEncoder().EncodeOrPlaceholder("PHN-1250-240101120000-1234", DefaultWidthCM, DefaultDPI)
	assert.NoError(t, sym.Fallback)
	assert.Equal(t, "PHN12502401011200001234", sym.Payload)
}

func TestPlaceholder_ExactDimensionsForAnyText(t *testing.T) {
	texts := []string{
		"",
		"PHN12502401011200001234",
		"ශ්‍රී ලංකා 🇱🇰",
		strings.Repeat("LONG-PAYLOAD-", 500),
		"\x00\x01\xff",
	}
	sizes := [][2]int{{1890, 402}, {1, 1}, {40, 3}, {13, 600}, {2000, 10}}

	for _, text := range texts {
		for _, sz := range sizes {
			var img *image.Gray
			require.NotPanics(t, func() { img = Placeholder(text, sz[0], sz[1]) })
			assert.Equal(t, sz[0], img.Bounds().Dx())
			assert.Equal(t, sz[1], img.Bounds().Dy())
		}
	}
}

func TestPlaceholder_ClampsNonPositive(t *testing.T) {
	img := Placeholder("x", 0, -5)
	assert.Equal(t, image.Rect(0, 0, 1, 1), img.Bounds())
}

func TestPlaceholder_AlternatingBars(t *testing.T) {
	img := Placeholder("", 400, 100)
	barW := 400 / placeholderBars
	for i := 0; i < placeholderBars; i++ {
		x := i*barW + barW/2
		assert.Equal(t, i%2 == 0, isDark(img.At(x, 10)), "bar %d", i)
	}
}

func TestQRCode(t *testing.T) {
	png, err := QRCode("PHN-1250-240101120000-1234", 256)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	_, err = QRCode("", 256)
	assert.Error(t, err)
}

func TestEncode_ReportsCaptionFontFallback(t *testing.T) {
	missing := func() *typeface.Set { return typeface.Load("", "/missing/caption.ttf") }

	sym, err := NewEncoder(WithFonts(missing)).Encode("PHN-1", DefaultWidthCM, DefaultDPI)
	require.NoError(t, err)
	require.Len(t, sym.Warnings, 1)
	assert.True(t, strings.HasPrefix(sym.Warnings[0], "caption font: "))

	sym, err = NewEncoder(WithFonts(missing), WithoutCaption()).Encode("PHN-1", DefaultWidthCM, DefaultDPI)
	require.NoError(t, err)
	assert.Empty(t, sym.Warnings)

	sym, err = NewEncoder().Encode("PHN-1", DefaultWidthCM, DefaultDPI)
	require.NoError(t, err)
	assert.Empty(t, sym.Warnings)
}
