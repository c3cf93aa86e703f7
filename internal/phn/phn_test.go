package phn

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var phnPattern = regexp.MustCompile(`^PHN-\d+-\d{12}-.{4}$`)

func fixedClock() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func TestGenerate_UsesLastFourOfNIC(t *testing.T) {
	g := NewGenerator("", WithClock(fixedClock))

	for _, nic := range []string{"1234", "987654321V", "200012345678", "ab-c9"} {
		got := g.Generate(nic)
		r := []rune(nic)
		assert.Equal(t, string(r[len(r)-4:]), got[len(got)-4:], "nic %q", nic)
		assert.Regexp(t, phnPattern, got)
	}
}

func TestGenerate_ExactFormat(t *testing.T) {
	g := NewGenerator("1250", WithClock(fixedClock))
	assert.Equal(t, "PHN-1250-240101120000-1234", g.Generate("951234561234"))
}

func TestGenerate_ShortOrMissingNICUsesDigits(t *testing.T) {
	g := NewGenerator("", WithClock(fixedClock), WithRand(rand.New(rand.NewSource(7))))
	digits := regexp.MustCompile(`^\d{4}$`)

	for _, nic := range []string{"", "1", "12", "123"} {
		for i := 0; i < 50; i++ {
			got := g.Generate(nic)
			require.Regexp(t, phnPattern, got)
			parts, err := Parse(got)
			require.NoError(t, err)
			assert.Regexp(t, digits, parts.Suffix)
		}
	}
}

func TestGenerate_ZeroPadsSmallRandom(t *testing.T) {
	g := NewGenerator("", WithClock(fixedClock))
	g.intn = func(int) int { return 0 }
	assert.Equal(t, "PHN-1250-240101120000-1000", g.Generate(""))
}

func TestGenerate_SameInputSameSecondCollides(t *testing.T) {
	g := NewGenerator("", WithClock(fixedClock))
	assert.Equal(t, g.Generate("90012345V"), g.Generate("90012345V"))
}

func TestGenerate_SameMinuteDifferentSecond(t *testing.T) {
	now := fixedClock()
	g := NewGenerator("", WithClock(func() time.Time { return now }))
	first := g.Generate("90012345V")
	now = now.Add(time.Second)
	second := g.Generate("90012345V")

	assert.NotEqual(t, first, second)
	assert.Equal(t, "PHN-1250-240101120001-345V", second)
}

func TestParse_RoundTrip(t *testing.T) {
	g := NewGenerator("77", WithClock(fixedClock))
	parts, err := Parse(g.Generate("X-12"))
	require.NoError(t, err)
	assert.Equal(t, "77", parts.Facility)
	assert.Equal(t, "240101120000", parts.Timestamp)
	assert.Equal(t, "X-12", parts.Suffix)
}

func TestParse_Rejects(t *testing.T) {
	for _, s := range []string{"", "PHN", "PHN-1250-2401", "XYZ-1250-240101120000-1234", "PHN-12a0-240101120000-1234", "PHN-1250-240101120000-12345"} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrMalformed, s)
	}
}

func TestClean(t *testing.T) {
	assert.Equal(t, "PHN12502401011200001234", Clean("PHN-1250-240101120000-1234"))
	assert.Equal(t, "", Clean("---"))
}

func TestValidateFacility(t *testing.T) {
	for _, code := range []string{"1250", "77", "0001"} {
		assert.NoError(t, ValidateFacility(code), code)
	}
	for _, code := range []string{"", "abc", "12A0", "-1", "12 50"} {
		err := ValidateFacility(code)
		assert.ErrorIs(t, err, ErrFacilityCode, code)
	}
}

func TestValidateFacility_GeneratedNumbersParse(t *testing.T) {
	code := "4410"
	require.NoError(t, ValidateFacility(code))
	_, err := Parse(NewGenerator(code, WithClock(fixedClock)).Generate("851234567V"))
	assert.NoError(t, err)
}
