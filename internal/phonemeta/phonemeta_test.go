package phonemeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_LongestPrefixWins(t *testing.T) {
	d := NewDefault()
	region, lang := d.Resolve("15551234567")
	assert.Equal(t, "US", region)
	assert.Equal(t, "en", lang)
}

func TestResolve_PrefersLongerPrefixOverShorter(t *testing.T) {
	d := NewDefault()
	region, _ := d.Resolve("971501234567")
	assert.Equal(t, "AE", region)
}

func TestResolve_UnknownPrefixReturnsEmpty(t *testing.T) {
	d := NewDefault()
	region, lang := d.Resolve("999000000")
	assert.Empty(t, region)
	assert.Empty(t, lang)
}

func TestResolve_StripsLeadingPlus(t *testing.T) {
	d := NewDefault()
	region, _ := d.Resolve("+4420000000")
	assert.Equal(t, "GB", region)
}
