package modeengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePrice_StudioSingleArtist(t *testing.T) {
	price, ok := CalculatePrice("İzel", "Düğün", "Stüdyo", 1)
	assert.True(t, ok)
	assert.Equal(t, 20000, price)
}

func TestCalculatePrice_HotelSurchargeIsAdditive(t *testing.T) {
	price, ok := CalculatePrice("İzel", "Düğün", "Otel / Ev", 1)
	assert.True(t, ok)
	assert.Equal(t, 22000, price)
}

func TestCalculatePrice_OutOfTownSurchargeIsMultiplicative(t *testing.T) {
	price, ok := CalculatePrice("İzel", "Düğün", "Şehir Dışı", 1)
	assert.True(t, ok)
	assert.Equal(t, 40000, price)
}

func TestCalculatePrice_ExtraPeopleSurcharge(t *testing.T) {
	price, ok := CalculatePrice("Merve", "Nişan", "Stüdyo", 3)
	assert.True(t, ok)
	// base 12000 + 2 extra * 5000
	assert.Equal(t, 22000, price)
}

func TestCalculatePrice_AliasesNormalize(t *testing.T) {
	price, ok := CalculatePrice("izel", "söz", "otel", 1)
	assert.True(t, ok)
	assert.Equal(t, 12000, price) // 10000 + 2000
}

func TestCalculatePrice_UnrecognisedInputReturnsFalse(t *testing.T) {
	_, ok := CalculatePrice("Nobody", "Düğün", "Stüdyo", 1)
	assert.False(t, ok)

	_, ok = CalculatePrice("İzel", "Anneler Günü", "Stüdyo", 1)
	assert.False(t, ok)
}

func TestBuildComputedPriceBlock_NoArtistListsAllPrices(t *testing.T) {
	block, ok := buildComputedPriceBlock(map[string]string{
		"event_type": "Düğün",
		"location":   "Stüdyo",
	})
	assert.True(t, ok)
	assert.Contains(t, block, "İzel: 20.000₺")
	assert.Contains(t, block, "Standart Ekip: 10.000₺")
}

func TestBuildComputedPriceBlock_WithArtistShowsTotal(t *testing.T) {
	block, ok := buildComputedPriceBlock(map[string]string{
		"event_type": "Düğün",
		"location":   "Otel / Ev",
		"artist":     "İzel",
	})
	assert.True(t, ok)
	assert.Contains(t, block, "TOPLAM : 22.000₺")
}

func TestBuildComputedPriceBlock_SkippedArtistFallsBackToList(t *testing.T) {
	block, ok := buildComputedPriceBlock(map[string]string{
		"event_type": "Düğün",
		"location":   "Stüdyo",
		"artist":     skipSentinel,
	})
	assert.True(t, ok)
	assert.Contains(t, block, "Artist fiyatları")
}

func TestFmtTRY(t *testing.T) {
	assert.Equal(t, "22.000", fmtTRY(22000))
	assert.Equal(t, "500", fmtTRY(500))
	assert.Equal(t, "1.000.000", fmtTRY(1000000))
}
