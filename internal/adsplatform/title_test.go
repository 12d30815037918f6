package adsplatform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleKey(t *testing.T) {
	assert.Equal(t, "summer promo", TitleKey("  Summer Promo "))
	// Precomposed and decomposed forms of "é" collapse to the same key.
	assert.Equal(t, TitleKey("Caf\u00e9"), TitleKey("Cafe\u0301"))
	assert.Equal(t, TitleKey("\u00c9COLE"), TitleKey("\u00e9cole"))
	assert.NotEqual(t, TitleKey("clip-1"), TitleKey("clip-2"))
}
