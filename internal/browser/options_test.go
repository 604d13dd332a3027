package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptions_HeadlessAddsGPUFlag(t *testing.T) {
	headless := Options(true)
	visible := Options(false)

	assert.NotEmpty(t, headless)
	assert.NotEmpty(t, visible)
	// Same base set, one mode-specific flag each.
	assert.Equal(t, len(headless), len(visible))
}
