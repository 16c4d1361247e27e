package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "Nicolo Mazza", Fold("Nicolò Mazzà"))
	assert.Equal(t, "FORLI", Fold("FORLÌ"))
	assert.Equal(t, "plain", Fold("plain"))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "VIA ROMA", Clean("  via   roma "))
	assert.Equal(t, "", Clean("   "))
	assert.Equal(t, "CITTÀ", Clean("città"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("Forlì"), Key(" FORLI "))
	assert.NotEqual(t, Key("Roma"), Key("Romano"))
}
