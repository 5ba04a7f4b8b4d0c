package invoicing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidSIREN(t *testing.T) {
	tests := []struct {
		name  string
		siren string
		valid bool
	}{
		{"valid checksum", "732829320", true},
		{"invalid checksum", "732829321", false},
		{"too short", "73282932", false},
		{"too long", "7328293200", false},
		{"non digits", "73282932A", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidSIREN(tt.siren))
		})
	}
}

func TestValidSIRET(t *testing.T) {
	tests := []struct {
		name  string
		siret string
		valid bool
	}{
		{"valid checksum", "73282932000074", true},
		{"invalid checksum", "73282932000075", false},
		{"too short", "7328293200007", false},
		{"non digits", "7328293200007X", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidSIRET(tt.siret))
		})
	}
}

func TestParty_WithSIRET(t *testing.T) {
	t.Run("derives SIREN from SIRET", func(t *testing.T) {
		p, err := NewParty("Dupont SARL")
		require.NoError(t, err)

		p, err = p.WithSIRET("732 829 320 00074")
		require.NoError(t, err)
		assert.Equal(t, "73282932000074", p.SIRET)
		assert.Equal(t, "732829320", p.SIREN)
		assert.True(t, p.IsBusiness())
	})

	t.Run("rejects bad checksum", func(t *testing.T) {
		p, err := NewParty("Dupont SARL")
		require.NoError(t, err)

		_, err = p.WithSIRET("73282932000075")
		assert.Error(t, err)
	})
}

func TestParty_WithSIREN(t *testing.T) {
	p, err := NewParty("Martin SAS")
	require.NoError(t, err)

	p, err = p.WithSIREN("732829320")
	require.NoError(t, err)
	assert.Equal(t, "732829320", p.SIREN)
}

func TestNewParty(t *testing.T) {
	t.Run("rejects blank name", func(t *testing.T) {
		_, err := NewParty("   ")
		assert.Error(t, err)
	})

	t.Run("consumer party is not a business", func(t *testing.T) {
		p, err := NewParty("Jean Dupont")
		require.NoError(t, err)
		assert.False(t, p.IsBusiness())
	})
}
