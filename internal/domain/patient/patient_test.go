package patient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPatient(t *testing.T) {
	t.Run("creates with folded search key", func(t *testing.T) {
		p, err := NewPatient("001-1234567-8", "María", "Gómez Peña", "PIA")

		require.NoError(t, err)
		assert.Equal(t, "María Gómez Peña", p.FullName())
		assert.Equal(t, "maria gomez pena 001-1234567-8", p.SearchKey)
		assert.False(t, p.Synced)
	})

	t.Run("trims names", func(t *testing.T) {
		p, err := NewPatient("", "  Juan ", " Díaz ", "PIA")
		require.NoError(t, err)
		assert.Equal(t, "Juan", p.FirstName)
		assert.Equal(t, "Díaz", p.LastName)
	})

	t.Run("requires names and branch", func(t *testing.T) {
		_, err := NewPatient("x", "", "Díaz", "PIA")
		assert.Error(t, err)
		_, err = NewPatient("x", "Juan", "", "PIA")
		assert.Error(t, err)
		_, err = NewPatient("x", "Juan", "Díaz", "")
		assert.Error(t, err)
	})
}

func TestFoldSearchKey(t *testing.T) {
	assert.Equal(t, "jose nunez", FoldSearchKey("José Núñez"))
	assert.Equal(t, "angel urena", FoldSearchKey("  ÁNGEL   UREÑA "))
	assert.Equal(t, "plain ascii", FoldSearchKey("plain ascii"))
}

func TestMarkSynced(t *testing.T) {
	p, err := NewPatient("001", "Ana", "Lora", "PIA")
	require.NoError(t, err)

	p.MarkSynced("mongo-6543")
	assert.True(t, p.Synced)
	assert.Equal(t, "mongo-6543", p.RemoteID)
}
