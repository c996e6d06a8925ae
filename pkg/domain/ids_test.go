package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verity/pkg/domain-errors"
)

func TestParseSessionID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSessionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSessionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSessionID("00000000-0000-0000-0000-000000000000")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("round trips a valid UUID", func(t *testing.T) {
		raw := "550e8400-e29b-41d4-a716-446655440000"
		id, err := ParseSessionID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
		assert.False(t, id.IsNil())
	})
}

func TestNewIDsAreDistinct(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsNil())
}

// Typed IDs are defined on top of uuid.UUID, which serializes as a byte
// array unless the text marshaling methods are redeclared on each type.
// This pins the canonical string form on the JSON path.
func TestIDJSONUsesCanonicalString(t *testing.T) {
	id := NewOrderID()

	encoded, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(encoded))

	var decoded OrderID
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, id, decoded)
}

func TestIDUnmarshalText(t *testing.T) {
	t.Run("empty text yields the nil ID", func(t *testing.T) {
		var id CustomerID
		require.NoError(t, id.UnmarshalText(nil))
		assert.True(t, id.IsNil())
	})

	t.Run("invalid text errors", func(t *testing.T) {
		var id CustomerID
		assert.Error(t, id.UnmarshalText([]byte("bogus")))
	})
}

func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err != nil {
			assert.True(t, id.IsNil(), "failed parse must return the nil ID")
			return
		}
		assert.NotEqual(t, uuid.Nil, uuid.UUID(id))
		reparsed, rerr := ParseSessionID(id.String())
		require.NoError(t, rerr)
		assert.Equal(t, id, reparsed)
	})
}
