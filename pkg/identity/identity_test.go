package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{"firmware id", "id24A160E1B2C3", "id24A160E1B2C3", false},
		{"trimmed", "  id24A160E1B2C3\n", "id24A160E1B2C3", false},
		{"too short", "bad", "", true},
		{"wrong prefix", "xx24A160E1B2C3", "", true},
		{"too long", "id24A160E1B2C3F", "", true},
		{"empty", "", "", true},
		{"unassigned", "id000000000000", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseShortFormat(t *testing.T) {
	f := Format{Prefix: "id", Length: 12}
	require.NoError(t, f.Validate())

	id, err := f.Parse("id1234567890")
	require.NoError(t, err)
	assert.Equal(t, "id1234567890", id.String())

	_, err = f.Parse("bad")
	assert.ErrorIs(t, err, ErrFormat)
}

func TestFormatValidate(t *testing.T) {
	assert.NoError(t, DefaultFormat().Validate())
	assert.Error(t, Format{Prefix: "id", Length: 2}.Validate())
}

func TestMatches(t *testing.T) {
	id := ID("id24A160E1B2C3")
	assert.True(t, id.Matches("id24A160E1B2C3"))
	assert.False(t, id.Matches("id24a160e1b2c3"))
	assert.False(t, id.Matches(""))
}
