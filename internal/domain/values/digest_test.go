package values

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDigest(t *testing.T) {
	d := ComputeDigest("tok_4242")

	assert.Len(t, d.String(), 64)
	assert.False(t, d.IsZero())

	// Deterministic and distinct.
	assert.True(t, d.Equal(ComputeDigest("tok_4242")))
	assert.False(t, d.Equal(ComputeDigest("tok_4243")))
}

func TestNewDigest(t *testing.T) {
	valid := ComputeDigest("tok_4242").String()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid digest", input: valid},
		{name: "uppercase normalized", input: strings.ToUpper(valid)},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "too short rejected", input: "abc123", wantErr: true},
		{name: "non-hex rejected", input: strings.Repeat("z", 64), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDigest(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, valid, d.String())
		})
	}
}

func TestDigest_TextRoundTrip(t *testing.T) {
	d := ComputeDigest("tok_4242")

	text, err := d.MarshalText()
	require.NoError(t, err)

	var decoded Digest
	require.NoError(t, decoded.UnmarshalText(text))
	assert.True(t, d.Equal(decoded))
}

func TestDigest_ZeroValueStoresNull(t *testing.T) {
	var d Digest
	v, err := d.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
