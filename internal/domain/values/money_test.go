package values

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyFromMinorUnits(t *testing.T) {
	tests := []struct {
		name         string
		units        int64
		currency     string
		wantCurrency string
		wantErr      bool
	}{
		{name: "valid amount", units: 2_599, currency: USD, wantCurrency: USD},
		{name: "zero amount", units: 0, currency: EUR, wantCurrency: EUR},
		{name: "lowercase currency normalized", units: 100, currency: "usd", wantCurrency: USD},
		{name: "empty currency rejected", units: 100, currency: "", wantErr: true},
		{name: "short currency rejected", units: 100, currency: "US", wantErr: true},
		{name: "non-alpha currency rejected", units: 100, currency: "U5D", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoneyFromMinorUnits(tt.units, tt.currency)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.units, m.MinorUnits())
			assert.Equal(t, tt.wantCurrency, m.Currency())
		})
	}
}

func TestMoney_MinorUnitsRoundTrip(t *testing.T) {
	m, err := NewMoneyFromString("25.99", USD)
	require.NoError(t, err)
	assert.Equal(t, int64(2_599), m.MinorUnits())
}

func TestMoney_Add(t *testing.T) {
	a := MustNewMoneyFromMinorUnits(1_000, USD)
	b := MustNewMoneyFromMinorUnits(500, USD)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500), sum.MinorUnits())

	_, err = a.Add(MustNewMoneyFromMinorUnits(500, EUR))
	assert.Error(t, err)
}

func TestMoney_GreaterThan(t *testing.T) {
	a := MustNewMoneyFromMinorUnits(1_000, USD)
	b := MustNewMoneyFromMinorUnits(500, USD)

	got, err := a.GreaterThan(b)
	require.NoError(t, err)
	assert.True(t, got)

	_, err = a.GreaterThan(MustNewMoneyFromMinorUnits(500, EUR))
	assert.Error(t, err)
}

func TestMoney_JSON(t *testing.T) {
	m := MustNewMoneyFromMinorUnits(2_599, USD)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, int64(2_599), decoded.MinorUnits())
	assert.Equal(t, USD, decoded.Currency())
}

func TestZero(t *testing.T) {
	z := Zero(USD)
	assert.True(t, z.IsZero())
	assert.False(t, z.IsPositive())
}
