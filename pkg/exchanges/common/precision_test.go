package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFloorToStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    string
		step string
		want string
	}{
		{"truncates", "0.123456", "0.001", "0.123"},
		{"never rounds up", "0.0019999", "0.001", "0.001"},
		{"exact multiple", "1.5", "0.5", "1.5"},
		{"below step", "0.0004", "0.001", "0"},
		{"zero step", "0.123456", "0", "0.123456"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FloorToStep(decimal.RequireFromString(tt.v), decimal.RequireFromString(tt.step))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestRoundToStep(t *testing.T) {
	t.Parallel()

	got := RoundToStep(decimal.RequireFromString("130.06"), decimal.RequireFromString("0.1"))
	assert.Equal(t, "130.1", got.String())

	got = RoundToStep(decimal.RequireFromString("94.94"), decimal.RequireFromString("0.1"))
	assert.Equal(t, "94.9", got.String())
}

func TestParsePositionSide(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]PositionSide{
		"buy": PositionLong, "LONG": PositionLong, " Sell ": PositionShort, "short": PositionShort,
	} {
		got, ok := ParsePositionSide(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParsePositionSide("flat")
	assert.False(t, ok)
}

func TestSides(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SideBuy, PositionLong.EntrySide())
	assert.Equal(t, SideSell, PositionLong.ExitSide())
	assert.Equal(t, SideSell, PositionShort.EntrySide())
	assert.Equal(t, SideBuy, PositionShort.ExitSide())
}

func TestParseOrderKind(t *testing.T) {
	t.Parallel()

	k, ok := ParseOrderKind("", KindLimit)
	assert.True(t, ok)
	assert.Equal(t, KindLimit, k)

	k, ok = ParseOrderKind("MARKET", KindLimit)
	assert.True(t, ok)
	assert.Equal(t, KindMarket, k)

	_, ok = ParseOrderKind("iceberg", KindLimit)
	assert.False(t, ok)
}
