package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatMillis(t *testing.T) {
	assert.Equal(t, "2023-11-14T22:13:20.000Z", FormatMillis(1_700_000_000_000))
	assert.Equal(t, "", FormatMillis(0))
}

func TestAgeOf(t *testing.T) {
	now := time.UnixMilli(10_000)

	assert.Equal(t, 4*time.Second, AgeOf(now, 6_000))
	assert.Equal(t, time.Duration(0), AgeOf(now, 12_000))
	assert.True(t, IsTimestampStale(now, 6_000, 3*time.Second))
	assert.False(t, IsTimestampStale(now, 6_000, 4*time.Second))
}

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "", want: nil},
		{raw: "   ", want: nil},
		{raw: "BTC", want: []string{"BTC"}},
		{raw: "BTC, ETH ,,SOL", want: []string{"BTC", "ETH", "SOL"}},
		{raw: "xyz:TSLA,PURR/USDC", want: []string{"xyz:TSLA", "PURR/USDC"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCSV(tt.raw))
		})
	}
}
