package money

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "already rounded", in: 12.5, want: 12.5},
		{name: "half up", in: 0.125, want: 0.13},
		{name: "negative half", in: -0.125, want: -0.13},
		{name: "third", in: 1.0 / 3, want: 0.33},
		{name: "float noise", in: 0.1 + 0.2, want: 0.3},
		{name: "NaN", in: math.NaN(), want: 0},
		{name: "Inf", in: math.Inf(1), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Round(tt.in); got != tt.want {
				t.Errorf("Round(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSum(t *testing.T) {
	// 0.1 summed ten times drifts as float64 but not as decimal
	fs := make([]float64, 10)
	for i := range fs {
		fs[i] = 0.1
	}
	if got := Float(Sum(fs...)); got != 1 {
		t.Errorf("Sum() = %v, want 1", got)
	}
}

func TestFormatFR(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "0,00"},
		{in: 1234.5, want: "1234,50"},
		{in: -12.345, want: "-12,35"},
	}
	for _, tt := range tests {
		if got := FormatFR(tt.in); got != tt.want {
			t.Errorf("FormatFR(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
