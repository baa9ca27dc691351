package core

import (
	"testing"
)

func TestParseFloat(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		want   float64
		wantOk bool
	}{
		{name: "empty", s: "  "},
		{name: "dot", s: "12.5", want: 12.5, wantOk: true},
		{name: "comma", s: " 12,5 ", want: 12.5, wantOk: true},
		{name: "text", s: "beaucoup"},
		{name: "NaN", s: "NaN"},
		{name: "inf", s: "inf"},
		{name: "negative inf", s: "-Inf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFloat(tt.s)
			if ok != tt.wantOk || got != tt.want {
				t.Errorf("ParseFloat(%q) = %v, %v, want %v, %v", tt.s, got, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestParseInts(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want []int
	}{
		{name: "empty", s: "", want: []int{}},
		{name: "sorted", s: "12 18 26 60", want: []int{12, 18, 26, 60}},
		{name: "unsorted", s: "60 12 26 18", want: []int{12, 18, 26, 60}},
		{name: "duplicates and junk dropped", s: "4 x 1 4 2", want: []int{1, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseInts(tt.s)
			if len(got) != len(tt.want) {
				t.Fatalf("parseInts(%q) = %v, want %v", tt.s, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseInts(%q) = %v, want %v", tt.s, got, tt.want)
					break
				}
			}
		})
	}
}
