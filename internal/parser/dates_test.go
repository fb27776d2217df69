package parser

import (
	"testing"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		layouts []string
		want    string
		ok      bool
	}{
		{"01/07/2025", sgDateLayouts, "2025-07-01", true},
		{"31/12/2024", sgDateLayouts, "2024-12-31", true},
		{"1/7/2025", sgDateLayouts, "", false},
		{"31/02/2025", sgDateLayouts, "", false},
		{"", sgDateLayouts, "", false},

		{"01/02/2025", genericDateLayouts, "2025-02-01", true},
		{"12/31/2024", genericDateLayouts, "2024-12-31", true},
		{"2024-12-31", genericDateLayouts, "2024-12-31", true},
		{"15 Jan 2024", genericDateLayouts, "2024-01-15", true},
		{"15 January 2024", genericDateLayouts, "2024-01-15", true},
		{"Jan 15, 2024", genericDateLayouts, "2024-01-15", true},
		{"15.01.24", genericDateLayouts, "2024-01-15", true},

		{"15 janv. 2025", frenchDateLayouts, "2025-01-15", true},
		{"3 février 2025", frenchDateLayouts, "2025-02-03", true},
		{"14 août 2025", frenchDateLayouts, "2025-08-14", true},
		{"1 DÉCEMBRE 2025", frenchDateLayouts, "2025-12-01", true},
		{"15/01/25", frenchDateLayouts, "2025-01-15", true},
		{"12/31/2024", frenchDateLayouts, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input, tt.layouts)
			if ok != tt.ok {
				t.Fatalf("ParseDate(%q): ok=%v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseDate(%q): got %s, want %s", tt.input, got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestNormalizeMonths(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"15 janvier 2025", "15 Jan 2025"},
		{"15 Févr. 2025", "15 Feb 2025"},
		{"15 sept 2025", "15 Sep 2025"},
		{"Virement 15", "Virement 15"},
	}
	for _, tt := range tests {
		if got := normalizeMonths(tt.input); got != tt.want {
			t.Errorf("normalizeMonths(%q): got %q, want %q", tt.input, got, tt.want)
		}
	}
}
