package util

import (
	"testing"
	"time"
)

func TestFormatSpanishDate(t *testing.T) {
	// Fixed reference: Monday 2026-01-19.
	now := time.Date(2026, 1, 19, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date string
		want string
	}{
		{"today", "2026-01-19", "hoy LUNES 19 de enero"},
		{"tomorrow", "2026-01-20", "mañana MARTES 20 de enero"},
		{"day after tomorrow", "2026-01-21", "pasado mañana MIÉRCOLES 21 de enero"},
		{"later this month", "2026-01-30", "VIERNES 30 de enero"},
		{"slash layout", "20/01/2026", "mañana MARTES 20 de enero"},
		{"multiple dates", "2026-01-20, 2026-01-22, 2026-01-24", "mañana MARTES 20 de enero (y 2 fechas más)"},
		{"two dates singular suffix", "2026-01-20, 2026-01-22", "mañana MARTES 20 de enero (y 1 fecha más)"},
		{"past dates fall back to first", "2026-01-10", "SÁBADO 10 de enero"},
		{"skips past picks next future", "2026-01-10, 2026-01-21", "pasado mañana MIÉRCOLES 21 de enero (y 1 fecha más)"},
		{"unparseable returned verbatim", "el martes que viene", "el martes que viene"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSpanishDate(tt.date, now); got != tt.want {
				t.Errorf("FormatSpanishDate(%q) = %q, want %q", tt.date, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"3001234567", "3001234567"},
		{"+57 300 123 4567", "3001234567"},
		{"300-123-4567", "3001234567"},
		{"573001234567", "3001234567"},
		{"12345", "12345"},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValidPhone(t *testing.T) {
	if !IsValidPhone("+57 300 123 4567") {
		t.Error("valid phone rejected")
	}
	if IsValidPhone("12345") {
		t.Error("short phone accepted")
	}
}
