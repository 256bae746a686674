package util

import (
	"fmt"
	"strings"
	"time"
)

var spanishDays = [...]string{"DOMINGO", "LUNES", "MARTES", "MIÉRCOLES", "JUEVES", "VIERNES", "SÁBADO"}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// parseServiceDate accepts the two date layouts found in service records and
// model output: YYYY-MM-DD and DD/MM/YYYY.
func parseServiceDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "-") {
		return time.Parse("2006-01-02", s)
	}
	return time.Parse("02/01/2006", s)
}

// FormatSpanishDate renders a service date string for spoken Spanish, e.g.
// "mañana MARTES 20 de enero". Comma-separated multi-date strings pick the
// next upcoming date and mention how many more there are. Unparseable input
// is returned verbatim so the agent can still read it out.
func FormatSpanishDate(dateStr string, now time.Time) string {
	if strings.TrimSpace(dateStr) == "" {
		return dateStr
	}

	var parsed []time.Time
	for _, part := range strings.Split(dateStr, ",") {
		d, err := parseServiceDate(part)
		if err != nil {
			continue
		}
		parsed = append(parsed, d)
	}
	if len(parsed) == 0 {
		return dateStr
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	selected := parsed[0]
	for _, d := range parsed {
		if !d.Before(today) {
			selected = d
			break
		}
	}

	dayName := spanishDays[int(selected.Weekday())]
	formatted := fmt.Sprintf("%02d de %s", selected.Day(), spanishMonths[selected.Month()-1])

	var result string
	switch diff := int(selected.Sub(today).Hours() / 24); diff {
	case 0:
		result = fmt.Sprintf("hoy %s %s", dayName, formatted)
	case 1:
		result = fmt.Sprintf("mañana %s %s", dayName, formatted)
	case 2:
		result = fmt.Sprintf("pasado mañana %s %s", dayName, formatted)
	default:
		result = fmt.Sprintf("%s %s", dayName, formatted)
	}

	if extra := len(parsed) - 1; extra > 0 {
		plural := ""
		if extra > 1 {
			plural = "s"
		}
		result += fmt.Sprintf(" (y %d fecha%s más)", extra, plural)
	}
	return result
}
