// Package refdata holds the static reference material injected into
// prompts: resolved example cases used for few-shot guidance. The data is
// loaded once at startup and never mutated.
package refdata

import (
	"log/slog"
	"strings"
)

// CaseExample is a resolved situation the agent can imitate.
type CaseExample struct {
	ID         string
	Title      string
	Situation  string
	Resolution string
	Keywords   []string
}

// defaultCases is the numbered case library.
var defaultCases = []CaseExample{
	{
		ID:         "1",
		Title:      "Usuario molesto por cambio de horario",
		Situation:  "El usuario está molesto porque la hora de recogida cambió sin avisarle.",
		Resolution: "Primero validar la molestia (\"Entiendo completamente su molestia\"), reconocer el problema concreto y luego ofrecer la acción: registrar la novedad y confirmar el horario vigente.",
		Keywords:   []string{"molesto", "enojado", "horario", "tarde", "cambio de hora", "frustración"},
	},
	{
		ID:         "2",
		Title:      "Familiar responde, no es el paciente",
		Situation:  "Contesta un familiar del paciente y no el paciente directamente.",
		Resolution: "Preguntar el nombre y el parentesco del familiar. Si es hijo/a o nieto/a, preguntar la edad antes de compartir cualquier dato de la cita.",
		Keywords:   []string{"familiar", "hijo", "hija", "esposa", "esposo", "nieto", "no es el paciente"},
	},
	{
		ID:         "3",
		Title:      "Solicitud de cambio de dirección",
		Situation:  "El usuario pide que lo recojan en una dirección distinta a la registrada.",
		Resolution: "Tomar la nueva dirección completa, verificar que esté dentro de la zona urbana de cobertura y registrar la novedad. Si está fuera de cobertura, escalar a la EPS sin confirmar.",
		Keywords:   []string{"cambiar dirección", "otra dirección", "dirección incorrecta", "recoger en"},
	},
	{
		ID:         "4",
		Title:      "Usuario confundido o no entiende",
		Situation:  "El usuario no entiende la información o pide que se la repitan.",
		Resolution: "Usar lenguaje muy simple, dar la información en pasos cortos y confirmar comprensión con preguntas como \"¿Le queda claro?\".",
		Keywords:   []string{"no entiendo", "cómo así", "puede repetir", "confundido", "no me queda claro"},
	},
	{
		ID:         "5",
		Title:      "Queja de conductor",
		Situation:  "El usuario se queja del conductor: llegó tarde, no llegó o fue descortés.",
		Resolution: "Escuchar, disculparse y registrar la queja como novedad con todos los detalles. No prometer un conductor específico; las preferencias se registran como sugerencia.",
		Keywords:   []string{"queja", "conductor", "chofer", "llegó tarde", "no llegó", "reclamo"},
	},
	{
		ID:         "6",
		Title:      "Paciente con movilidad reducida",
		Situation:  "El paciente usa silla de ruedas o necesita ayuda para subir al vehículo.",
		Resolution: "Registrar la necesidad especial en las observaciones del servicio para que despacho asigne un vehículo adecuado.",
		Keywords:   []string{"silla de ruedas", "movilidad", "no puede caminar", "ayuda para subir"},
	},
	{
		ID:         "7",
		Title:      "Solicitud de acompañante adicional",
		Situation:  "El usuario quiere viajar con más de un acompañante.",
		Resolution: "Explicar que la autorización cubre máximo un acompañante y que acompañantes adicionales deben autorizarse con la EPS.",
		Keywords:   []string{"acompañante", "acompañantes", "ir con", "viajar con"},
	},
	{
		ID:         "8",
		Title:      "Usuario con prisa",
		Situation:  "El usuario tiene afán y quiere terminar la llamada rápido.",
		Resolution: "Ir directo al punto: confirmar los datos esenciales (fecha, hora, dirección) en una sola frase y cerrar.",
		Keywords:   []string{"prisa", "afán", "rápido", "no tengo tiempo"},
	},
	{
		ID:         "9",
		Title:      "Transferencia de llamada",
		Situation:  "El interlocutor pasa el teléfono a otra persona a mitad de llamada.",
		Resolution: "Saludar de nuevo, identificar a la nueva persona y su parentesco, y repetir el aviso de grabación antes de continuar.",
		Keywords:   []string{"le paso a", "un momento", "ya le pasa", "espere le paso"},
	},
	{
		ID:         "10",
		Title:      "Número equivocado",
		Situation:  "La persona que contesta no conoce al paciente.",
		Resolution: "Disculparse brevemente, no compartir ningún dato del paciente y terminar la llamada registrando la novedad de número equivocado.",
		Keywords:   []string{"número equivocado", "no conozco", "aquí no vive", "se equivocó"},
	},
}

// Retriever selects at most one case example per turn by keyword overlap.
type Retriever struct {
	cases []CaseExample
}

// NewRetriever creates a retriever over the default case library.
func NewRetriever() *Retriever {
	return &Retriever{cases: defaultCases}
}

// NewRetrieverWithCases creates a retriever over a custom library (tests).
func NewRetrieverWithCases(cases []CaseExample) *Retriever {
	return &Retriever{cases: cases}
}

// Cases returns the loaded library.
func (r *Retriever) Cases() []CaseExample { return r.cases }

// Select returns the best-matching case for the message and analysis hints,
// or nil when nothing scores. Hints are extra terms (detected topic, intent,
// emotion) that participate in scoring alongside the raw message.
func (r *Retriever) Select(message string, hints ...string) *CaseExample {
	haystack := strings.ToLower(message + " " + strings.Join(hints, " "))

	best := -1
	bestScore := 0
	for i := range r.cases {
		score := 0
		for _, kw := range r.cases[i].Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	c := r.cases[best]
	slog.Debug("Retriever.Select: case matched", "case_id", c.ID, "title", c.Title, "score", bestScore)
	return &c
}
