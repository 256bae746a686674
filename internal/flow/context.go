package flow

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
	"github.com/BTreeMap/TransportMedAgent/internal/policy"
	"github.com/BTreeMap/TransportMedAgent/internal/refdata"
	"github.com/BTreeMap/TransportMedAgent/internal/util"
)

// maxPolicySummaries caps how many rule instructions enter a single prompt;
// beyond that the model starts ignoring them.
const maxPolicySummaries = 2

// TurnContext is everything assembled for one model call beyond the raw
// conversation history.
type TurnContext struct {
	Analysis Analysis

	// PolicySummaries are the rule instructions injected this turn, most
	// relevant first, at most maxPolicySummaries.
	PolicySummaries []string
	// Case is the single best-matching resolved example, or nil.
	Case *refdata.CaseExample

	// KnownData lists what the session already holds, one label per line.
	KnownData []string
	// Alerts are operator-style warnings the model must act on this turn.
	Alerts []string
	// Tone is the empathy instruction derived from the detected emotion.
	Tone string
}

// toneInstructions keyed by emotion then level.
var toneInstructions = map[string]map[string]string{
	"frustración": {
		"bajo":  "El usuario muestra algo de molestia. Mantén un tono calmado y resolutivo.",
		"medio": "El usuario está molesto. Valida su molestia antes de continuar (\"Entiendo su molestia\") y ve directo a la solución.",
		"alto":  "El usuario está muy molesto. Primero discúlpate y valida la molestia, no lo contradigas, y ofrece una acción concreta de inmediato.",
	},
	"confusión": {
		"bajo":  "El usuario parece algo confundido. Usa frases cortas y simples.",
		"medio": "El usuario no entiende. Repite la información en pasos muy simples y confirma comprensión (\"¿Le queda claro?\").",
		"alto":  "El usuario está muy confundido. Da un solo dato a la vez, con lenguaje muy sencillo, y verifica cada paso.",
	},
	"positivo": {
		"bajo":  "",
		"medio": "El usuario es receptivo. Mantén la calidez y avanza con agilidad.",
		"alto":  "El usuario es receptivo. Mantén la calidez y avanza con agilidad.",
	},
}

// confirmationPhases are the phases where the agent must be working with a
// concrete service date.
var confirmationPhases = map[models.ConversationPhase]bool{
	models.PhaseServiceCoordination:         true,
	models.PhaseOutboundServiceConfirmation: true,
}

// BuildTurnContext assembles the per-turn context: message analysis, the
// policy instructions and example case worth injecting, the data the session
// already holds, and any alerts.
func BuildTurnContext(s *models.ConversationSession, message string, eval policy.EvaluationResult, retriever *refdata.Retriever, now time.Time) TurnContext {
	tc := TurnContext{Analysis: AnalyzeMessage(message)}

	tc.PolicySummaries = selectPolicySummaries(eval, tc.Analysis)
	if retriever != nil {
		tc.Case = retriever.Select(message, tc.Analysis.Topic, tc.Analysis.Intent, tc.Analysis.Emotion)
	}
	tc.KnownData = knownDataLines(s, now)
	tc.Alerts = alertLines(s)
	if byLevel, ok := toneInstructions[tc.Analysis.Emotion]; ok {
		tc.Tone = byLevel[tc.Analysis.EmotionLevel]
	}

	slog.Debug("BuildTurnContext: context assembled",
		"session_id", s.SessionID, "phase", s.Phase,
		"emotion", tc.Analysis.Emotion, "intent", tc.Analysis.Intent,
		"policies", len(tc.PolicySummaries), "alerts", len(tc.Alerts),
		"case", tc.Case != nil)
	return tc
}

// selectPolicySummaries picks the most relevant rule instructions: violated
// rules first, then rules whose keywords the analyzer flagged.
func selectPolicySummaries(eval policy.EvaluationResult, a Analysis) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(text string) {
		if text == "" || seen[text] || len(out) >= maxPolicySummaries {
			return
		}
		seen[text] = true
		out = append(out, text)
	}

	for _, v := range eval.Violations {
		add(v.RecommendedAction + ". " + v.ResponseTemplate)
	}
	if eval.PromptInjection != "" {
		for _, line := range strings.Split(eval.PromptInjection, "\n") {
			// Critical instructions take priority over the rest.
			if strings.HasPrefix(line, "CRÍTICO") {
				add(line)
			}
		}
		for _, line := range strings.Split(eval.PromptInjection, "\n") {
			add(line)
		}
	}
	return out
}

// knownDataLines renders the already-collected session fields so the model
// never asks for them again.
func knownDataLines(s *models.ConversationSession, now time.Time) []string {
	var lines []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, label+": "+value)
		}
	}

	add("Paciente", s.PatientFullName)
	if s.DocumentNumber != "" {
		add("Documento", strings.TrimSpace(s.DocumentType+" "+s.DocumentNumber))
	}
	add("EPS", s.EPS)
	if s.ContactName != "" && s.ContactName != s.PatientFullName {
		contact := s.ContactName
		if s.ContactRelationship != "" {
			contact += " (" + s.ContactRelationship + ")"
		}
		add("Interlocutor", contact)
	}
	add("Tipo de servicio", s.ServiceType)
	add("Tratamiento", s.TreatmentType)
	add("Frecuencia", s.Frequency)
	if len(s.AppointmentDates) > 0 {
		add("Fecha del servicio", util.FormatSpanishDate(strings.Join(s.AppointmentDates, ", "), now))
	}
	add("Hora", s.AppointmentTime)
	add("Dirección de recogida", s.PickupAddress)
	add("Destino", s.DestinationFacility)
	add("Modalidad", s.TransportModality)
	if s.CompanionCount > 0 {
		add("Acompañantes", fmt.Sprintf("%d", s.CompanionCount))
	}
	add("Necesidades especiales", s.SpecialNeeds)
	add("Estado de confirmación", s.ConfirmationStatus)
	return lines
}

// alertLines derives operator-style warnings from session state.
func alertLines(s *models.ConversationSession) []string {
	var alerts []string

	if confirmationPhases[s.Phase] && len(s.AppointmentDates) == 0 {
		alerts = append(alerts, "FALTA FECHA: no hay fecha de servicio registrada; pregúntala antes de confirmar.")
	}
	if oob, _ := policy.OutOfCoverage(s.PickupAddress); oob || s.CoverageIssue {
		alerts = append(alerts, "ZONA SIN COBERTURA: la dirección está fuera del área urbana; informa la remisión a la EPS y no confirmes el servicio.")
	}
	if policy.RelationshipNeedsAgeCheck(s.ContactRelationship) && s.ContactAge == 0 {
		alerts = append(alerts, "VALIDAR EDAD: el interlocutor es "+s.ContactRelationship+"; pregunta su edad antes de compartir datos de la cita.")
	}
	if s.MinorContact() {
		alerts = append(alerts, "MENOR DE EDAD - NO dar información, solicitar adulto responsable.")
	}
	if s.RequiresEscalation {
		alerts = append(alerts, "CASO ESCALADO: informa que el caso será gestionado por un asesor y no confirmes el servicio.")
	}
	return alerts
}
