package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

// PromptConfig carries the operator identity rendered into every prompt.
type PromptConfig struct {
	AgentName   string
	CompanyName string
	EPSName     string
}

// Default operator identity; overridable through coordinator options.
const (
	DefaultAgentName   = "María"
	DefaultCompanyName = "Transpormax"
)

// BuildSystemPrompt renders the full system prompt for one turn. Section
// order is fixed: persona, phase objective, known data, active policies and
// example case, alerts, tone, greeting reminder, extraction rules, output
// schema.
func BuildSystemPrompt(cfg PromptConfig, s *models.ConversationSession, tc TurnContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, personaTemplate, cfg.AgentName, cfg.CompanyName, cfg.EPSName)

	b.WriteString("\n\n## Fase actual: " + s.Phase.DisplayName() + " (" + string(s.Phase) + ")\n")
	if instr, ok := phaseInstructions[s.Phase]; ok {
		b.WriteString(instr)
	}

	if len(tc.KnownData) > 0 {
		b.WriteString("\n\n## Datos ya registrados (no los vuelvas a preguntar)\n")
		for _, line := range tc.KnownData {
			b.WriteString("- " + line + "\n")
		}
	}

	if len(tc.PolicySummaries) > 0 {
		b.WriteString("\n## Políticas activas\n")
		for _, p := range tc.PolicySummaries {
			b.WriteString("- " + p + "\n")
		}
	}

	if tc.Case != nil {
		b.WriteString("\n## Caso de referencia: " + tc.Case.Title + "\n")
		b.WriteString("Situación: " + tc.Case.Situation + "\n")
		b.WriteString("Cómo resolverlo: " + tc.Case.Resolution + "\n")
	}

	if len(tc.Alerts) > 0 {
		b.WriteString("\n## ALERTAS\n")
		for _, a := range tc.Alerts {
			b.WriteString("- " + a + "\n")
		}
	}

	if tc.Tone != "" {
		b.WriteString("\n## Tono\n" + tc.Tone + "\n")
	}

	if greetingDelivered(s) {
		b.WriteString("\n## Recordatorio\nYa saludaste al inicio de la llamada: no vuelvas a presentarte ni repitas el saludo.\n")
	}

	b.WriteString("\n## Extracción de datos\n")
	b.WriteString(extractionRules)

	b.WriteString("\n\n## Formato de salida\n")
	fmt.Fprintf(&b, outputSchemaTemplate, validPhaseList(s.Phase))

	return b.String()
}

// greetingDelivered reports whether the agent already spoke in this call.
// Without the reminder the model tends to re-greet after every phase change.
func greetingDelivered(s *models.ConversationSession) bool {
	for _, m := range s.Messages {
		if m.Role == models.RoleAssistant {
			return true
		}
	}
	return false
}

// validPhaseList renders the phases legal from the current one for the
// output schema.
func validPhaseList(p models.ConversationPhase) string {
	next := models.NextPhases(p)
	names := make([]string, len(next))
	for i, n := range next {
		names[i] = string(n)
	}
	return strings.Join(names, " | ")
}
