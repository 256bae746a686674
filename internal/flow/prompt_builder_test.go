package flow

import (
	"strings"
	"testing"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

var testPromptConfig = PromptConfig{
	AgentName:   "María",
	CompanyName: "Transpormax",
	EPSName:     "Cosalud",
}

func TestBuildSystemPromptSections(t *testing.T) {
	s := models.NewSession("p-1", models.DirectionInbound)
	s.Phase = models.PhaseServiceCoordination
	s.PatientFullName = "Carlos Gómez"

	tc := buildTestContext(t, s, "Estoy molesto, el conductor llegó tarde!!")
	prompt := BuildSystemPrompt(testPromptConfig, s, tc)

	for _, want := range []string{
		"Eres María, agente telefónica de Transpormax",
		"afiliados a Cosalud",
		"Coordinación de servicio",
		"Paciente: Carlos Gómez",
		"agent_response",
		"next_phase",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// A frustrated message must carry a tone section and a reference case.
	if !strings.Contains(prompt, "## Tono") {
		t.Error("prompt missing tone section for frustrated user")
	}
	if !strings.Contains(prompt, "## Caso de referencia") {
		t.Error("prompt missing reference case for driver complaint")
	}
}

func TestBuildSystemPromptSectionOrder(t *testing.T) {
	s := models.NewSession("p-2", models.DirectionInbound)
	s.Phase = models.PhaseServiceCoordination
	s.PatientFullName = "Ana Ruiz"

	tc := buildTestContext(t, s, "no entiendo, ¿puede repetir?")
	prompt := BuildSystemPrompt(testPromptConfig, s, tc)

	sections := []string{
		"## Fase actual",
		"## Datos ya registrados",
		"## Tono",
		"## Extracción de datos",
		"## Formato de salida",
	}
	last := -1
	for _, sec := range sections {
		idx := strings.Index(prompt, sec)
		if idx < 0 {
			t.Fatalf("prompt missing section %q", sec)
		}
		if idx < last {
			t.Errorf("section %q out of order", sec)
		}
		last = idx
	}
}

func TestBuildSystemPromptValidPhases(t *testing.T) {
	s := models.NewSession("p-3", models.DirectionOutbound)
	s.Phase = models.PhaseOutboundServiceConfirmation

	tc := buildTestContext(t, s, "sí asistirá")
	prompt := BuildSystemPrompt(testPromptConfig, s, tc)

	for _, want := range []string{
		"OUTBOUND_SERVICE_CONFIRMATION",
		"OUTBOUND_SPECIAL_CASES",
		"OUTBOUND_CLOSING",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("schema missing reachable phase %q", want)
		}
	}
	if strings.Contains(prompt, "una de: OUTBOUND_SERVICE_CONFIRMATION | OUTBOUND_SPECIAL_CASES | OUTBOUND_CLOSING | END") {
		t.Error("END listed as reachable from confirmation")
	}
}

func TestBuildSystemPromptGreetingReminder(t *testing.T) {
	s := models.NewSession("p-5", models.DirectionInbound)
	s.Phase = models.PhaseIdentification

	tc := buildTestContext(t, s, "buenos días")
	prompt := BuildSystemPrompt(testPromptConfig, s, tc)
	if strings.Contains(prompt, "Ya saludaste") {
		t.Error("greeting reminder rendered before the agent ever spoke")
	}

	s.AppendMessage(models.RoleAssistant, "Buenos días, le saluda María.")
	s.AppendMessage(models.RoleUser, "hola, necesito el transporte")
	prompt = BuildSystemPrompt(testPromptConfig, s, tc)
	if !strings.Contains(prompt, "Ya saludaste") {
		t.Error("greeting reminder missing after the opening turn")
	}
}

func TestBuildSystemPromptAlertsIncluded(t *testing.T) {
	s := models.NewSession("p-4", models.DirectionOutbound)
	s.Phase = models.PhaseOutboundLegalNotice
	s.ContactRelationship = "nieto"

	tc := buildTestContext(t, s, "soy el nieto")
	prompt := BuildSystemPrompt(testPromptConfig, s, tc)
	if !strings.Contains(prompt, "VALIDAR EDAD") {
		t.Error("age validation alert not rendered in prompt")
	}
}
