package policy

import (
	"strings"
	"testing"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

func TestOutOfCoverage(t *testing.T) {
	tests := []struct {
		address string
		want    bool
	}{
		{"Carrera 7 #45-12, Barrio Centro", false},
		{"Vereda El Carmen, finca La Esperanza", true},
		{"zona rural del municipio", true},
		{"Corregimiento de Bonda", true},
		{"Calle 100, Bogotá", true},
		{"Avenida del Río, Barranquilla", true},
		{"", false},
	}
	for _, tt := range tests {
		if got, _ := OutOfCoverage(tt.address); got != tt.want {
			t.Errorf("OutOfCoverage(%q) = %v, want %v", tt.address, got, tt.want)
		}
	}
}

func TestEscalationKeyword(t *testing.T) {
	if kw := EscalationKeyword("Necesito un servicio expreso para mañana"); kw != "servicio expreso" {
		t.Errorf("EscalationKeyword = %q", kw)
	}
	if kw := EscalationKeyword("El servicio no está autorizado, me dijeron sin autorización"); kw == "" {
		t.Error("authorization keyword not detected")
	}
	if kw := EscalationKeyword("Sí, confirmo la cita"); kw != "" {
		t.Errorf("false positive: %q", kw)
	}
}

func TestEvaluateAppliesOnlyMatchingRules(t *testing.T) {
	engine := NewEngine()

	s := models.NewSession("policy-1", models.DirectionInbound)
	s.Phase = models.PhaseServiceCoordination
	result := engine.Evaluate(s, "quisiera un servicio expreso, expreso por favor")

	foundModalidad := false
	for _, id := range result.ApplicableRules {
		if id == "MODALIDAD_001" {
			foundModalidad = true
		}
		if id == "PROTOCOLO_001" {
			t.Error("greeting-only rule applied during coordination")
		}
	}
	if !foundModalidad {
		t.Error("MODALIDAD_001 not applicable during SERVICE_COORDINATION")
	}

	var modalidadViolated bool
	for _, v := range result.Violations {
		if v.RuleID == "MODALIDAD_001" {
			modalidadViolated = true
			if v.Severity != SeverityWarning {
				t.Errorf("MODALIDAD_001 severity = %s", v.Severity)
			}
		}
	}
	if !modalidadViolated {
		t.Error("express request did not trigger MODALIDAD_001")
	}
	if result.HasBlocking {
		t.Error("warning-level violation reported as blocking")
	}
}

func TestEvaluateBlockingEPS(t *testing.T) {
	engine := NewEngine()
	s := models.NewSession("policy-2", models.DirectionInbound)
	s.Phase = models.PhaseIdentification
	s.EPS = "Sanitas"

	result := engine.Evaluate(s, "mi eps es Sanitas")
	if !result.HasBlocking {
		t.Fatal("foreign EPS did not produce a blocking violation")
	}
	blocking := result.BlockingViolations()
	if len(blocking) != 1 || blocking[0].RuleID != "SERVICIO_001" {
		t.Errorf("blocking violations = %+v", blocking)
	}
}

func TestEvaluatePromptInjectionIncludesApplicableRules(t *testing.T) {
	engine := NewEngine()
	s := models.NewSession("policy-3", models.DirectionOutbound)
	s.Phase = models.PhaseOutboundGreeting

	result := engine.Evaluate(s, "aló")
	if !strings.Contains(result.PromptInjection, "grabada") {
		t.Error("recording notice instruction missing from prompt injection")
	}
}

func TestGuardMinorContact(t *testing.T) {
	engine := NewEngine()
	s := models.NewSession("guard-1", models.DirectionOutbound)
	s.Phase = models.PhaseOutboundLegalNotice
	s.ContactRelationship = "hija"
	s.ContactAge = 15

	out := &models.TurnOutput{
		AgentResponse:      "Su cita es el martes a las 7:30 en la dirección registrada.",
		NextPhase:          models.PhaseOutboundServiceConfirmation,
		RequiresEscalation: false,
	}
	g := engine.Guard(s, "tengo 15 años", out)

	if !g.Overridden {
		t.Fatal("guard did not override for a minor contact")
	}
	if !g.HoldPhase {
		t.Error("guard did not hold the phase")
	}
	if !g.ForceEscalation {
		t.Error("guard did not force escalation")
	}
	if g.ReplaceResponse == "" || strings.Contains(g.ReplaceResponse, "7:30") {
		t.Error("guard did not replace the response with the adult-request script")
	}
}

func TestGuardUnauthorizedContact(t *testing.T) {
	engine := NewEngine()
	s := models.NewSession("guard-6", models.DirectionOutbound)
	s.Phase = models.PhaseOutboundLegalNotice
	s.ContactRelationship = "vecina"

	out := &models.TurnOutput{
		AgentResponse: "La cita del paciente es el martes a las 7:30.",
		NextPhase:     models.PhaseOutboundServiceConfirmation,
	}
	g := engine.Guard(s, "soy la vecina, dígame a qué hora es", out)

	if !g.Overridden {
		t.Fatal("guard did not override for an unauthorized contact")
	}
	if !g.HoldPhase {
		t.Error("guard did not hold the phase")
	}
	if !g.SuppressConfirmation {
		t.Error("guard did not suppress confirmation")
	}
	if g.ReplaceResponse == "" || strings.Contains(g.ReplaceResponse, "7:30") {
		t.Error("guard did not replace the response that leaked the appointment")
	}
}

func TestGuardOutOfCoverageWinsOverModel(t *testing.T) {
	engine := NewEngine()
	s := models.NewSession("guard-2", models.DirectionOutbound)
	s.Phase = models.PhaseOutboundServiceConfirmation
	s.PickupAddress = "Vereda La Unión, kilómetro 8"
	s.ServiceConfirmed = true

	// Model claims everything is fine and no escalation is needed.
	out := &models.TurnOutput{
		AgentResponse:      "Perfecto, queda confirmado.",
		NextPhase:          models.PhaseOutboundClosing,
		RequiresEscalation: false,
	}
	g := engine.Guard(s, "sí, confirmo", out)

	if !g.Overridden || !g.ForceEscalation {
		t.Fatal("guard did not force escalation for out-of-coverage address")
	}
	if g.ForceStatus != models.StatusOutOfCoverage {
		t.Errorf("ForceStatus = %q, want %q", g.ForceStatus, models.StatusOutOfCoverage)
	}
	if !g.SuppressConfirmation {
		t.Error("guard did not suppress the confirmation")
	}
}

func TestGuardCompanionLimit(t *testing.T) {
	engine := NewEngine()
	s := models.NewSession("guard-3", models.DirectionInbound)
	s.Phase = models.PhaseServiceCoordination
	s.CompanionCount = 3

	out := &models.TurnOutput{AgentResponse: "Listo", NextPhase: models.PhaseClosing}
	g := engine.Guard(s, "viajamos con tres acompañantes", out)

	if !g.SuppressConfirmation {
		t.Error("companion count above limit did not suppress confirmation")
	}
}

func TestGuardEscalationKeywordOverridesModelFalse(t *testing.T) {
	engine := NewEngine()
	s := models.NewSession("guard-4", models.DirectionInbound)
	s.Phase = models.PhaseServiceCoordination

	out := &models.TurnOutput{
		AgentResponse:      "Claro, lo coordino de una vez.",
		NextPhase:          models.PhaseServiceCoordination,
		RequiresEscalation: false,
	}
	g := engine.Guard(s, "necesito un servicio expreso urgente ya", out)
	if !g.ForceEscalation {
		t.Error("escalation keyword did not override the model's requires_escalation=false")
	}
}

func TestGuardCleanTurnPassesThrough(t *testing.T) {
	engine := NewEngine()
	s := models.NewSession("guard-5", models.DirectionOutbound)
	s.Phase = models.PhaseOutboundServiceConfirmation
	s.PatientFullName = "Luz Dary Ortiz"
	s.PickupAddress = "Carrera 19 #29-30"
	s.EPS = "Cosalud"

	out := &models.TurnOutput{
		AgentResponse: "Su servicio queda confirmado.",
		NextPhase:     models.PhaseOutboundClosing,
	}
	g := engine.Guard(s, "sí, confirmo", out)
	if g.Overridden {
		t.Errorf("clean turn overridden: %v", g.Reasons)
	}
}

func TestRelationshipAuthorized(t *testing.T) {
	for _, rel := range []string{"", "paciente", "esposo", "Madre", "ACUDIENTE", "hija"} {
		if !RelationshipAuthorized(rel) {
			t.Errorf("RelationshipAuthorized(%q) = false", rel)
		}
	}
	for _, rel := range []string{"vecina", "amigo", "compañero de trabajo"} {
		if RelationshipAuthorized(rel) {
			t.Errorf("RelationshipAuthorized(%q) = true", rel)
		}
	}
}

func TestRelationshipNeedsAgeCheck(t *testing.T) {
	for _, rel := range []string{"hijo", "Hija", "nieto", "NIETA"} {
		if !RelationshipNeedsAgeCheck(rel) {
			t.Errorf("RelationshipNeedsAgeCheck(%q) = false", rel)
		}
	}
	for _, rel := range []string{"esposa", "madre", ""} {
		if RelationshipNeedsAgeCheck(rel) {
			t.Errorf("RelationshipNeedsAgeCheck(%q) = true", rel)
		}
	}
}
