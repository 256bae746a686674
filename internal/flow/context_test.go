package flow

import (
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
	"github.com/BTreeMap/TransportMedAgent/internal/policy"
	"github.com/BTreeMap/TransportMedAgent/internal/refdata"
)

// Monday 2026-01-19, matching the date formatting tests.
var contextNow = time.Date(2026, 1, 19, 10, 0, 0, 0, time.UTC)

func buildTestContext(t *testing.T, s *models.ConversationSession, message string) TurnContext {
	t.Helper()
	engine := policy.NewEngine()
	return BuildTurnContext(s, message, engine.Evaluate(s, message), refdata.NewRetriever(), contextNow)
}

func TestBuildTurnContextKnownData(t *testing.T) {
	s := models.NewSession("ctx-1", models.DirectionInbound)
	s.Phase = models.PhaseServiceCoordination
	s.PatientFullName = "Luz Dary Ortiz"
	s.DocumentType = "CC"
	s.DocumentNumber = "52123456"
	s.EPS = "Cosalud"
	s.AppointmentDates = []string{"2026-01-20", "2026-01-22"}
	s.AppointmentTime = "07:30"
	s.PickupAddress = "Carrera 19 #29-30"

	tc := buildTestContext(t, s, "Sí, confirmo")

	joined := strings.Join(tc.KnownData, "\n")
	for _, want := range []string{
		"Paciente: Luz Dary Ortiz",
		"Documento: CC 52123456",
		"EPS: Cosalud",
		"Fecha del servicio: mañana MARTES 20 de enero (y 1 fecha más)",
		"Hora: 07:30",
		"Dirección de recogida: Carrera 19 #29-30",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("known data missing %q in:\n%s", want, joined)
		}
	}
}

func TestBuildTurnContextMissingDateAlert(t *testing.T) {
	s := models.NewSession("ctx-2", models.DirectionOutbound)
	s.Phase = models.PhaseOutboundServiceConfirmation

	tc := buildTestContext(t, s, "aló")
	if !hasAlertPrefix(tc.Alerts, "FALTA FECHA") {
		t.Errorf("expected FALTA FECHA alert, got %v", tc.Alerts)
	}

	s.AppointmentDates = []string{"2026-01-20"}
	tc = buildTestContext(t, s, "aló")
	if hasAlertPrefix(tc.Alerts, "FALTA FECHA") {
		t.Errorf("alert present despite known date: %v", tc.Alerts)
	}
}

func TestBuildTurnContextAgeAlerts(t *testing.T) {
	s := models.NewSession("ctx-3", models.DirectionOutbound)
	s.Phase = models.PhaseOutboundLegalNotice
	s.ContactRelationship = "hija"

	tc := buildTestContext(t, s, "soy la hija")
	if !hasAlertPrefix(tc.Alerts, "VALIDAR EDAD") {
		t.Errorf("expected VALIDAR EDAD alert, got %v", tc.Alerts)
	}

	s.ContactAge = 15
	tc = buildTestContext(t, s, "tengo 15 años")
	if hasAlertPrefix(tc.Alerts, "VALIDAR EDAD") {
		t.Errorf("age known but VALIDAR EDAD still present: %v", tc.Alerts)
	}
	if !hasAlertPrefix(tc.Alerts, "MENOR DE EDAD") {
		t.Errorf("expected MENOR DE EDAD alert, got %v", tc.Alerts)
	}

	s.AdultConfirmed = true
	tc = buildTestContext(t, s, "le paso a mi mamá")
	if hasAlertPrefix(tc.Alerts, "MENOR DE EDAD") {
		t.Errorf("adult confirmed but minor alert still present: %v", tc.Alerts)
	}
}

func TestBuildTurnContextCoverageAlert(t *testing.T) {
	s := models.NewSession("ctx-7", models.DirectionOutbound)
	s.Phase = models.PhaseOutboundServiceConfirmation
	s.AppointmentDates = []string{"2026-01-20"}

	tc := buildTestContext(t, s, "sí, ahí estaré")
	if hasAlertPrefix(tc.Alerts, "ZONA SIN COBERTURA") {
		t.Errorf("coverage alert without an out-of-coverage address: %v", tc.Alerts)
	}

	s.PickupAddress = "Vereda La Unión km 4"
	tc = buildTestContext(t, s, "sí, ahí estaré")
	if !hasAlertPrefix(tc.Alerts, "ZONA SIN COBERTURA") {
		t.Errorf("expected ZONA SIN COBERTURA alert, got %v", tc.Alerts)
	}

	s.PickupAddress = ""
	s.CoverageIssue = true
	tc = buildTestContext(t, s, "vivo retirado del pueblo")
	if !hasAlertPrefix(tc.Alerts, "ZONA SIN COBERTURA") {
		t.Errorf("expected coverage alert from the session flag, got %v", tc.Alerts)
	}
}

func TestBuildTurnContextPolicyCap(t *testing.T) {
	s := models.NewSession("ctx-4", models.DirectionInbound)
	s.Phase = models.PhaseServiceCoordination
	s.EPS = "Sanitas" // blocking violation
	s.PickupAddress = "Vereda La Unión km 4"

	tc := buildTestContext(t, s, "quiero al conductor de siempre, servicio expreso")
	if len(tc.PolicySummaries) > maxPolicySummaries {
		t.Errorf("policy summaries = %d, cap is %d", len(tc.PolicySummaries), maxPolicySummaries)
	}
	if len(tc.PolicySummaries) == 0 {
		t.Error("no policy summaries despite violations")
	}
}

func TestBuildTurnContextCaseSelection(t *testing.T) {
	s := models.NewSession("ctx-5", models.DirectionInbound)
	s.Phase = models.PhaseIncidentManagement

	tc := buildTestContext(t, s, "tengo una queja, el conductor llegó tarde otra vez")
	if tc.Case == nil {
		t.Fatal("no case selected for driver complaint")
	}
	if tc.Case.ID != "5" {
		t.Errorf("selected case %s (%s), want the driver complaint case", tc.Case.ID, tc.Case.Title)
	}

	tc = buildTestContext(t, s, "xyzzy")
	if tc.Case != nil {
		t.Errorf("case selected for unmatchable message: %+v", tc.Case)
	}
}

func TestBuildTurnContextTone(t *testing.T) {
	s := models.NewSession("ctx-6", models.DirectionInbound)
	s.Phase = models.PhaseServiceCoordination

	tc := buildTestContext(t, s, "Estoy muy molesta, esto es inaceptable!!")
	if tc.Tone == "" {
		t.Error("no tone instruction for a frustrated message")
	}
	tc = buildTestContext(t, s, "la cita es el martes")
	if tc.Tone != "" {
		t.Errorf("tone instruction for a neutral message: %q", tc.Tone)
	}
}

func hasAlertPrefix(alerts []string, prefix string) bool {
	for _, a := range alerts {
		if strings.HasPrefix(a, prefix) {
			return true
		}
	}
	return false
}
