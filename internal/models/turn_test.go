package models

import (
	"errors"
	"testing"
)

func TestParseTurnOutputValid(t *testing.T) {
	raw := `{
		"agent_response": "Perfecto, su servicio queda confirmado.",
		"next_phase": "OUTBOUND_CLOSING",
		"requires_escalation": false,
		"extracted": {
			"service_confirmed": true,
			"confirmation_status": "Confirmado",
			"contact_age": "42"
		}
	}`

	out, err := ParseTurnOutput(raw)
	if err != nil {
		t.Fatalf("ParseTurnOutput failed: %v", err)
	}
	if out.NextPhase != PhaseOutboundClosing {
		t.Errorf("NextPhase = %s", out.NextPhase)
	}
	if out.Extracted == nil || out.Extracted.ServiceConfirmed == nil || !*out.Extracted.ServiceConfirmed {
		t.Error("service_confirmed not parsed")
	}
	if out.Extracted.ContactAge == nil || int(*out.Extracted.ContactAge) != 42 {
		t.Error("quoted contact_age not parsed as integer")
	}
}

func TestParseTurnOutputStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"agent_response\": \"Hola\", \"next_phase\": \"IDENTIFICATION\"}\n```"
	out, err := ParseTurnOutput(raw)
	if err != nil {
		t.Fatalf("ParseTurnOutput failed: %v", err)
	}
	if out.AgentResponse != "Hola" {
		t.Errorf("AgentResponse = %q", out.AgentResponse)
	}
}

func TestParseTurnOutputRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"truncated json", `{"agent_response": "hola", "next_ph`},
		{"plain text", "Claro, con gusto le ayudo."},
		{"missing agent_response", `{"next_phase": "CLOSING"}`},
		{"missing next_phase", `{"agent_response": "hola"}`},
		{"unknown next_phase", `{"agent_response": "hola", "next_phase": "TELEPORT"}`},
		{"unknown top-level key", `{"agent_response": "hola", "next_phase": "CLOSING", "mood": "happy"}`},
		{"unknown extracted key", `{"agent_response": "hola", "next_phase": "CLOSING", "extracted": {"favorite_color": "azul"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTurnOutput(tt.raw); !errors.Is(err, ErrMalformedModelOutput) {
				t.Errorf("ParseTurnOutput(%q) error = %v, want ErrMalformedModelOutput", tt.raw, err)
			}
		})
	}
}

func TestParseTurnOutputEscalation(t *testing.T) {
	raw := `{
		"agent_response": "Voy a comunicarle con un asesor.",
		"next_phase": "ESCALATION",
		"requires_escalation": true,
		"escalation_reason": "Solicitud de servicio expreso"
	}`
	out, err := ParseTurnOutput(raw)
	if err != nil {
		t.Fatalf("ParseTurnOutput failed: %v", err)
	}
	if !out.RequiresEscalation || out.EscalationReason == "" {
		t.Error("escalation fields not parsed")
	}
}

func TestExtractedBoolPointers(t *testing.T) {
	s := NewSession("bool-merge", DirectionOutbound)
	s.ApplyExtracted(&Extracted{
		ServiceConfirmed: boolPtr(true),
		PatientAway:      boolPtr(true),
		WrongNumber:      boolPtr(false),
	})
	if !s.ServiceConfirmed {
		t.Error("ServiceConfirmed not set")
	}
	if !s.PatientAway {
		t.Error("PatientAway not set")
	}
	if s.WrongNumber {
		t.Error("false WrongNumber flipped the flag")
	}
}
