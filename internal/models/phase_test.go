package models

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from ConversationPhase
		to   ConversationPhase
		want bool
	}{
		{"greeting to identification", PhaseGreeting, PhaseIdentification, true},
		{"greeting skips to coordination", PhaseGreeting, PhaseServiceCoordination, false},
		{"identification to legal notice", PhaseIdentification, PhaseLegalNotice, true},
		{"identification to escalation", PhaseIdentification, PhaseEscalation, true},
		{"legal notice to coordination", PhaseLegalNotice, PhaseServiceCoordination, true},
		{"coordination to incident", PhaseServiceCoordination, PhaseIncidentManagement, true},
		{"incident loops back to coordination", PhaseIncidentManagement, PhaseServiceCoordination, true},
		{"incident to closing", PhaseIncidentManagement, PhaseClosing, true},
		{"escalation to closing", PhaseEscalation, PhaseClosing, true},
		{"closing to survey", PhaseClosing, PhaseSurvey, true},
		{"survey to end", PhaseSurvey, PhaseEnd, true},
		{"self transition always legal", PhaseServiceCoordination, PhaseServiceCoordination, true},
		{"end is terminal", PhaseEnd, PhaseGreeting, false},
		{"end self transition", PhaseEnd, PhaseEnd, true},
		{"no backward jump", PhaseClosing, PhaseGreeting, false},
		{"outbound greeting to legal notice", PhaseOutboundGreeting, PhaseOutboundLegalNotice, true},
		{"outbound legal notice to confirmation", PhaseOutboundLegalNotice, PhaseOutboundServiceConfirmation, true},
		{"outbound legal notice early special case", PhaseOutboundLegalNotice, PhaseOutboundSpecialCases, true},
		{"outbound special cases loop back", PhaseOutboundSpecialCases, PhaseOutboundServiceConfirmation, true},
		{"outbound closing skips survey", PhaseOutboundClosing, PhaseSurvey, false},
		{"outbound closing to end", PhaseOutboundClosing, PhaseEnd, true},
		{"no crossing into outbound flow", PhaseGreeting, PhaseOutboundGreeting, false},
		{"unknown phase", ConversationPhase("BOGUS"), PhaseEnd, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestNextPhasesIncludesSelf(t *testing.T) {
	for phase := range phaseTransitions {
		next := NextPhases(phase)
		found := false
		for _, p := range next {
			if p == phase {
				found = true
			}
		}
		if !found {
			t.Errorf("NextPhases(%s) does not include the phase itself", phase)
		}
		for _, p := range next {
			if !CanTransition(phase, p) {
				t.Errorf("NextPhases(%s) lists %s but CanTransition rejects it", phase, p)
			}
		}
	}
}

func TestEndHasNoExits(t *testing.T) {
	next := NextPhases(PhaseEnd)
	if len(next) != 1 || next[0] != PhaseEnd {
		t.Errorf("NextPhases(END) = %v, want only END itself", next)
	}
	if !IsTerminal(PhaseEnd) {
		t.Error("IsTerminal(END) = false, want true")
	}
	if IsTerminal(PhaseClosing) {
		t.Error("IsTerminal(CLOSING) = true, want false")
	}
}

func TestInitialPhase(t *testing.T) {
	if got := InitialPhase(DirectionInbound); got != PhaseGreeting {
		t.Errorf("InitialPhase(INBOUND) = %s, want GREETING", got)
	}
	if got := InitialPhase(DirectionOutbound); got != PhaseOutboundGreeting {
		t.Errorf("InitialPhase(OUTBOUND) = %s, want OUTBOUND_GREETING", got)
	}
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("SERVICE_COORDINATION")
	if err != nil {
		t.Fatalf("ParsePhase valid value failed: %v", err)
	}
	if p != PhaseServiceCoordination {
		t.Errorf("ParsePhase = %s, want SERVICE_COORDINATION", p)
	}
	if _, err := ParsePhase("NOT_A_PHASE"); err == nil {
		t.Error("ParsePhase accepted unknown value")
	}
}

func TestIsOutbound(t *testing.T) {
	if PhaseGreeting.IsOutbound() {
		t.Error("GREETING reported as outbound")
	}
	if !PhaseOutboundServiceConfirmation.IsOutbound() {
		t.Error("OUTBOUND_SERVICE_CONFIRMATION not reported as outbound")
	}
}
