// Package models defines the core data structures for TransportMedAgent.
//
// It includes the conversation phase machine, the session record shared
// across modules, and the structured turn output produced by the language
// model.
package models

import "fmt"

// ConversationPhase identifies a stage of the call flow.
type ConversationPhase string

const (
	// Inbound phases (patient or caregiver calls the line).
	PhaseGreeting            ConversationPhase = "GREETING"
	PhaseIdentification      ConversationPhase = "IDENTIFICATION"
	PhaseLegalNotice         ConversationPhase = "LEGAL_NOTICE"
	PhaseServiceCoordination ConversationPhase = "SERVICE_COORDINATION"
	PhaseIncidentManagement  ConversationPhase = "INCIDENT_MANAGEMENT"
	PhaseEscalation          ConversationPhase = "ESCALATION"
	PhaseClosing             ConversationPhase = "CLOSING"
	PhaseSurvey              ConversationPhase = "SURVEY"
	PhaseEnd                 ConversationPhase = "END"

	// Outbound phases (agent calls to confirm a scheduled service).
	PhaseOutboundGreeting            ConversationPhase = "OUTBOUND_GREETING"
	PhaseOutboundLegalNotice         ConversationPhase = "OUTBOUND_LEGAL_NOTICE"
	PhaseOutboundServiceConfirmation ConversationPhase = "OUTBOUND_SERVICE_CONFIRMATION"
	PhaseOutboundSpecialCases        ConversationPhase = "OUTBOUND_SPECIAL_CASES"
	PhaseOutboundClosing             ConversationPhase = "OUTBOUND_CLOSING"
)

// CallDirection indicates who initiated the call.
type CallDirection string

const (
	DirectionInbound  CallDirection = "INBOUND"
	DirectionOutbound CallDirection = "OUTBOUND"
)

// phaseTransitions is the adjacency table of the phase machine. A phase may
// always remain in itself; self-edges are therefore not listed here.
var phaseTransitions = map[ConversationPhase][]ConversationPhase{
	PhaseGreeting:            {PhaseIdentification},
	PhaseIdentification:      {PhaseLegalNotice, PhaseEscalation},
	PhaseLegalNotice:         {PhaseServiceCoordination},
	PhaseServiceCoordination: {PhaseIncidentManagement, PhaseEscalation, PhaseClosing},
	PhaseIncidentManagement:  {PhaseServiceCoordination, PhaseEscalation, PhaseClosing},
	PhaseEscalation:          {PhaseClosing},
	PhaseClosing:             {PhaseSurvey},
	PhaseSurvey:              {PhaseEnd},
	PhaseEnd:                 {},

	PhaseOutboundGreeting: {PhaseOutboundLegalNotice},
	// Jumping straight to special cases is allowed when the user raises an
	// issue early (complaint, date change, patient away).
	PhaseOutboundLegalNotice:         {PhaseOutboundServiceConfirmation, PhaseOutboundSpecialCases},
	PhaseOutboundServiceConfirmation: {PhaseOutboundSpecialCases, PhaseOutboundClosing},
	PhaseOutboundSpecialCases:        {PhaseOutboundServiceConfirmation, PhaseOutboundClosing},
	// Outbound calls skip the survey.
	PhaseOutboundClosing: {PhaseEnd},
}

// phaseDisplayNames are the Spanish labels used in prompts and logs.
var phaseDisplayNames = map[ConversationPhase]string{
	PhaseGreeting:                    "Saludo",
	PhaseIdentification:              "Identificación",
	PhaseLegalNotice:                 "Aviso legal",
	PhaseServiceCoordination:         "Coordinación de servicio",
	PhaseIncidentManagement:          "Gestión de novedades",
	PhaseEscalation:                  "Escalamiento",
	PhaseClosing:                     "Despedida",
	PhaseSurvey:                      "Encuesta",
	PhaseEnd:                         "Fin",
	PhaseOutboundGreeting:            "Saludo saliente",
	PhaseOutboundLegalNotice:         "Aviso legal saliente",
	PhaseOutboundServiceConfirmation: "Confirmación de servicio",
	PhaseOutboundSpecialCases:        "Casos especiales",
	PhaseOutboundClosing:             "Despedida saliente",
}

// IsValidPhase reports whether p is a known conversation phase.
func IsValidPhase(p ConversationPhase) bool {
	_, ok := phaseTransitions[p]
	return ok
}

// ParsePhase converts a raw string (e.g. from model output) into a
// ConversationPhase, failing on unknown values.
func ParsePhase(s string) (ConversationPhase, error) {
	p := ConversationPhase(s)
	if !IsValidPhase(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
	return p, nil
}

// ParseDirection converts a raw string into a CallDirection.
func ParseDirection(s string) (CallDirection, error) {
	switch CallDirection(s) {
	case DirectionInbound:
		return DirectionInbound, nil
	case DirectionOutbound:
		return DirectionOutbound, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// InitialPhase returns the phase a fresh session starts in for the given
// call direction.
func InitialPhase(d CallDirection) ConversationPhase {
	if d == DirectionOutbound {
		return PhaseOutboundGreeting
	}
	return PhaseGreeting
}

// CanTransition reports whether moving from one phase to another is legal.
// Remaining in the current phase is always legal; END accepts no exits.
func CanTransition(from, to ConversationPhase) bool {
	if !IsValidPhase(from) || !IsValidPhase(to) {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range phaseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextPhases returns the phases reachable from p, including p itself.
// END returns only itself.
func NextPhases(p ConversationPhase) []ConversationPhase {
	targets := phaseTransitions[p]
	out := make([]ConversationPhase, 0, len(targets)+1)
	out = append(out, p)
	out = append(out, targets...)
	return out
}

// IsTerminal reports whether p is the terminal phase.
func IsTerminal(p ConversationPhase) bool {
	return p == PhaseEnd
}

// IsOutbound reports whether p belongs to the outbound flow.
func (p ConversationPhase) IsOutbound() bool {
	switch p {
	case PhaseOutboundGreeting, PhaseOutboundLegalNotice, PhaseOutboundServiceConfirmation,
		PhaseOutboundSpecialCases, PhaseOutboundClosing:
		return true
	default:
		return false
	}
}

// DisplayName returns the Spanish label for the phase, falling back to the
// raw value for unknown phases.
func (p ConversationPhase) DisplayName() string {
	if name, ok := phaseDisplayNames[p]; ok {
		return name
	}
	return string(p)
}
