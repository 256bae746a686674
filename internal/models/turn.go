package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// turnValidator validates parsed model output before any field reaches the
// session.
var turnValidator = validator.New(validator.WithRequiredStructEnabled())

// FlexInt is an int that also accepts a numeric JSON string. Model output
// occasionally quotes ages ("15") despite the schema asking for a number.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid integer value %q: %w", s, err)
		}
		*f = FlexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

// Extracted carries the fields the model pulled out of the latest user
// message. Every field is optional; absent or empty fields leave session
// state untouched.
type Extracted struct {
	// Identity.
	PatientFullName     *string  `json:"patient_full_name,omitempty"`
	DocumentType        *string  `json:"document_type,omitempty"`
	DocumentNumber      *string  `json:"document_number,omitempty"`
	EPS                 *string  `json:"eps,omitempty"`
	ContactName         *string  `json:"contact_name,omitempty"`
	ContactRelationship *string  `json:"contact_relationship,omitempty"`
	ContactAge          *FlexInt `json:"contact_age,omitempty"`
	AdultConfirmed      *bool    `json:"adult_confirmed,omitempty"`

	// Service.
	ServiceType         *string  `json:"service_type,omitempty"`
	TreatmentType       *string  `json:"treatment_type,omitempty"`
	Frequency           *string  `json:"frequency,omitempty"`
	AppointmentDate     *string  `json:"appointment_date,omitempty"` // comma-separated for multiple dates
	AppointmentTime     *string  `json:"appointment_time,omitempty"`
	PickupAddress       *string  `json:"pickup_address,omitempty"`
	DestinationFacility *string  `json:"destination_facility,omitempty"`
	TransportModality   *string  `json:"transport_modality,omitempty"`
	CompanionCount      *FlexInt `json:"companion_count,omitempty"`

	// Operational.
	ServiceConfirmed        *bool   `json:"service_confirmed,omitempty"`
	ConfirmationStatus      *string `json:"confirmation_status,omitempty"`
	LegalNoticeAcknowledged *bool   `json:"legal_notice_acknowledged,omitempty"`
	SurveyCompleted         *bool   `json:"survey_completed,omitempty"`
	SpecialNeeds            *string `json:"special_needs,omitempty"`
	PatientAway             *bool   `json:"patient_away,omitempty"`
	ReturnDate              *string `json:"return_date,omitempty"`
	WrongNumber             *bool   `json:"wrong_number,omitempty"`
	CoverageIssue           *bool   `json:"coverage_issue,omitempty"`
	NewAppointmentDate      *string `json:"new_appointment_date,omitempty"`
	IncidentSummary         *string `json:"incident_summary,omitempty"`
}

// TurnOutput is the structured result of one model call.
type TurnOutput struct {
	AgentResponse      string            `json:"agent_response" validate:"required"`
	NextPhase          ConversationPhase `json:"next_phase" validate:"required"`
	RequiresEscalation bool              `json:"requires_escalation"`
	EscalationReason   string            `json:"escalation_reason,omitempty"`
	Extracted          *Extracted        `json:"extracted,omitempty"`
}

// ParseTurnOutput decodes and validates raw model output. Unknown keys are
// rejected so a drifting model cannot smuggle unvalidated fields into the
// session.
func ParseTurnOutput(raw string) (*TurnOutput, error) {
	raw = stripCodeFence(raw)

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var out TurnOutput
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
	}
	if err := turnValidator.Struct(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
	}
	if !IsValidPhase(out.NextPhase) {
		return nil, fmt.Errorf("%w: unknown next_phase %q", ErrMalformedModelOutput, out.NextPhase)
	}
	return &out, nil
}

// stripCodeFence removes a markdown ```json fence if the model wrapped its
// output in one.
func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}
