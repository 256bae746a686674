package models

import (
	"fmt"
	"strings"
	"time"
)

// Conversation limits.
const (
	// MaxConversationTurns caps runaway conversations; the coordinator closes
	// the session once the cap is reached.
	MaxConversationTurns = 50
	// MaxMessageLength defines the maximum accepted length for a single user message.
	MaxMessageLength = 4096
)

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single conversation entry. The message list is append-only.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// Incident records a service problem reported during the call.
type Incident struct {
	Summary    string    `json:"summary"`
	ReportedAt time.Time `json:"reported_at"`
}

// Confirmation statuses written back to the service record after an
// outbound call.
const (
	StatusPending       = "Pendiente"
	StatusConfirmed     = "Confirmado"
	StatusReschedule    = "Reprogramar"
	StatusRejected      = "Rechazado"
	StatusNoAnswer      = "No contesta"
	StatusOutOfCoverage = "Zona sin cobertura"
)

// ConversationSession is the full state of one call. It is the unit of
// persistence: stores serialize it as a single JSON document.
//
// Extracted fields are merge-only: once a field holds a value, later turns
// may overwrite it with a new value but never clear it back to empty.
type ConversationSession struct {
	SessionID string            `json:"session_id"`
	Direction CallDirection     `json:"direction"`
	Phase     ConversationPhase `json:"phase"`

	// Patient and caller identity.
	PatientFullName     string `json:"patient_full_name,omitempty"`
	DocumentType        string `json:"document_type,omitempty"`
	DocumentNumber      string `json:"document_number,omitempty"`
	EPS                 string `json:"eps,omitempty"`
	ContactName         string `json:"contact_name,omitempty"`
	ContactRelationship string `json:"contact_relationship,omitempty"`
	ContactAge          int    `json:"contact_age,omitempty"`
	AdultConfirmed      bool   `json:"adult_confirmed,omitempty"`

	// Service being coordinated or confirmed.
	ServiceType         string   `json:"service_type,omitempty"`
	TreatmentType       string   `json:"treatment_type,omitempty"`
	Frequency           string   `json:"frequency,omitempty"`
	AppointmentDates    []string `json:"appointment_dates,omitempty"`
	AppointmentTime     string   `json:"appointment_time,omitempty"`
	PickupAddress       string   `json:"pickup_address,omitempty"`
	DestinationFacility string   `json:"destination_facility,omitempty"`
	TransportModality   string   `json:"transport_modality,omitempty"`
	CompanionCount      int      `json:"companion_count,omitempty"`

	// Operational flags.
	RequiresEscalation      bool   `json:"requires_escalation,omitempty"`
	EscalationReason        string `json:"escalation_reason,omitempty"`
	ServiceConfirmed        bool   `json:"service_confirmed,omitempty"`
	ConfirmationStatus      string `json:"confirmation_status,omitempty"`
	LegalNoticeAcknowledged bool   `json:"legal_notice_acknowledged,omitempty"`
	SurveyCompleted         bool   `json:"survey_completed,omitempty"`
	SpecialNeeds            string `json:"special_needs,omitempty"`
	PatientAway             bool   `json:"patient_away,omitempty"`
	ReturnDate              string `json:"return_date,omitempty"`
	WrongNumber             bool   `json:"wrong_number,omitempty"`
	CoverageIssue           bool   `json:"coverage_issue,omitempty"`

	// Append-only free-text notes, one timestamped line per entry.
	Observations string     `json:"observations,omitempty"`
	Incidents    []Incident `json:"incidents,omitempty"`

	Messages  []Message `json:"messages"`
	TurnCount int       `json:"turn_count"`

	// RecordRow links an outbound session back to its service record; -1
	// for inbound sessions.
	RecordRow int `json:"record_row"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a fresh session in the initial phase for the direction.
func NewSession(id string, direction CallDirection) *ConversationSession {
	now := time.Now().UTC()
	return &ConversationSession{
		SessionID: id,
		Direction: direction,
		Phase:     InitialPhase(direction),
		RecordRow: -1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendMessage adds a conversation entry and bumps UpdatedAt.
func (s *ConversationSession) AppendMessage(role MessageRole, content string) {
	now := time.Now().UTC()
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: now})
	s.UpdatedAt = now
}

// AppendObservation adds a timestamped note. Existing observations are never
// overwritten.
func (s *ConversationSession) AppendObservation(text string) {
	if text == "" {
		return
	}
	entry := fmt.Sprintf("[%s] %s", time.Now().UTC().Format("2006-01-02 15:04"), text)
	if s.Observations == "" {
		s.Observations = entry
	} else {
		s.Observations = s.Observations + " | " + entry
	}
	s.UpdatedAt = time.Now().UTC()
}

// AppendIncident records a reported service problem.
func (s *ConversationSession) AppendIncident(summary string) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return
	}
	s.Incidents = append(s.Incidents, Incident{Summary: summary, ReportedAt: time.Now().UTC()})
	s.UpdatedAt = time.Now().UTC()
}

// LastUserMessage returns the content of the most recent user message, or ""
// when no user message exists yet.
func (s *ConversationSession) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// MinorContact reports whether the caller is known to be under 18 and no
// responsible adult has been confirmed.
func (s *ConversationSession) MinorContact() bool {
	return s.ContactAge > 0 && s.ContactAge < 18 && !s.AdultConfirmed
}

// Clone returns a deep copy of the session. Turn execution mutates a clone
// and commits it only after all validations pass.
func (s *ConversationSession) Clone() *ConversationSession {
	c := *s
	c.AppointmentDates = append([]string(nil), s.AppointmentDates...)
	c.Messages = append([]Message(nil), s.Messages...)
	c.Incidents = append([]Incident(nil), s.Incidents...)
	return &c
}

// ApplyExtracted merges model-extracted fields into the session. Nil and
// empty values never clear a previously set field.
func (s *ConversationSession) ApplyExtracted(e *Extracted) {
	if e == nil {
		return
	}
	setString(&s.PatientFullName, e.PatientFullName)
	setString(&s.DocumentType, e.DocumentType)
	setString(&s.DocumentNumber, e.DocumentNumber)
	setString(&s.EPS, e.EPS)
	setString(&s.ContactName, e.ContactName)
	setString(&s.ContactRelationship, e.ContactRelationship)
	if e.ContactAge != nil && *e.ContactAge > 0 {
		s.ContactAge = int(*e.ContactAge)
	}
	if e.AdultConfirmed != nil && *e.AdultConfirmed {
		s.AdultConfirmed = true
	}

	setString(&s.ServiceType, e.ServiceType)
	setString(&s.TreatmentType, e.TreatmentType)
	setString(&s.Frequency, e.Frequency)
	if dates := splitDates(e.AppointmentDate); len(dates) > 0 {
		s.AppointmentDates = dates
	}
	setString(&s.AppointmentTime, e.AppointmentTime)
	setString(&s.PickupAddress, e.PickupAddress)
	setString(&s.DestinationFacility, e.DestinationFacility)
	setString(&s.TransportModality, e.TransportModality)
	if e.CompanionCount != nil && *e.CompanionCount > 0 {
		s.CompanionCount = int(*e.CompanionCount)
	}

	if e.ServiceConfirmed != nil {
		s.ServiceConfirmed = *e.ServiceConfirmed
	}
	setString(&s.ConfirmationStatus, e.ConfirmationStatus)
	if e.LegalNoticeAcknowledged != nil && *e.LegalNoticeAcknowledged {
		s.LegalNoticeAcknowledged = true
	}
	if e.SurveyCompleted != nil && *e.SurveyCompleted {
		s.SurveyCompleted = true
	}
	setString(&s.SpecialNeeds, e.SpecialNeeds)
	if e.PatientAway != nil && *e.PatientAway {
		s.PatientAway = true
	}
	setString(&s.ReturnDate, e.ReturnDate)
	if e.WrongNumber != nil && *e.WrongNumber {
		s.WrongNumber = true
	}
	if e.CoverageIssue != nil && *e.CoverageIssue {
		s.CoverageIssue = true
	}
	if e.NewAppointmentDate != nil && *e.NewAppointmentDate != "" {
		s.AppointmentDates = []string{*e.NewAppointmentDate}
		s.AppendObservation("Fecha de cita actualizada: " + *e.NewAppointmentDate)
	}
	if e.IncidentSummary != nil && *e.IncidentSummary != "" {
		s.AppendIncident(*e.IncidentSummary)
	}
	s.UpdatedAt = time.Now().UTC()
}

// setString overwrites dst only when the extracted value is non-empty.
func setString(dst *string, src *string) {
	if src == nil {
		return
	}
	if v := strings.TrimSpace(*src); v != "" {
		*dst = v
	}
}

// splitDates splits a comma-separated date string into trimmed entries.
func splitDates(src *string) []string {
	if src == nil {
		return nil
	}
	var dates []string
	for _, part := range strings.Split(*src, ",") {
		if part = strings.TrimSpace(part); part != "" {
			dates = append(dates, part)
		}
	}
	return dates
}
