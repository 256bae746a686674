package models

import "errors"

// Error variables for better error handling and testability
var (
	ErrInvalidPhase         = errors.New("invalid conversation phase")
	ErrInvalidDirection     = errors.New("invalid call direction")
	ErrIllegalTransition    = errors.New("illegal phase transition")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionEnded         = errors.New("session already ended")
	ErrTurnInProgress       = errors.New("another turn is in progress for this session")
	ErrRecordNotFound       = errors.New("service record not found")
	ErrInvalidPhoneNumber   = errors.New("phone number must be 10 digits")
	ErrEmptyMessage         = errors.New("message cannot be empty")
	ErrMessageTooLong       = errors.New("message exceeds maximum length")
	ErrMalformedModelOutput = errors.New("malformed model output")
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// MessageRequest is the payload for one conversational turn.
type MessageRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// Validate checks the turn payload before any processing happens.
func (r *MessageRequest) Validate() error {
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// MessageResponse is the result of one conversational turn.
type MessageResponse struct {
	SessionID          string            `json:"session_id"`
	AgentResponse      string            `json:"agent_response"`
	ConversationPhase  ConversationPhase `json:"conversation_phase"`
	RequiresEscalation bool              `json:"requires_escalation"`
	TurnCount          int               `json:"turn_count"`
}

// OutboundCallRequest starts a confirmation call for a scheduled service.
type OutboundCallRequest struct {
	Phone string `json:"phone"`
}

// OutboundCallResponse carries the opening turn of an outbound call.
type OutboundCallResponse struct {
	SessionID     string `json:"session_id"`
	AgentResponse string `json:"agent_response"`
	PatientName   string `json:"patient_name,omitempty"`
}

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
