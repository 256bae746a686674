package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

// mockService is a canned ConversationService.
type mockService struct {
	messageResp  *models.MessageResponse
	messageErr   error
	outboundResp *models.OutboundCallResponse
	outboundErr  error
	pendingResp  []*models.OutboundCallResponse
	pendingErr   error
	session      *models.ConversationSession
	sessionErr   error

	gotSessionID string
	gotMessage   string
	gotPhone     string
	pendingCalls int
}

func (m *mockService) ProcessMessage(ctx context.Context, sessionID, message string) (*models.MessageResponse, error) {
	m.gotSessionID, m.gotMessage = sessionID, message
	return m.messageResp, m.messageErr
}

func (m *mockService) StartOutboundCall(ctx context.Context, phone string) (*models.OutboundCallResponse, error) {
	m.gotPhone = phone
	return m.outboundResp, m.outboundErr
}

func (m *mockService) StartPendingOutboundCalls(ctx context.Context) ([]*models.OutboundCallResponse, error) {
	m.pendingCalls++
	return m.pendingResp, m.pendingErr
}

func (m *mockService) GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	m.gotSessionID = sessionID
	return m.session, m.sessionErr
}

func serveRequest(t *testing.T, svc ConversationService, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	NewServer(svc).routes().ServeHTTP(rec, req)
	return rec
}

func decodeAPIResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestMessageHandler(t *testing.T) {
	svc := &mockService{messageResp: &models.MessageResponse{
		SessionID:         "s-1",
		AgentResponse:     "Buenos días",
		ConversationPhase: models.PhaseIdentification,
		TurnCount:         1,
	}}

	rec := serveRequest(t, svc, http.MethodPost, "/conversation/message",
		`{"session_id":"s-1","message":"hola"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeAPIResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("status = %q", resp.Status)
	}
	if svc.gotSessionID != "s-1" || svc.gotMessage != "hola" {
		t.Errorf("service called with session=%q message=%q", svc.gotSessionID, svc.gotMessage)
	}
}

func TestMessageHandlerValidation(t *testing.T) {
	svc := &mockService{}

	rec := serveRequest(t, svc, http.MethodPost, "/conversation/message", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d", rec.Code)
	}

	rec = serveRequest(t, svc, http.MethodPost, "/conversation/message", `{"message":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d", rec.Code)
	}
}

func TestMessageHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{models.ErrSessionNotFound, http.StatusNotFound},
		{models.ErrSessionEnded, http.StatusConflict},
		{models.ErrTurnInProgress, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := &mockService{messageErr: tt.err}
		rec := serveRequest(t, svc, http.MethodPost, "/conversation/message", `{"session_id":"x","message":"hola"}`)
		if rec.Code != tt.code {
			t.Errorf("error %v mapped to %d, want %d", tt.err, rec.Code, tt.code)
		}
	}
}

func TestOutboundCallHandler(t *testing.T) {
	svc := &mockService{outboundResp: &models.OutboundCallResponse{
		SessionID:     "out-1",
		AgentResponse: "Buenos días, ¿hablo con Pedro Ortiz?",
		PatientName:   "Luz Dary Ortiz",
	}}

	rec := serveRequest(t, svc, http.MethodPost, "/calls/outbound", `{"phone":"3001234567"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.gotPhone != "3001234567" {
		t.Errorf("service called with phone %q", svc.gotPhone)
	}

	rec = serveRequest(t, svc, http.MethodPost, "/calls/outbound", `{"phone":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing phone status = %d", rec.Code)
	}

	svc = &mockService{outboundErr: models.ErrRecordNotFound}
	rec = serveRequest(t, svc, http.MethodPost, "/calls/outbound", `{"phone":"3000000000"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown record status = %d", rec.Code)
	}
}

func TestPendingCallsHandler(t *testing.T) {
	svc := &mockService{pendingResp: []*models.OutboundCallResponse{
		{SessionID: "out-1", PatientName: "Luz Dary Ortiz"},
		{SessionID: "out-2", PatientName: "Carlos Gómez"},
	}}

	rec := serveRequest(t, svc, http.MethodPost, "/calls/outbound/pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.pendingCalls != 1 {
		t.Errorf("service called %d times, want 1", svc.pendingCalls)
	}
	if !strings.Contains(rec.Body.String(), `"opened":2`) {
		t.Errorf("response missing opened count: %s", rec.Body.String())
	}

	svc = &mockService{pendingErr: context.DeadlineExceeded}
	rec = serveRequest(t, svc, http.MethodPost, "/calls/outbound/pending", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("batch failure status = %d", rec.Code)
	}
}

func TestSessionHandler(t *testing.T) {
	session := models.NewSession("s-9", models.DirectionInbound)
	svc := &mockService{session: session}

	rec := serveRequest(t, svc, http.MethodGet, "/session/s-9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.gotSessionID != "s-9" {
		t.Errorf("path value not passed through: %q", svc.gotSessionID)
	}

	svc = &mockService{sessionErr: models.ErrSessionNotFound}
	rec = serveRequest(t, svc, http.MethodGet, "/session/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing session status = %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	rec := serveRequest(t, &mockService{}, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeAPIResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("health status = %q", resp.Status)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := serveRequest(t, &mockService{}, http.MethodGet, "/conversation/message", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on message endpoint status = %d, want 405", rec.Code)
	}
}
