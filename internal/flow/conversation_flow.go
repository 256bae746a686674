package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
	"github.com/BTreeMap/TransportMedAgent/internal/policy"
	"github.com/BTreeMap/TransportMedAgent/internal/records"
	"github.com/BTreeMap/TransportMedAgent/internal/refdata"
	"github.com/BTreeMap/TransportMedAgent/internal/store"
)

// turnGenerator is the slice of the generation client the coordinator needs.
type turnGenerator interface {
	GenerateTurn(ctx context.Context, systemPrompt string, history []models.Message) (string, error)
}

// Coordinator drives conversations: it owns the turn pipeline from user
// message to persisted session.
type Coordinator struct {
	store     store.Store
	gen       turnGenerator
	engine    *policy.Engine
	retriever *refdata.Retriever
	records   records.Source
	cfg       PromptConfig
	now       func() time.Time
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithPolicyEngine replaces the default policy engine.
func WithPolicyEngine(e *policy.Engine) Option {
	return func(c *Coordinator) { c.engine = e }
}

// WithRetriever replaces the default case retriever.
func WithRetriever(r *refdata.Retriever) Option {
	return func(c *Coordinator) { c.retriever = r }
}

// WithRecordsSource attaches the service-record source used by outbound
// calls. Without one, StartOutboundCall fails and no writeback happens.
func WithRecordsSource(src records.Source) Option {
	return func(c *Coordinator) { c.records = src }
}

// WithPromptConfig overrides the operator identity in prompts.
func WithPromptConfig(cfg PromptConfig) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a conversation coordinator.
func NewCoordinator(st store.Store, gen turnGenerator, opts ...Option) *Coordinator {
	c := &Coordinator{
		store: st,
		gen:   gen,
		cfg: PromptConfig{
			AgentName:   DefaultAgentName,
			CompanyName: DefaultCompanyName,
			EPSName:     policy.DefaultEPSName,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = policy.NewEngine(policy.WithEPSName(c.cfg.EPSName))
	}
	if c.retriever == nil {
		c.retriever = refdata.NewRetriever()
	}
	slog.Debug("Coordinator.NewCoordinator: coordinator created",
		"agent", c.cfg.AgentName, "company", c.cfg.CompanyName, "eps", c.cfg.EPSName,
		"records_attached", c.records != nil)
	return c
}

// ProcessMessage runs one conversational turn. An empty session ID starts a
// fresh inbound conversation; an unknown non-empty ID is an error.
func (c *Coordinator) ProcessMessage(ctx context.Context, sessionID, message string) (*models.MessageResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, models.ErrEmptyMessage
	}
	if len(message) > models.MaxMessageLength {
		return nil, models.ErrMessageTooLong
	}

	session, err := c.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminal(session.Phase) {
		return nil, models.ErrSessionEnded
	}

	// Backends that support it serialize turns per session across processes.
	if locker, ok := c.store.(store.TurnLocker); ok {
		acquired, err := locker.AcquireTurnLock(ctx, session.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock session %s: %w", session.SessionID, err)
		}
		if !acquired {
			return nil, models.ErrTurnInProgress
		}
		defer locker.ReleaseTurnLock(ctx, session.SessionID)
	}

	// The pipeline mutates a clone; the stored session is untouched until
	// the turn commits.
	s := session.Clone()
	s.AppendMessage(models.RoleUser, message)

	if s.TurnCount >= models.MaxConversationTurns {
		// Administrative close: jumps straight to END from any phase,
		// outside the normal transition table, leaving a trace in the notes.
		s.AppendObservation("Cierre administrativo por límite de turnos")
		return c.commitTurn(ctx, s, FallbackMaxTurns, models.PhaseEnd)
	}

	eval := c.engine.Evaluate(s, message)
	tc := BuildTurnContext(s, message, eval, c.retriever, c.now())
	prompt := BuildSystemPrompt(c.cfg, s, tc)

	raw, err := c.gen.GenerateTurn(ctx, prompt, s.Messages)
	if err != nil {
		slog.Error("Coordinator.ProcessMessage: generation failed", "error", err, "session_id", s.SessionID)
		s.RequiresEscalation = true
		if s.EscalationReason == "" {
			s.EscalationReason = "fallo técnico de generación"
		}
		return c.commitTurn(ctx, s, FallbackTechnical, s.Phase)
	}

	out, err := models.ParseTurnOutput(raw)
	if err != nil {
		slog.Warn("Coordinator.ProcessMessage: unusable model output, holding phase",
			"error", err, "session_id", s.SessionID, "phase", s.Phase)
		return c.commitTurn(ctx, s, FallbackRepeat, s.Phase)
	}

	next := c.resolveNextPhase(s, out.NextPhase)

	s.ApplyExtracted(out.Extracted)
	if out.RequiresEscalation {
		s.RequiresEscalation = true
		if out.EscalationReason != "" {
			s.EscalationReason = out.EscalationReason
		}
	}

	response := out.AgentResponse
	if g := c.engine.Guard(s, message, out); g.Overridden {
		s.AppendObservation("Corrección de políticas: " + strings.Join(g.Reasons, "; "))
		if g.HoldPhase {
			next = s.Phase
		}
		if g.ForceEscalation {
			s.RequiresEscalation = true
			if s.EscalationReason == "" {
				s.EscalationReason = strings.Join(g.Reasons, "; ")
			}
		}
		if g.SuppressConfirmation {
			s.ServiceConfirmed = false
			if s.ConfirmationStatus == models.StatusConfirmed {
				s.ConfirmationStatus = models.StatusPending
			}
		}
		if g.ForceStatus != "" {
			s.ConfirmationStatus = g.ForceStatus
		}
		if g.ReplaceResponse != "" {
			response = g.ReplaceResponse
		}
	}

	if s.ServiceConfirmed && s.ConfirmationStatus == "" {
		s.ConfirmationStatus = models.StatusConfirmed
	}

	return c.commitTurn(ctx, s, response, next)
}

// loadOrCreate fetches an existing session or starts a fresh inbound one
// when no ID is given.
func (c *Coordinator) loadOrCreate(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	if sessionID == "" {
		s := models.NewSession(uuid.NewString(), models.DirectionInbound)
		slog.Info("Coordinator: new inbound session", "session_id", s.SessionID)
		return s, nil
	}
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if s == nil {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

// resolveNextPhase validates the model's proposed phase. Illegal proposals
// hold the current phase. A self-loop proposed in the outbound legal notice
// advances anyway: the notice takes one turn and stalling there traps the
// call.
func (c *Coordinator) resolveNextPhase(s *models.ConversationSession, proposed models.ConversationPhase) models.ConversationPhase {
	if !models.CanTransition(s.Phase, proposed) {
		slog.Warn("Coordinator.resolveNextPhase: illegal transition proposed, holding phase",
			"session_id", s.SessionID, "from", s.Phase, "proposed", proposed)
		return s.Phase
	}
	if s.Phase == models.PhaseOutboundLegalNotice && proposed == s.Phase {
		slog.Debug("Coordinator.resolveNextPhase: nudging past legal notice", "session_id", s.SessionID)
		return models.PhaseOutboundServiceConfirmation
	}
	return proposed
}

// commitTurn finishes the pipeline: records the agent reply, advances the
// phase, persists the session and, when an outbound call ends, writes the
// outcome back to the service record.
func (c *Coordinator) commitTurn(ctx context.Context, s *models.ConversationSession, response string, next models.ConversationPhase) (*models.MessageResponse, error) {
	s.AppendMessage(models.RoleAssistant, response)
	s.Phase = next
	s.TurnCount++

	if models.IsTerminal(s.Phase) && s.Direction == models.DirectionOutbound {
		c.writeBackRecord(s)
	}

	if err := c.store.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", s.SessionID, err)
	}
	slog.Info("Coordinator: turn committed",
		"session_id", s.SessionID, "phase", s.Phase, "turn", s.TurnCount,
		"escalation", s.RequiresEscalation)

	return &models.MessageResponse{
		SessionID:          s.SessionID,
		AgentResponse:      response,
		ConversationPhase:  s.Phase,
		RequiresEscalation: s.RequiresEscalation,
		TurnCount:          s.TurnCount,
	}, nil
}

// writeBackRecord persists the call outcome to the originating service
// record. Failures are logged, not surfaced: the conversation itself ended
// fine.
func (c *Coordinator) writeBackRecord(s *models.ConversationSession) {
	if c.records == nil || s.RecordRow < 0 {
		return
	}
	status := s.ConfirmationStatus
	if status == "" {
		switch {
		case s.CoverageIssue:
			status = models.StatusOutOfCoverage
		case s.ServiceConfirmed:
			status = models.StatusConfirmed
		default:
			status = models.StatusPending
		}
	}

	var notes []string
	if s.WrongNumber {
		notes = append(notes, "número equivocado")
	}
	if s.PatientAway {
		note := "paciente ausente"
		if s.ReturnDate != "" {
			note += ", regresa " + s.ReturnDate
		}
		notes = append(notes, note)
	}
	for _, inc := range s.Incidents {
		notes = append(notes, "novedad: "+inc.Summary)
	}
	if s.RequiresEscalation {
		notes = append(notes, "escalado: "+s.EscalationReason)
	}
	observation := fmt.Sprintf("Llamada %s finalizada en estado %s", s.SessionID, status)
	if len(notes) > 0 {
		observation += " (" + strings.Join(notes, "; ") + ")"
	}

	if err := c.records.UpdateStatus(s.RecordRow, status, observation); err != nil {
		slog.Error("Coordinator.writeBackRecord: record update failed",
			"error", err, "session_id", s.SessionID, "row", s.RecordRow)
	}
}

// StartOutboundCall opens a confirmation call for the service record matching
// the phone number and returns the scripted opening turn. The first model
// call happens when the contact answers.
func (c *Coordinator) StartOutboundCall(ctx context.Context, phone string) (*models.OutboundCallResponse, error) {
	if c.records == nil {
		return nil, fmt.Errorf("no records source configured")
	}
	rec, err := c.records.FindByPhone(phone)
	if err != nil {
		return nil, err
	}
	return c.openCall(ctx, rec)
}

// StartPendingOutboundCalls opens a confirmation call for every service
// record still pending. Records that fail to open are logged and skipped so
// one bad row does not stop the batch.
func (c *Coordinator) StartPendingOutboundCalls(ctx context.Context) ([]*models.OutboundCallResponse, error) {
	if c.records == nil {
		return nil, fmt.Errorf("no records source configured")
	}

	pending := c.records.PendingRecords()
	responses := make([]*models.OutboundCallResponse, 0, len(pending))
	for _, rec := range pending {
		resp, err := c.openCall(ctx, rec)
		if err != nil {
			slog.Error("Coordinator.StartPendingOutboundCalls: failed to open call",
				"error", err, "row", rec.RowIndex, "patient", rec.FullName())
			continue
		}
		responses = append(responses, resp)
	}
	slog.Info("Coordinator.StartPendingOutboundCalls: batch opened",
		"pending", len(pending), "opened", len(responses))
	return responses, nil
}

// openCall seeds an outbound session from a service record and stores it
// with the scripted opening turn.
func (c *Coordinator) openCall(ctx context.Context, rec *records.ServiceRecord) (*models.OutboundCallResponse, error) {
	s := models.NewSession(uuid.NewString(), models.DirectionOutbound)
	s.PatientFullName = rec.FullName()
	s.DocumentType = rec.DocumentType
	s.DocumentNumber = rec.DocumentNumber
	s.EPS = rec.EPS
	s.ContactName = rec.ContactName()
	s.ContactRelationship = rec.FamilyRelationship
	s.ServiceType = rec.ServiceType
	s.TreatmentType = rec.TreatmentType
	s.Frequency = rec.Frequency
	if dates := splitServiceDates(rec.ServiceDates); len(dates) > 0 {
		s.AppointmentDates = dates
	}
	s.AppointmentTime = rec.ServiceTime
	s.PickupAddress = rec.PickupAddress
	s.DestinationFacility = rec.DestinationFacility
	s.TransportModality = rec.TransportModality
	s.SpecialNeeds = rec.Observations
	s.ConfirmationStatus = rec.ConfirmationStatus
	s.RecordRow = rec.RowIndex

	greeting := fmt.Sprintf(
		"Buenos días, le saluda %s de %s, la línea de transporte médico de %s. ¿Hablo con %s?",
		c.cfg.AgentName, c.cfg.CompanyName, c.cfg.EPSName, rec.ContactName())
	s.AppendMessage(models.RoleAssistant, greeting)

	if err := c.store.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", s.SessionID, err)
	}
	slog.Info("Coordinator.openCall: call opened",
		"session_id", s.SessionID, "patient", s.PatientFullName, "row", rec.RowIndex)

	return &models.OutboundCallResponse{
		SessionID:     s.SessionID,
		AgentResponse: greeting,
		PatientName:   s.PatientFullName,
	}, nil
}

// GetSession exposes stored session state (status endpoint).
func (c *Coordinator) GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

// splitServiceDates splits the comma-separated date column of a record.
func splitServiceDates(raw string) []string {
	var dates []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			dates = append(dates, part)
		}
	}
	return dates
}
