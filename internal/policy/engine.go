package policy

import (
	"log/slog"
	"strings"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

// DefaultEPSName is the insurer whose affiliates the line serves.
const DefaultEPSName = "Cosalud"

// Engine evaluates business rules against conversation state.
type Engine struct {
	rules   []Rule
	epsName string
}

// Option configures the policy engine.
type Option func(*Engine)

// WithEPSName overrides the authorized insurer name.
func WithEPSName(name string) Option {
	return func(e *Engine) { e.epsName = name }
}

// WithRules replaces the default rule set (tests).
func WithRules(rules []Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// NewEngine creates a policy engine with the default rule set.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{epsName: DefaultEPSName}
	for _, opt := range opts {
		opt(e)
	}
	if e.rules == nil {
		e.rules = defaultRules(e.epsName)
	}
	slog.Debug("PolicyEngine.NewEngine: engine created", "rules", len(e.rules), "eps", e.epsName)
	return e
}

// EPSName returns the configured insurer name.
func (e *Engine) EPSName() string { return e.epsName }

// Rules returns the active rule set.
func (e *Engine) Rules() []Rule { return e.rules }

// Evaluate runs every applicable rule against the session and the latest
// user message.
func (e *Engine) Evaluate(s *models.ConversationSession, lastMsg string) EvaluationResult {
	var result EvaluationResult
	var promptParts []string

	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Applicable(s.Phase, s.Direction) {
			continue
		}
		result.ApplicableRules = append(result.ApplicableRules, rule.ID)
		if rule.PromptInjection != "" {
			promptParts = append(promptParts, rule.PromptInjection)
		}
		if v := rule.Check(s, lastMsg); v != nil {
			result.Violations = append(result.Violations, *v)
			if v.Severity == SeverityBlocking {
				result.HasBlocking = true
			}
			slog.Debug("PolicyEngine.Evaluate: rule violated",
				"rule", v.RuleID, "severity", v.Severity, "detected_in", v.DetectedIn)
		}
	}
	result.PromptInjection = strings.Join(promptParts, "\n")
	return result
}

// GuardResult carries the corrections the guard imposes on a model turn.
// When Overridden is true the coordinator must apply every set field; the
// guard always wins over the model, including over an explicit
// requires_escalation=false.
type GuardResult struct {
	Overridden bool
	Reasons    []string

	// HoldPhase keeps the conversation in its current phase.
	HoldPhase bool
	// ForceEscalation marks the session for human follow-up.
	ForceEscalation bool
	// SuppressConfirmation clears a confirmation the model granted.
	SuppressConfirmation bool
	// ForceStatus overrides the confirmation status when non-empty.
	ForceStatus string
	// ReplaceResponse replaces the agent utterance when non-empty.
	ReplaceResponse string
}

func (g *GuardResult) addReason(reason string) {
	g.Overridden = true
	g.Reasons = append(g.Reasons, reason)
}

// Guard inspects a proposed model turn against the session state after
// extraction merge and imposes corrections for any violated protection.
func (e *Engine) Guard(s *models.ConversationSession, lastMsg string, out *models.TurnOutput) GuardResult {
	var g GuardResult

	// Minor on the line: hold the phase, say nothing about the service, ask
	// for an adult.
	if s.MinorContact() {
		g.addReason("interlocutor menor de edad sin adulto confirmado")
		g.HoldPhase = true
		g.ForceEscalation = true
		g.SuppressConfirmation = true
		g.ReplaceResponse = "Por tu seguridad no puedo compartir información de la cita contigo. ¿Hay un adulto responsable en casa con quien pueda hablar, por favor?"
	}

	// Unauthorized contact on the line: appointment details go only to the
	// patient, family or a caregiver. Hold until an authorized party talks.
	if !RelationshipAuthorized(s.ContactRelationship) {
		g.addReason("interlocutor no autorizado: " + s.ContactRelationship)
		g.HoldPhase = true
		g.SuppressConfirmation = true
		g.ReplaceResponse = "Por protección de datos solo puedo tratar los detalles del servicio con el paciente o un familiar autorizado. ¿Sería posible comunicarme con el paciente o con su acudiente, por favor?"
	}

	// Out-of-coverage pickup: never confirm, route to the EPS. The flag
	// covers zones the user described without giving a full address.
	if oob, indicator := OutOfCoverage(s.PickupAddress); oob || s.CoverageIssue {
		if indicator == "" {
			indicator = "zona reportada por el usuario"
		}
		g.addReason("dirección fuera de cobertura: " + indicator)
		g.ForceEscalation = true
		g.SuppressConfirmation = true
		g.ForceStatus = models.StatusOutOfCoverage
	}

	// Wrong insurer: the service cannot be coordinated here.
	if eps := strings.ToLower(strings.TrimSpace(s.EPS)); eps != "" && eps != strings.ToLower(e.epsName) {
		g.addReason("EPS no autorizada: " + s.EPS)
		g.ForceEscalation = true
		g.SuppressConfirmation = true
	}

	// Companion count above the authorization: confirmation requires EPS
	// approval first.
	if s.CompanionCount > MaxCompanions {
		g.addReason("acompañantes por encima del límite autorizado")
		g.SuppressConfirmation = true
	}

	// Escalation keyword in the user message: the model may not silently
	// drop it.
	if kw := EscalationKeyword(lastMsg); kw != "" && !out.RequiresEscalation {
		g.addReason("solicitud fuera de alcance: " + kw)
		g.ForceEscalation = true
	}

	if g.Overridden {
		slog.Debug("PolicyEngine.Guard: model turn corrected",
			"session_id", s.SessionID, "reasons", strings.Join(g.Reasons, "; "),
			"hold_phase", g.HoldPhase, "force_escalation", g.ForceEscalation)
	}
	return g
}
