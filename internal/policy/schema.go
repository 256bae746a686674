// Package policy implements the business-rule layer that constrains what
// the conversational agent may say and do. Rules are evaluated before the
// model call (to inject instructions into the prompt) and after it (to
// correct model output that violates a rule). A rule correction always wins
// over the model.
package policy

import (
	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

// Severity classifies how a violated rule constrains the turn.
type Severity string

const (
	// SeverityInfo is informational; no action required.
	SeverityInfo Severity = "INFO"
	// SeverityWarning lets the agent continue but the violation is noted.
	SeverityWarning Severity = "WARNING"
	// SeverityBlocking forces the agent to escalate or stop.
	SeverityBlocking Severity = "BLOCKING"
)

// Category groups rules for organization and retrieval.
type Category string

const (
	CategoryConductor  Category = "CONDUCTOR"
	CategoryServicio   Category = "SERVICIO"
	CategoryGeografia  Category = "GEOGRAFIA"
	CategoryModalidad  Category = "MODALIDAD"
	CategoryProtocolo  Category = "PROTOCOLO"
	CategoryProteccion Category = "PROTECCION"
)

// Violation is a detected breach of a rule for the current turn.
type Violation struct {
	RuleID            string
	RuleName          string
	Severity          Severity
	Description       string
	DetectedIn        string
	DetectedValue     string
	RecommendedAction string
	ResponseTemplate  string
}

// CheckFunc inspects the session and the latest user message and reports a
// violation, or nil when the rule is satisfied.
type CheckFunc func(s *models.ConversationSession, lastMsg string) *Violation

// Rule is one enforceable business constraint.
type Rule struct {
	ID          string
	Name        string
	Category    Category
	Description string
	Severity    Severity

	// Phases lists phase names where the rule applies; "*" matches all.
	Phases []string
	// Directions lists call directions; "BOTH" matches all.
	Directions []string

	Check CheckFunc

	// PromptInjection is added to the system prompt whenever the rule is
	// applicable, regardless of violation.
	PromptInjection string
	// ResponseTemplate is the suggested agent wording when the rule fires.
	ResponseTemplate string
	// Keywords helps retrieval rank this rule against the user message.
	Keywords []string
}

// Applicable reports whether the rule is active for the phase and direction.
func (r *Rule) Applicable(phase models.ConversationPhase, direction models.CallDirection) bool {
	phaseOK := false
	for _, p := range r.Phases {
		if p == "*" || p == string(phase) {
			phaseOK = true
			break
		}
	}
	if !phaseOK {
		return false
	}
	for _, d := range r.Directions {
		if d == "BOTH" || d == string(direction) {
			return true
		}
	}
	return false
}

// EvaluationResult aggregates the outcome of running all applicable rules.
type EvaluationResult struct {
	ApplicableRules []string
	Violations      []Violation
	PromptInjection string
	HasBlocking     bool
}

// BlockingViolations returns only the violations that must stop the flow.
func (r *EvaluationResult) BlockingViolations() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityBlocking {
			out = append(out, v)
		}
	}
	return out
}
