package policy

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

// MaxCompanions is the number of companions covered by the transport
// authorization. Requests above it are redirected to the EPS.
const MaxCompanions = 1

// Rural-area indicators and cities outside the operational area. Addresses
// matching either are out of coverage.
var (
	ruralKeywords        = []string{"vereda", "rural", "corregimiento", "campo", " km "}
	outOfCoverageCities  = []string{"bogotá", "bogota", "cali", "cartagena", "barranquilla"}
	relationshipsNeedAge = []string{"hijo", "hija", "nieto", "nieta"}
)

// authorizedRelationships are the family and caregiver roles that may handle
// appointment details on the patient's behalf.
var authorizedRelationships = []string{
	"madre", "mamá", "mama", "padre", "papá", "papa",
	"esposo", "esposa", "cónyuge", "conyuge",
	"hijo", "hija", "hermano", "hermana",
	"abuelo", "abuela", "nieto", "nieta",
	"acudiente", "cuidador", "cuidadora", "familiar",
}

// escalationKeywords in a user message indicate requests beyond the
// operational scope of the line.
var escalationKeywords = []string{
	"servicio expreso",
	"servicio express",
	"urgente ya",
	"inmediato",
	"fuera de la ciudad",
	"zona rural",
	"no autorizado",
	"sin autorización",
	"zona no cubierta",
}

// OutOfCoverage reports whether the address falls outside the urban
// operational area, with the matched indicator.
func OutOfCoverage(address string) (bool, string) {
	addr := strings.ToLower(address)
	if strings.TrimSpace(addr) == "" {
		return false, ""
	}
	for _, kw := range ruralKeywords {
		if strings.Contains(addr, kw) {
			return true, strings.TrimSpace(kw)
		}
	}
	for _, city := range outOfCoverageCities {
		if strings.Contains(addr, city) {
			return true, city
		}
	}
	return false, ""
}

// EscalationKeyword returns the first escalation keyword found in the
// message, or "" when none matches.
func EscalationKeyword(message string) string {
	msg := strings.ToLower(message)
	for _, kw := range escalationKeywords {
		if strings.Contains(msg, kw) {
			return kw
		}
	}
	return ""
}

// RelationshipNeedsAgeCheck reports whether the contact relationship is one
// where the caller may be a minor and the age must be verified before any
// service information is shared.
func RelationshipNeedsAgeCheck(relationship string) bool {
	rel := strings.ToLower(strings.TrimSpace(relationship))
	for _, r := range relationshipsNeedAge {
		if rel == r {
			return true
		}
	}
	return false
}

// RelationshipAuthorized reports whether the stated relationship may receive
// service details. An empty relationship means the patient is on the line.
func RelationshipAuthorized(relationship string) bool {
	rel := strings.ToLower(strings.TrimSpace(relationship))
	if rel == "" || rel == "paciente" {
		return true
	}
	for _, r := range authorizedRelationships {
		if rel == r {
			return true
		}
	}
	return false
}

func checkConductorRequest(s *models.ConversationSession, lastMsg string) *Violation {
	msg := strings.ToLower(lastMsg)
	for _, kw := range []string{"quiero al conductor", "prefiero al conductor", "el mismo conductor"} {
		if strings.Contains(msg, kw) {
			return &Violation{
				RuleID:            "CONDUCTOR_001",
				RuleName:          "Límite de conductores",
				Severity:          SeverityWarning,
				Description:       "El usuario solicita un conductor específico",
				DetectedIn:        "message",
				DetectedValue:     truncate(lastMsg, 50),
				RecommendedAction: "Registrar la preferencia como sugerencia, sin comprometerse",
				ResponseTemplate:  "Con gusto registro su sugerencia, aunque la asignación de conductores depende de la programación de rutas.",
			}
		}
	}
	return nil
}

func newEPSAuthorizationCheck(epsName string) CheckFunc {
	want := strings.ToLower(epsName)
	return func(s *models.ConversationSession, lastMsg string) *Violation {
		eps := strings.ToLower(strings.TrimSpace(s.EPS))
		if eps == "" || eps == want {
			return nil
		}
		return &Violation{
			RuleID:            "SERVICIO_001",
			RuleName:          "Autorización EPS",
			Severity:          SeverityBlocking,
			Description:       fmt.Sprintf("El servicio solo está autorizado para afiliados a %s", epsName),
			DetectedIn:        "eps",
			DetectedValue:     s.EPS,
			RecommendedAction: "Indicar al usuario que contacte a su propia EPS",
			ResponseTemplate:  fmt.Sprintf("Este servicio de transporte está autorizado únicamente para afiliados a %s. Le recomiendo comunicarse con su EPS para coordinar el transporte.", epsName),
		}
	}
}

func checkGeographicCoverage(s *models.ConversationSession, lastMsg string) *Violation {
	out, indicator := OutOfCoverage(s.PickupAddress)
	if !out {
		return nil
	}
	return &Violation{
		RuleID:            "GEOGRAFIA_001",
		RuleName:          "Zona de cobertura",
		Severity:          SeverityBlocking,
		Description:       "La dirección de recogida está fuera de la zona urbana de cobertura",
		DetectedIn:        "pickup_address",
		DetectedValue:     indicator,
		RecommendedAction: "Escalar a la EPS; no confirmar el servicio",
		ResponseTemplate:  "Lamento informarle que esa zona está fuera de nuestra área de cobertura. Su caso será remitido a la EPS para buscar una alternativa.",
	}
}

func checkTransportModality(s *models.ConversationSession, lastMsg string) *Violation {
	msg := strings.ToLower(lastMsg)
	if !strings.Contains(msg, "expreso") && !strings.Contains(msg, "exclusivo") {
		return nil
	}
	return &Violation{
		RuleID:            "MODALIDAD_001",
		RuleName:          "Modalidad de transporte",
		Severity:          SeverityWarning,
		Description:       "El usuario solicita servicio expreso o exclusivo; la modalidad estándar es ruta compartida",
		DetectedIn:        "message",
		DetectedValue:     truncate(lastMsg, 50),
		RecommendedAction: "Explicar la modalidad de ruta y remitir a la EPS para servicios expresos",
		ResponseTemplate:  "El servicio autorizado es en modalidad de ruta compartida. Para un servicio expreso debe gestionar la autorización directamente con su EPS.",
	}
}

func checkRecordingNotice(s *models.ConversationSession, lastMsg string) *Violation {
	// Enforced structurally: the legal notice phases carry the recording
	// disclosure in their prompt instructions. The rule exists so its
	// instruction is injected during the greeting.
	return nil
}

func checkMinorContact(s *models.ConversationSession, lastMsg string) *Violation {
	if !s.MinorContact() {
		return nil
	}
	return &Violation{
		RuleID:            "PROTECCION_001",
		RuleName:          "Protección de menores",
		Severity:          SeverityBlocking,
		Description:       "El interlocutor es menor de edad sin adulto responsable confirmado",
		DetectedIn:        "contact_age",
		DetectedValue:     fmt.Sprintf("%d", s.ContactAge),
		RecommendedAction: "No compartir información del servicio; solicitar un adulto responsable",
		ResponseTemplate:  "Por tu seguridad no puedo compartir información de la cita contigo. ¿Hay un adulto responsable en casa con quien pueda hablar, por favor?",
	}
}

func checkCompanionLimit(s *models.ConversationSession, lastMsg string) *Violation {
	if s.CompanionCount <= MaxCompanions {
		return nil
	}
	return &Violation{
		RuleID:            "ACOMPANANTE_001",
		RuleName:          "Límite de acompañantes",
		Severity:          SeverityWarning,
		Description:       fmt.Sprintf("Se solicitan %d acompañantes; la autorización cubre máximo %d", s.CompanionCount, MaxCompanions),
		DetectedIn:        "companion_count",
		DetectedValue:     fmt.Sprintf("%d", s.CompanionCount),
		RecommendedAction: "Remitir a la EPS para autorizar acompañantes adicionales",
		ResponseTemplate:  "La autorización del servicio cubre un acompañante. Para acompañantes adicionales debe solicitar la ampliación directamente con la EPS.",
	}
}

// defaultRules builds the numbered rule set. The EPS name is configurable;
// everything else is fixed business policy.
func defaultRules(epsName string) []Rule {
	return []Rule{
		{
			ID:               "CONDUCTOR_001",
			Name:             "Límite de conductores",
			Category:         CategoryConductor,
			Description:      "No se asignan ni prometen conductores específicos",
			Severity:         SeverityWarning,
			Phases:           []string{"*"},
			Directions:       []string{"BOTH"},
			Check:            checkConductorRequest,
			PromptInjection:  "No prometas ni asignes conductores específicos; las preferencias se registran solo como sugerencia.",
			ResponseTemplate: "Con gusto registro su sugerencia sobre el conductor.",
			Keywords:         []string{"conductor", "chofer"},
		},
		{
			ID:               "SERVICIO_001",
			Name:             "Autorización EPS",
			Category:         CategoryServicio,
			Description:      fmt.Sprintf("Solo se atienden afiliados a %s", epsName),
			Severity:         SeverityBlocking,
			Phases:           []string{string(models.PhaseIdentification), string(models.PhaseServiceCoordination)},
			Directions:       []string{"BOTH"},
			Check:            newEPSAuthorizationCheck(epsName),
			PromptInjection:  fmt.Sprintf("CRÍTICO: el servicio aplica únicamente para afiliados a %s. Si la EPS es otra, remite al usuario a su EPS.", epsName),
			ResponseTemplate: fmt.Sprintf("El servicio está autorizado únicamente para afiliados a %s.", epsName),
			Keywords:         []string{"eps", "afiliado", "autorización"},
		},
		{
			ID:               "GEOGRAFIA_001",
			Name:             "Zona de cobertura",
			Category:         CategoryGeografia,
			Description:      "La cobertura es únicamente urbana",
			Severity:         SeverityBlocking,
			Phases:           []string{string(models.PhaseServiceCoordination), string(models.PhaseOutboundServiceConfirmation), string(models.PhaseOutboundSpecialCases)},
			Directions:       []string{"BOTH"},
			Check:            checkGeographicCoverage,
			PromptInjection:  "CRÍTICO: la cobertura es solo urbana. Direcciones en vereda, zona rural u otras ciudades están fuera de cobertura y se escalan a la EPS.",
			ResponseTemplate: "Esa zona está fuera de nuestra área de cobertura.",
			Keywords:         []string{"vereda", "rural", "cobertura", "zona"},
		},
		{
			ID:               "MODALIDAD_001",
			Name:             "Modalidad de transporte",
			Category:         CategoryModalidad,
			Description:      "La modalidad estándar es ruta compartida; no hay servicio expreso",
			Severity:         SeverityWarning,
			Phases:           []string{string(models.PhaseServiceCoordination), string(models.PhaseOutboundServiceConfirmation), string(models.PhaseOutboundSpecialCases)},
			Directions:       []string{"BOTH"},
			Check:            checkTransportModality,
			PromptInjection:  "La modalidad autorizada es ruta compartida. Servicios expresos o exclusivos requieren autorización de la EPS.",
			ResponseTemplate: "El servicio autorizado es en modalidad de ruta compartida.",
			Keywords:         []string{"expreso", "exclusivo", "ruta"},
		},
		{
			ID:               "PROTOCOLO_001",
			Name:             "Aviso de grabación",
			Category:         CategoryProtocolo,
			Description:      "Toda llamada debe informar que está siendo grabada",
			Severity:         SeverityBlocking,
			Phases:           []string{string(models.PhaseGreeting), string(models.PhaseLegalNotice), string(models.PhaseOutboundGreeting), string(models.PhaseOutboundLegalNotice)},
			Directions:       []string{"BOTH"},
			Check:            checkRecordingNotice,
			PromptInjection:  "Debes informar que la llamada está siendo grabada para garantizar la calidad del servicio antes de tratar cualquier dato.",
			ResponseTemplate: "Le informo que esta llamada está siendo grabada para garantizar la calidad del servicio.",
			Keywords:         []string{"grabación", "grabada"},
		},
		{
			ID:               "PROTECCION_001",
			Name:             "Protección de menores",
			Category:         CategoryProteccion,
			Description:      "No se comparte información del servicio con menores de edad",
			Severity:         SeverityBlocking,
			Phases:           []string{"*"},
			Directions:       []string{"BOTH"},
			Check:            checkMinorContact,
			PromptInjection:  "CRÍTICO: si el interlocutor es hijo/a o nieto/a, pregunta su edad antes de compartir cualquier dato. Si es menor de 18 años, no compartas información y solicita un adulto responsable.",
			ResponseTemplate: "Por tu seguridad necesito hablar con un adulto responsable.",
			Keywords:         []string{"hijo", "hija", "nieto", "nieta", "edad", "menor"},
		},
		{
			ID:               "ACOMPANANTE_001",
			Name:             "Límite de acompañantes",
			Category:         CategoryServicio,
			Description:      fmt.Sprintf("La autorización cubre máximo %d acompañante", MaxCompanions),
			Severity:         SeverityWarning,
			Phases:           []string{string(models.PhaseServiceCoordination), string(models.PhaseOutboundServiceConfirmation), string(models.PhaseOutboundSpecialCases)},
			Directions:       []string{"BOTH"},
			Check:            checkCompanionLimit,
			PromptInjection:  "La autorización cubre máximo un acompañante; acompañantes adicionales se gestionan con la EPS.",
			ResponseTemplate: "La autorización del servicio cubre un acompañante.",
			Keywords:         []string{"acompañante", "acompañantes"},
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
