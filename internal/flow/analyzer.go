// Package flow implements the conversation engine for TransportMedAgent:
// rule-based message analysis, context assembly, prompt construction and
// the turn executor that drives one model call per user message.
package flow

import (
	"regexp"
	"strings"
)

// Analysis is the rule-based reading of a user message. It replaces a model
// call: pattern matching keeps per-turn latency in the microseconds.
type Analysis struct {
	Emotion        string // neutro, frustración, confusión, positivo
	EmotionLevel   string // bajo, medio, alto
	Intent         string // confirmar, negar, cambiar, cancelar, queja, pregunta, saludo, otro
	Topic          string // horario, direccion, conductor, fecha, servicio, otro
	PolicyKeywords []string
	NeedsEmpathy   bool
}

var emotionPatterns = map[string][]*regexp.Regexp{
	"frustración": compileAll(
		`\b(molest[oa]?|enojad[oa]?|furios[oa]?|hart[oa]?|cansad[oa]?)\b`,
		`\b(increíble|increible|absurdo|ridículo|ridiculo|inaceptable)\b`,
		`\b(no me gusta|estoy molest|qué problema|que problema|siempre lo mismo|ya van varias)\b`,
		`!{2,}`,
		`\b(mal servicio|pésimo|pesimo|terrible|horrible)\b`,
	),
	"confusión": compileAll(
		`\b(no entiendo|no entendí|no entendi|cómo así|como asi)\b`,
		`\b(qué significa|que significa|puede repetir|no me queda claro)\b`,
		`\b(explíqueme|expliqueme|no sé|no se)\b`,
		`\?{2,}`,
	),
	"positivo": compileAll(
		`\b(gracias|excelente|perfecto|muy bien|genial|maravilloso|fantástico|fantastico)\b`,
		`\b(agradezco|amable|entendido|listo)\b`,
	),
}

// emotionOrder fixes evaluation order so negative emotions win ties.
var emotionOrder = []string{"frustración", "confusión", "positivo"}

var intentPatterns = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{"confirmar", compileAll(
		`^(sí|si|claro|ok|okay|vale|listo|correcto|afirmativo|así es|exacto)[\s,.!]*$`,
		`\b(confirmo|acepto|de acuerdo|está bien)\b`,
	)},
	{"negar", compileAll(
		`^(no|nop|negativo)[\s,.!]*$`,
		`\b(no puedo|no quiero|no me sirve)\b`,
	)},
	{"cancelar", compileAll(
		`\b(cancelar|anular|no voy|no asistir|no puedo ir)\b`,
	)},
	{"cambiar", compileAll(
		`\b(cambiar|modificar|actualizar|diferente|otra fecha|otro día|otro dia)\b`,
		`\b(cambio de|quiero cambiar|necesito cambiar)\b`,
	)},
	{"queja", compileAll(
		`\b(queja|reclamo|denunciar|reportar|mal servicio)\b`,
		`\b(llegó tarde|llego tarde|no llegó|no llego|me dejó|me dejo)\b`,
	)},
	{"saludo", compileAll(
		`^(hola|buenos días|buenos dias|buenas tardes|buenas noches|aló|alo)[\s,.!]*$`,
	)},
	{"pregunta", compileAll(
		`^\s*¿`,
		`\b(cuándo|cuando|dónde|donde|cuál|cual|qué hora|que hora|por qué|por que)\b`,
		`\?\s*$`,
	)},
}

var topicPatterns = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{"horario", compileAll(`\b(hora|horario|tarde|temprano|puntual|demora)\b`)},
	{"direccion", compileAll(
		`\b(dirección|direccion|calle|carrera|avenida|barrio|apartamento)\b`,
		`\b(recoger|recogida|paso por)\b`,
	)},
	{"conductor", compileAll(`\b(conductor|chofer|chófer|quien conduce|el que maneja)\b`)},
	{"fecha", compileAll(`\b(fecha|día|dia|mañana|pasado mañana|lunes|martes|miércoles|miercoles|jueves|viernes|sábado|sabado|domingo)\b`)},
	{"servicio", compileAll(`\b(servicio|transporte|cita|terapia|diálisis|dialisis)\b`)},
}

var policyKeywordPatterns = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{"cambio_direccion", compileAll(`\b(cambiar dirección|cambiar direccion|otra dirección|otra direccion|dirección incorrecta|direccion incorrecta)\b`)},
	{"zona_cobertura", compileAll(`\b(vereda|rural|cobertura|corregimiento)\b`)},
	{"acompanante", compileAll(`\b(acompañante|acompañar|ir con)\b`)},
	{"conductor", compileAll(`\b(conductor específico|conductor especifico|mismo conductor|prefiero al conductor)\b`)},
	{"menor_edad", compileAll(`\b(soy el hijo|soy la hija|tengo \d+ años|menor de edad)\b`)},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?i)" + e)
	}
	return out
}

// AnalyzeMessage classifies a user message with regex rules.
func AnalyzeMessage(message string) Analysis {
	msg := strings.ToLower(strings.TrimSpace(message))

	a := Analysis{Emotion: "neutro", EmotionLevel: "bajo", Intent: "otro", Topic: "otro"}

	for _, emo := range emotionOrder {
		patterns := emotionPatterns[emo]
		matches := 0
		for _, p := range patterns {
			if p.MatchString(msg) {
				matches++
			}
		}
		if matches > 0 {
			a.Emotion = emo
			switch {
			case matches >= 3:
				a.EmotionLevel = "alto"
			case matches >= 2:
				a.EmotionLevel = "medio"
			}
			break
		}
	}

	for _, group := range intentPatterns {
		for _, p := range group.patterns {
			if p.MatchString(msg) {
				a.Intent = group.name
				break
			}
		}
		if a.Intent != "otro" {
			break
		}
	}

	for _, group := range topicPatterns {
		for _, p := range group.patterns {
			if p.MatchString(msg) {
				a.Topic = group.name
				break
			}
		}
		if a.Topic != "otro" {
			break
		}
	}

	for _, group := range policyKeywordPatterns {
		for _, p := range group.patterns {
			if p.MatchString(msg) {
				a.PolicyKeywords = append(a.PolicyKeywords, group.name)
				break
			}
		}
	}

	a.NeedsEmpathy = (a.Emotion == "frustración" || a.Emotion == "confusión") &&
		(a.EmotionLevel == "medio" || a.EmotionLevel == "alto")
	return a
}
