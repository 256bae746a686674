package flow

import "testing"

func TestAnalyzeMessageEmotion(t *testing.T) {
	tests := []struct {
		message   string
		emotion   string
		minLevels []string // acceptable levels
	}{
		{"Estoy muy molesto, esto es inaceptable!!", "frustración", []string{"medio", "alto"}},
		{"No entiendo, ¿puede repetir?", "confusión", []string{"medio", "alto"}},
		{"Gracias, muy amable", "positivo", []string{"bajo", "medio"}},
		{"La cita es el martes", "neutro", []string{"bajo"}},
	}
	for _, tt := range tests {
		a := AnalyzeMessage(tt.message)
		if a.Emotion != tt.emotion {
			t.Errorf("AnalyzeMessage(%q).Emotion = %q, want %q", tt.message, a.Emotion, tt.emotion)
			continue
		}
		ok := false
		for _, lvl := range tt.minLevels {
			if a.EmotionLevel == lvl {
				ok = true
			}
		}
		if !ok {
			t.Errorf("AnalyzeMessage(%q).EmotionLevel = %q, want one of %v", tt.message, a.EmotionLevel, tt.minLevels)
		}
	}
}

func TestAnalyzeMessageIntent(t *testing.T) {
	tests := []struct {
		message string
		intent  string
	}{
		{"Sí", "confirmar"},
		{"confirmo la cita", "confirmar"},
		{"No", "negar"},
		{"Necesito cancelar el servicio", "cancelar"},
		{"Quiero cambiar la dirección", "cambiar"},
		{"Tengo una queja del conductor", "queja"},
		{"Hola", "saludo"},
		{"¿Cuándo me recogen?", "pregunta"},
		{"El paciente es mi papá", "otro"},
	}
	for _, tt := range tests {
		if a := AnalyzeMessage(tt.message); a.Intent != tt.intent {
			t.Errorf("AnalyzeMessage(%q).Intent = %q, want %q", tt.message, a.Intent, tt.intent)
		}
	}
}

func TestAnalyzeMessageTopic(t *testing.T) {
	tests := []struct {
		message string
		topic   string
	}{
		{"¿A qué hora pasan?", "horario"},
		{"La dirección es calle 22 #3-45", "direccion"},
		{"El chofer fue grosero", "conductor"},
		{"Tengo terapia el viernes", "fecha"}, // fecha matched before servicio
		{"¿El transporte incluye el regreso?", "servicio"},
	}
	for _, tt := range tests {
		if a := AnalyzeMessage(tt.message); a.Topic != tt.topic {
			t.Errorf("AnalyzeMessage(%q).Topic = %q, want %q", tt.message, a.Topic, tt.topic)
		}
	}
}

func TestAnalyzeMessagePolicyKeywords(t *testing.T) {
	a := AnalyzeMessage("Vivo en una vereda y quiero un acompañante")
	got := map[string]bool{}
	for _, kw := range a.PolicyKeywords {
		got[kw] = true
	}
	if !got["zona_cobertura"] || !got["acompanante"] {
		t.Errorf("PolicyKeywords = %v, want zona_cobertura and acompanante", a.PolicyKeywords)
	}
}

func TestAnalyzeMessageNeedsEmpathy(t *testing.T) {
	if a := AnalyzeMessage("Estoy harta, es increíble, siempre lo mismo"); !a.NeedsEmpathy {
		t.Errorf("high frustration should need empathy: %+v", a)
	}
	if a := AnalyzeMessage("Gracias, perfecto"); a.NeedsEmpathy {
		t.Errorf("positive message should not need empathy: %+v", a)
	}
	if a := AnalyzeMessage("La cita es mañana"); a.NeedsEmpathy {
		t.Errorf("neutral message should not need empathy: %+v", a)
	}
}
