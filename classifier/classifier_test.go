package classifier

import (
	"strings"
	"testing"
)

func TestClassifyCategories(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		title    string
		category Category
		tone     Tone
	}{
		{
			name:     "crisis keyword",
			text:     "no aguanto más, quiero morir",
			category: CategoryCrisis,
			tone:     ToneCrisis,
		},
		{
			name:     "crisis wins over gratitude",
			text:     "gracias pero ya no aguanto esta vida",
			category: CategoryCrisis,
			tone:     ToneCrisis,
		},
		{
			name:     "short greeting",
			text:     "hola hermanos",
			category: CategoryGreeting,
			tone:     ToneNeutral,
		},
		{
			name:     "abundance keyword in text",
			text:     "necesito que llegue dinero a mi casa pronto",
			category: CategoryAbundance,
		},
		{
			name:     "abundance via video title",
			text:     "escuchando esto cada mañana con mucha fe",
			title:    "Oración de PROSPERIDAD para tu hogar",
			category: CategoryAbundance,
		},
		{
			name:     "distress",
			text:     "me siento muy triste y con mucha ansiedad últimamente",
			category: CategoryDistress,
			tone:     ToneVulnerable,
		},
		{
			name:     "doubt",
			text:     "esto no funciona, es pura mentira",
			category: CategoryDoubt,
			tone:     ToneSkepticalSoft,
		},
		{
			name:     "gratitude",
			text:     "Gracias Dios, recibí mi milagro",
			category: CategoryGratitude,
			tone:     TonePositive,
		},
		{
			name:     "general fallthrough",
			text:     "escucho este audio todas las noches antes de dormir",
			category: CategoryGeneral,
			tone:     ToneNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tt.text, tt.title)
			if res.Category != tt.category {
				t.Errorf("Category = %q, want %q", res.Category, tt.category)
			}
			if tt.tone != "" && res.Tone != tt.tone {
				t.Errorf("Tone = %q, want %q", res.Tone, tt.tone)
			}
		})
	}
}

func TestClassifyPrecedenceIsOrdered(t *testing.T) {
	// Greeting (3 words) also contains an abundance keyword; the earlier
	// greeting rule must win and never be overwritten.
	res := Classify("dinero ya señor", "")
	if res.Category != CategoryGreeting {
		t.Errorf("Category = %q, want %q", res.Category, CategoryGreeting)
	}
}

func TestClassifySoftReplyFlag(t *testing.T) {
	res := Classify("no creo en esto, es mentira", "Afirmaciones de prosperidad y abundancia")
	if !res.NeedsSoftReply {
		t.Error("NeedsSoftReply = false, want true")
	}
	if res.Tone != ToneSkepticalSoft {
		t.Errorf("Tone = %q, want %q", res.Tone, ToneSkepticalSoft)
	}
}

func TestClassifySoftReplyViaTitleOverlap(t *testing.T) {
	// Negation plus more than one shared title keyword, without any sarcasm
	// marker.
	res := Classify("nunca llega la abundancia ni la prosperidad que prometen", "abundancia y prosperidad infinita")
	if !res.NeedsSoftReply {
		t.Error("NeedsSoftReply = false, want true")
	}
}

func TestClassifyCrisisNeverSoft(t *testing.T) {
	res := Classify("no creo en nada, quiero morir", "prosperidad y abundancia")
	if res.Category != CategoryCrisis {
		t.Fatalf("Category = %q, want crisis", res.Category)
	}
	if res.NeedsSoftReply {
		t.Error("crisis comments must not carry the soft-reply flag")
	}
	if res.Tone != ToneCrisis {
		t.Errorf("Tone = %q, want %q", res.Tone, ToneCrisis)
	}
}

func TestClassifyFigures(t *testing.T) {
	res := Classify("gracias jesús y al espíritu santo por todo", "")
	if len(res.Figures) != 2 {
		t.Fatalf("Figures = %v, want 2 entries", res.Figures)
	}

	// "adiós" contains "dios" but is not a mention.
	res = Classify("adiós amigos, nos vemos mañana en el canal", "")
	for _, f := range res.Figures {
		if f == "dios" {
			t.Error("detected figure 'dios' inside 'adiós'")
		}
	}
}

func TestClassifyQuestionFlag(t *testing.T) {
	res := Classify("¿cómo hago la oración de la mañana correctamente?", "")
	if !res.IsQuestion {
		t.Error("IsQuestion = false, want true")
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"normal comment", "bendiciones para todos los hermanos", true},
		{"too short", "ok", false},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 501), false},
		{"url", "miren esto https://ejemplo.com/video", false},
		{"www url", "visiten www.ejemplo.com ahora", false},
		{"digits only", "111111", false},
		{"digits with spaces", "11 11 11", false},
		{"exactly four chars", "amén", true},
		{"three accented chars", "día", false},
		{"accented within length cap", strings.Repeat("á", 300), true},
		{"exactly five hundred accented chars", strings.Repeat("é", 500), true},
		{"accented over length cap", strings.Repeat("é", 501), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.text); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
