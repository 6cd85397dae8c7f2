package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"prosperidad-bot/classifier"
	"prosperidad-bot/gemini"
)

// fakeGenerator returns a fixed text or error.
type fakeGenerator struct {
	text string
	err  error
	// lastPrompt captures what the composer asked for.
	lastPrompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.text, f.err
}

func TestComposeCrisisReturnsError(t *testing.T) {
	gen := &fakeGenerator{text: "should never be called"}
	c := New(gen)

	_, err := c.Compose(context.Background(), Request{
		Text:     "no aguanto más, quiero morir",
		Category: classifier.CategoryCrisis,
	})
	if !errors.Is(err, ErrCrisisContent) {
		t.Fatalf("err = %v, want ErrCrisisContent", err)
	}
	if gen.lastPrompt != "" {
		t.Error("generator was invoked for crisis content")
	}
}

func TestComposeModelReply(t *testing.T) {
	gen := &fakeGenerator{text: "Que Dios bendiga tu camino cada día ✨🙏"}
	c := New(gen)

	reply, err := c.Compose(context.Background(), Request{
		Text:     "bendiciones para todos",
		Category: classifier.CategoryGratitude,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if reply.FromFallback {
		t.Error("FromFallback = true for successful generation")
	}
	if reply.Text != gen.text {
		t.Errorf("Text = %q, want %q", reply.Text, gen.text)
	}
}

func TestComposeFallbackOnGenerationError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	c := New(gen)

	reply, err := c.Compose(context.Background(), Request{
		Text:     "necesito trabajo urgente por favor",
		Category: classifier.CategoryAbundance,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !reply.FromFallback {
		t.Fatal("FromFallback = false, want true")
	}
	if !reply.GenerationFailed {
		t.Error("GenerationFailed = false, want true")
	}
	if reply.SafetyBlocked {
		t.Error("SafetyBlocked = true for a plain error")
	}
	assertInFallbackTable(t, classifier.CategoryAbundance, reply.Text)
}

func TestComposeFallbackOnSafetyBlock(t *testing.T) {
	gen := &fakeGenerator{err: gemini.ErrBlocked}
	c := New(gen)

	reply, err := c.Compose(context.Background(), Request{
		Text:     "esto es falso y no funciona",
		Category: classifier.CategoryDoubt,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !reply.SafetyBlocked {
		t.Error("SafetyBlocked = false, want true")
	}
	if !reply.FromFallback {
		t.Error("FromFallback = false, want true")
	}
	assertInFallbackTable(t, classifier.CategoryDoubt, reply.Text)
}

func TestComposeCordialityFilterRejectsDistancing(t *testing.T) {
	gen := &fakeGenerator{text: "Respeto tu perspectiva, pero déjame decirte que la fe mueve montañas 🙏"}
	c := New(gen)

	reply, err := c.Compose(context.Background(), Request{
		Text:           "no creo en esto, es mentira",
		VideoTitle:     "oración de prosperidad",
		Category:       classifier.CategoryDoubt,
		NeedsSoftReply: true,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !reply.FromFallback {
		t.Fatal("distancing phrase not rejected")
	}
	lower := strings.ToLower(reply.Text)
	if strings.Contains(lower, "respeto tu perspectiva") || strings.Contains(lower, "respeto tu opinión") {
		t.Errorf("reply still contains distancing phrase: %q", reply.Text)
	}
}

func TestComposeCordialityFilterRejectsShortOutput(t *testing.T) {
	gen := &fakeGenerator{text: "Amén 🙏"}
	c := New(gen)

	reply, err := c.Compose(context.Background(), Request{
		Text:     "bendiciones hermanos del canal",
		Category: classifier.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !reply.FromFallback {
		t.Error("short model output not rejected")
	}
}

func TestComposeStripsQuotesAndAsterisks(t *testing.T) {
	gen := &fakeGenerator{text: `*Dios* dice "confía en mí" y todo llegará a tu vida 🙏`}
	c := New(gen)

	reply, err := c.Compose(context.Background(), Request{
		Text:     "esperando mi milagro con fe",
		Category: classifier.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if strings.ContainsAny(reply.Text, `"*`) {
		t.Errorf("reply contains forbidden characters: %q", reply.Text)
	}
}

func TestComposeTruncatesLongOutput(t *testing.T) {
	gen := &fakeGenerator{text: strings.Repeat("bendición ", 40)}
	c := New(gen, WithMaxLength(100))

	reply, err := c.Compose(context.Background(), Request{
		Text:     "hola, qué hermoso mensaje de hoy",
		Category: classifier.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if got := len([]rune(reply.Text)); got > 100 {
		t.Errorf("reply length = %d runes, want <= 100", got)
	}
	if !strings.HasSuffix(reply.Text, "...") {
		t.Errorf("truncated reply missing ellipsis: %q", reply.Text)
	}
}

func TestComposeIgnoresUnusableMaxLength(t *testing.T) {
	gen := &fakeGenerator{text: strings.Repeat("bendición ", 40)}
	c := New(gen, WithMaxLength(2))

	reply, err := c.Compose(context.Background(), Request{
		Text:     "hola, qué hermoso mensaje de hoy",
		Category: classifier.CategoryGeneral,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	// The bad cap falls back to the default instead of breaking truncation.
	if got := len([]rune(reply.Text)); got > defaultMaxLength {
		t.Errorf("reply length = %d runes, want <= %d", got, defaultMaxLength)
	}
	if !strings.HasSuffix(reply.Text, "...") {
		t.Errorf("truncated reply missing ellipsis: %q", reply.Text)
	}
}

func TestComposePromptIncludesHistory(t *testing.T) {
	gen := &fakeGenerator{text: "Qué alegría verte de nuevo por aquí, bendiciones ✨🙏"}
	c := New(gen, WithHistoryDepth(2))

	_, err := c.Compose(context.Background(), Request{
		Text:       "volví a comentar hoy",
		AuthorName: "María",
		Category:   classifier.CategoryGeneral,
		History:    []string{"primer mensaje", "segundo mensaje", "tercer mensaje"},
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if strings.Contains(gen.lastPrompt, "primer mensaje") {
		t.Error("prompt includes history beyond the configured depth")
	}
	if !strings.Contains(gen.lastPrompt, "segundo mensaje") || !strings.Contains(gen.lastPrompt, "tercer mensaje") {
		t.Error("prompt missing recent history entries")
	}
	if !strings.Contains(gen.lastPrompt, "María") {
		t.Error("prompt missing author name")
	}
}

func TestComposeSoftReplyPromptAvoidsDebate(t *testing.T) {
	gen := &fakeGenerator{text: "Te deseo mucha paz y luz en tu camino, gracias por pasar 🕊️🙏"}
	c := New(gen)

	_, err := c.Compose(context.Background(), Request{
		Text:           "jaja esto es una estafa",
		Category:       classifier.CategoryDoubt,
		NeedsSoftReply: true,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, "sin debatir") {
		t.Error("soft-reply prompt missing the no-debate instruction")
	}
}

func TestFallbackTableInvariants(t *testing.T) {
	for cat, phrases := range fallbackTable {
		if len(phrases) == 0 {
			t.Errorf("category %s has an empty fallback table", cat)
		}
		for _, phrase := range phrases {
			if strings.ContainsAny(phrase, `"`) {
				t.Errorf("fallback %q contains a double quote", phrase)
			}
			if n := len([]rune(phrase)); n > 60 {
				t.Errorf("fallback %q is %d runes, want <= 60", phrase, n)
			}
		}
	}
}

func assertInFallbackTable(t *testing.T, cat classifier.Category, text string) {
	t.Helper()
	for _, phrase := range fallbackTable[cat] {
		if phrase == text {
			return
		}
	}
	t.Errorf("reply %q not found in fallback table for %s", text, cat)
}
