// Package composer turns a classified comment into a short reply, either via
// the text-generation model or, when generation fails or is blocked, from a
// static per-category fallback table.
package composer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"prosperidad-bot/classifier"
	"prosperidad-bot/gemini"
)

// ErrCrisisContent signals that the comment references self-harm and must not
// be replied to. The caller must skip posting and leave the answered set
// untouched.
var ErrCrisisContent = errors.New("crisis content: no reply")

const (
	defaultMaxLength    = 180
	defaultHistoryDepth = 3
	minGeneratedLength  = 20
)

// Generator produces text from a prompt. *gemini.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request carries everything the composer needs for one comment.
type Request struct {
	Text           string
	AuthorName     string
	VideoTitle     string
	Category       classifier.Category
	Tone           classifier.Tone
	NeedsSoftReply bool
	Figures        []string
	History        []string
}

// Reply is the composed text plus how it was produced, for run accounting.
type Reply struct {
	Text string
	// FromFallback is true when the static table supplied the text.
	FromFallback bool
	// SafetyBlocked is true when the model refused and the fallback was used.
	SafetyBlocked bool
	// GenerationFailed is true on any model failure (including blocks).
	GenerationFailed bool
}

// Composer builds prompts and post-processes model output.
type Composer struct {
	gen          Generator
	maxLength    int
	historyDepth int
}

// Option configures a Composer.
type Option func(*Composer)

// WithMaxLength caps the reply length in runes. Values that leave no room
// for the truncation ellipsis are ignored.
func WithMaxLength(n int) Option {
	return func(c *Composer) {
		if n > 3 {
			c.maxLength = n
		}
	}
}

// WithHistoryDepth bounds how many history entries the prompt includes.
func WithHistoryDepth(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.historyDepth = n
		}
	}
}

// New creates a Composer backed by the given generator.
func New(gen Generator, opts ...Option) *Composer {
	c := &Composer{
		gen:          gen,
		maxLength:    defaultMaxLength,
		historyDepth: defaultHistoryDepth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose returns the reply text for a classified comment. It returns
// ErrCrisisContent exactly when the category is crisis; otherwise it always
// returns a non-empty reply, falling back to the static table on any
// generation failure.
func (c *Composer) Compose(ctx context.Context, req Request) (*Reply, error) {
	if req.Category == classifier.CategoryCrisis {
		return nil, ErrCrisisContent
	}

	prompt := c.buildPrompt(req)

	text, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		reply := c.fallback(req.Category)
		reply.GenerationFailed = true
		reply.SafetyBlocked = isBlocked(err)
		return reply, nil
	}

	text = sanitize(text)
	if rejectedByCordialityFilter(text) {
		return c.fallback(req.Category), nil
	}

	return &Reply{Text: c.truncate(text)}, nil
}

func (c *Composer) buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Eres el asistente espiritual del canal \"Prosperidad Divina\".\n\n")

	history := req.History
	if len(history) > c.historyDepth {
		history = history[len(history)-c.historyDepth:]
	}
	if len(history) > 0 {
		sb.WriteString("Historial del usuario:\n")
		for _, msg := range history {
			fmt.Fprintf(&sb, "- \"%s\"\n", msg)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Video: \"%s\"\n", req.VideoTitle)
	fmt.Fprintf(&sb, "Usuario: %s\n", req.AuthorName)
	fmt.Fprintf(&sb, "Comentario: \"%s\"\n\n", req.Text)

	sb.WriteString("Instrucciones:\n")
	sb.WriteString("- Responde con máximo 2 líneas\n")
	sb.WriteString("- Responde DIRECTAMENTE al comentario del usuario\n")
	sb.WriteString("- SOLO menciona elementos del título del video si el usuario los menciona específicamente\n")
	sb.WriteString("- NO fuerces conexiones con el título si no son naturales\n")

	if req.NeedsSoftReply {
		sb.WriteString("- El usuario expresa duda o sarcasmo: responde con calidez universal, sin debatir\n")
		sb.WriteString("- NO uses frases distantes como 'respeto tu perspectiva' o 'respeto tu opinión'\n")
	} else {
		sb.WriteString(categoryInstructions[req.Category])
	}

	if len(req.Figures) > 0 {
		fmt.Fprintf(&sb, "- El usuario menciona a %s; puedes referirte a ello con naturalidad\n",
			strings.Join(req.Figures, ", "))
	}

	sb.WriteString("- NO uses comillas ni asteriscos\n\nRespuesta:")
	return sb.String()
}

var categoryInstructions = map[classifier.Category]string{
	classifier.CategoryGreeting:  "- Saludo cálido y bendición breve, usa emojis ✨🙏💖🌅\n",
	classifier.CategoryAbundance: "- Habla de abundancia divina y provisión, con fe y confianza, usa emojis 💰✨🙏🌟\n",
	classifier.CategoryDistress:  "- Sé empático y consolador, transmite paz, usa emojis 💙✨🙏\n",
	classifier.CategoryDoubt:     "- Responde con mansedumbre, sin confrontar ni debatir, usa emojis 🕊️🙏💙\n",
	classifier.CategoryGratitude: "- Celebra con gozo y glorifica a Dios, usa emojis 🎉✨🙌💖🌟\n",
	classifier.CategoryGeneral:   "- Sé cálido, positivo y espiritual, incluye una bendición, usa emojis ✨🙏💫🌟\n",
}

func (c *Composer) fallback(cat classifier.Category) *Reply {
	phrases, ok := fallbackTable[cat]
	if !ok {
		phrases = fallbackTable[classifier.CategoryGeneral]
	}
	return &Reply{
		Text:         phrases[rand.Intn(len(phrases))],
		FromFallback: true,
	}
}

var fallbackTable = map[classifier.Category][]string{
	classifier.CategoryGreeting: {
		"Bendiciones en tu camino ✨🙏",
		"Luz divina te acompañe 🌟🙏",
		"Gracias por ser parte de esta familia 💖🙏",
	},
	classifier.CategoryAbundance: {
		"Que la prosperidad fluya hacia ti 💰✨🙏",
		"Abundancia divina en tu vida 🌟💰🙏",
		"Dios es tu proveedor, confía en su provisión 💰🙏",
	},
	classifier.CategoryDistress: {
		"Que Dios sane tu corazón 💙✨🙏",
		"Paz divina te envuelva 🌟💙🙏",
		"No estás solo, Dios te sostiene 💙🙏",
	},
	classifier.CategoryDoubt: {
		"Bendiciones y comprensión 🕊️🙏",
		"Que encuentres paz 💙✨🙏",
		"Te deseo luz y serenidad 🕊️✨🙏",
	},
	classifier.CategoryGratitude: {
		"Que tus bendiciones se multipliquen ✨🙏",
		"Dios ve tu corazón agradecido 🌟💫🙏",
		"¡Gloria a Dios por tu testimonio! 🎉✨🙏",
	},
	classifier.CategoryGeneral: {
		"Que Dios te bendiga siempre ✨🙏",
		"Paz y luz divina para ti 🌟💙🙏",
		"Bendiciones infinitas en tu camino 💫🙏",
		"Que la luz divina te acompañe ✨🌟🙏",
		"Amor y paz para tu alma 💙✨🙏",
		"Que Dios llene tu vida de gozo 🌟💫🙏",
	},
}

var distancingPhrases = []string{
	"respeto tu perspectiva",
	"respeto tu opinión",
}

// rejectedByCordialityFilter discards generated text that keeps the user at
// arm's length or is too short to be a real answer.
func rejectedByCordialityFilter(text string) bool {
	if len([]rune(strings.TrimSpace(text))) < minGeneratedLength {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range distancingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func sanitize(text string) string {
	text = strings.ReplaceAll(text, `"`, "")
	text = strings.ReplaceAll(text, "*", "")
	return strings.TrimSpace(text)
}

func (c *Composer) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= c.maxLength {
		return text
	}
	return string(runes[:c.maxLength-3]) + "..."
}

func isBlocked(err error) bool {
	return errors.Is(err, gemini.ErrBlocked)
}
