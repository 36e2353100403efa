package announce

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/radiodj/internal/observe"
	"github.com/MrWong99/radiodj/pkg/provider/llm"
)

// Generation defaults.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultTemperature     = 0.9
	DefaultMaxTokens       = 100
	DefaultRepeatThreshold = 0.97
)

// Config tunes a [Generator]. Zero fields take the package defaults.
type Config struct {
	// Persona shapes the prompt.
	Persona Persona

	// Timeout bounds a single model call.
	Timeout time.Duration

	// Temperature is the sampling temperature sent to the model.
	Temperature float64

	// MaxTokens caps the model output length.
	MaxTokens int

	// RepeatThreshold is the Jaro-Winkler similarity at or above which model
	// output counts as a repeat of a history entry and is discarded. A
	// negative value disables the check.
	RepeatThreshold float64
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.RepeatThreshold == 0 {
		c.RepeatThreshold = DefaultRepeatThreshold
	}
	c.Persona = c.Persona.withDefaults()
	return c
}

// Option configures a [Generator].
type Option func(*Generator)

// WithPicker replaces the random index source used to choose fallback lines.
// pick(n) must return a value in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(g *Generator) { g.pick = pick }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithPhrasebook overrides fallback lines per intent. Intents missing from pb
// keep the default lines.
func WithPhrasebook(pb Phrasebook) Option {
	return func(g *Generator) { g.phrases = g.phrases.Merge(pb) }
}

// Generator turns an intent and subject into announcement text.
// It is safe for concurrent use; per-session state lives in [History].
type Generator struct {
	llm     llm.Provider
	cfg     Config
	phrases Phrasebook
	pick    func(n int) int
	metrics *observe.Metrics
}

// New returns a Generator backed by provider. A nil provider yields a
// Generator that always uses fallback lines.
func New(provider llm.Provider, cfg Config, opts ...Option) *Generator {
	g := &Generator{
		llm:     provider,
		cfg:     cfg.withDefaults(),
		phrases: DefaultPhrasebook(),
		pick:    rand.IntN,
	}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Generate produces announcement text for intent and subj. Unknown intents
// are treated as IntentTrack. Model output is appended to h; fallback lines
// never are. h may be nil.
//
// Generate never fails: any model error, timeout, empty or repeated output
// yields a fallback line.
func (g *Generator) Generate(ctx context.Context, h *History, intent Intent, subj Subject) Announcement {
	intent = intent.normalize()
	start := time.Now()

	ctx, span := observe.StartSpan(ctx, "announce.generate")
	defer span.End()

	var recent []string
	if h != nil {
		recent = h.Entries()
	}

	text, ok := g.complete(ctx, intent, subj, recent)
	if !ok {
		a := Announcement{Text: g.fallback(intent, subj), Intent: intent, Source: SourceFallback}
		g.metrics.RecordGeneration(ctx, string(intent), string(a.Source), time.Since(start))
		return a
	}

	if h != nil {
		h.Add(text)
	}
	g.metrics.RecordGeneration(ctx, string(intent), string(SourceLLM), time.Since(start))
	return Announcement{Text: text, Intent: intent, Source: SourceLLM}
}

// complete asks the model for a line. ok is false when the result must not
// be used.
func (g *Generator) complete(ctx context.Context, intent Intent, subj Subject, recent []string) (string, bool) {
	if g.llm == nil {
		return "", false
	}
	log := observe.Logger(ctx).With("intent", string(intent))

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.llm.Complete(callCtx, llm.CompletionRequest{
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: BuildPrompt(g.cfg.Persona, intent, subj, recent),
		}},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		log.Warn("announcement generation failed, using fallback", "err", err)
		return "", false
	}
	if resp == nil {
		log.Warn("announcement generation returned no response, using fallback")
		return "", false
	}

	if resp.Truncated {
		log.Warn("announcement hit the token limit, using fallback", "max_tokens", g.cfg.MaxTokens)
		return "", false
	}
	text := Clean(resp.Content)
	if text == "" {
		log.Warn("announcement generation returned empty text, using fallback")
		return "", false
	}
	if g.repeats(text, recent) {
		log.Info("announcement repeats recent history, using fallback", "text", text)
		return "", false
	}
	return text, true
}

// repeats reports whether text is near-identical to a recent entry.
func (g *Generator) repeats(text string, recent []string) bool {
	if g.cfg.RepeatThreshold < 0 {
		return false
	}
	norm := strings.ToLower(text)
	for _, r := range recent {
		if matchr.JaroWinkler(norm, strings.ToLower(r), false) >= g.cfg.RepeatThreshold {
			return true
		}
	}
	return false
}

func (g *Generator) fallback(intent Intent, subj Subject) string {
	lines := g.phrases.lines(intent)
	i := g.pick(len(lines))
	if i < 0 || i >= len(lines) {
		slog.Warn("fallback picker out of range", "index", i, "lines", len(lines))
		i = 0
	}
	return render(lines[i], subj)
}

// Clean trims whitespace and one layer of surrounding quotes from model
// output.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
			break
		}
	}
	return s
}
