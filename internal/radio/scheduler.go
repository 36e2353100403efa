package radio

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/radiodj/internal/announce"
	"github.com/MrWong99/radiodj/internal/news"
	"github.com/MrWong99/radiodj/internal/observe"
)

// Scheduler defaults.
const (
	DefaultNewsFrequency = 3
	DefaultInjectTimeout = 2 * time.Minute
	DefaultNewsTopic     = "Star Citizen"
)

// Announcement outcomes recorded on the radiodj.announcements counter.
const (
	OutcomeOK              = "ok"
	OutcomeNoNews          = "no_news"
	OutcomeSynthesisFailed = "synthesis_failed"
	OutcomeInjectFailed    = "inject_failed"
	OutcomePanic           = "panic"
)

// ErrNoNews is returned when a news announcement was requested but the news
// source is empty.
var ErrNoNews = errors.New("radio: no news available")

// SchedulerConfig tunes a [Scheduler].
type SchedulerConfig struct {
	// NewsFrequency is the number of tracks between news segments.
	NewsFrequency int

	// NewsTopic prefixes news texts, e.g. "Star Citizen news update: ...".
	NewsTopic string

	// InjectTimeout bounds playback of one announcement.
	InjectTimeout time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.NewsFrequency <= 0 {
		c.NewsFrequency = DefaultNewsFrequency
	}
	if c.NewsTopic == "" {
		c.NewsTopic = DefaultNewsTopic
	}
	if c.InjectTimeout <= 0 {
		c.InjectTimeout = DefaultInjectTimeout
	}
	return c
}

// SchedulerOption configures a [Scheduler].
type SchedulerOption func(*Scheduler)

// WithClock replaces the time source for time checks.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// WithTrackState lets a cycle see whether its track is still the one playing.
// Without it every cycle announces.
func WithTrackState(ts TrackState) SchedulerOption {
	return func(s *Scheduler) { s.tracks = ts }
}

// Scheduler runs the announcement cycle around track starts.
type Scheduler struct {
	gen      Generator
	syn      Synthesizer
	inj      Injector
	tracks   TrackState
	news     NewsSource
	sessions *Sessions
	cfg      SchedulerConfig
	freq     atomic.Int64
	now      func() time.Time
	metrics  *observe.Metrics
}

// NewScheduler returns a Scheduler. newsSrc may be nil, in which case news
// segments are skipped.
func NewScheduler(gen Generator, syn Synthesizer, inj Injector, newsSrc NewsSource, sessions *Sessions, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		gen:      gen,
		syn:      syn,
		inj:      inj,
		news:     newsSrc,
		sessions: sessions,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.freq.Store(int64(s.cfg.NewsFrequency))
	return s
}

// NewsFrequency returns the effective news frequency.
func (s *Scheduler) NewsFrequency() int { return int(s.freq.Load()) }

// SetNewsFrequency changes the news frequency for subsequent cycles.
// Non-positive values are ignored.
func (s *Scheduler) SetNewsFrequency(n int) {
	if n > 0 {
		s.freq.Store(int64(n))
	}
}

// NewsDue reports whether a news segment precedes the next track in a session
// that has committed songCount tracks.
func NewsDue(songCount, frequency int) bool {
	return frequency > 0 && songCount > 0 && songCount%frequency == 0
}

// OnTrackStart runs one announcement cycle for a track that is about to play:
// an optional news segment, the track introduction and the commit of the
// song counter. Failures in either announcement are logged and never stop
// the cycle; the counter is incremented on every path. A cycle that waited
// behind an earlier one and whose track was skipped meanwhile only counts.
func (s *Scheduler) OnTrackStart(ctx context.Context, guildID string, t Track) {
	sess := s.sessions.Get(guildID)
	sess.cycle.Lock()
	defer sess.cycle.Unlock()

	ctx, span := observe.StartSpan(ctx, "radio.track_cycle", trace.WithAttributes(
		attribute.String("guild.id", guildID),
		attribute.String("track.title", t.Title),
	))
	defer span.End()
	log := observe.Logger(ctx).With("guild_id", guildID, "track", t.Title)

	defer func() {
		n := sess.Commit(t)
		s.metrics.RecordSong(ctx)
		span.SetAttributes(attribute.Int("radio.song_count", n))
		log.Debug("track cycle committed", "song_count", n)
	}()

	if s.stale(guildID, t) {
		log.Debug("track no longer playing, skipping announcements")
		span.SetAttributes(attribute.Bool("radio.stale", true))
		return
	}

	count := sess.SongCount()
	if NewsDue(count, s.NewsFrequency()) {
		s.step(ctx, announce.IntentNews, func() error {
			return s.announceNews(ctx, sess)
		})
	}
	s.step(ctx, announce.IntentTrack, func() error {
		a := s.gen.Generate(ctx, sess.History, announce.IntentTrack, announce.Subject{Title: t.Title, Author: t.Author})
		return s.speak(ctx, guildID, a.Text)
	})
}

// stale reports whether guildID has moved on from t.
func (s *Scheduler) stale(guildID string, t Track) bool {
	if s.tracks == nil {
		return false
	}
	cur, ok := s.tracks.NowPlaying(guildID)
	return !ok || cur.URL != t.URL || cur.Title != t.Title
}

// AnnounceNews reads a random news item in guildID outside the track cycle.
func (s *Scheduler) AnnounceNews(ctx context.Context, guildID string) error {
	sess := s.sessions.Get(guildID)
	sess.cycle.Lock()
	defer sess.cycle.Unlock()
	return s.step(ctx, announce.IntentNews, func() error {
		return s.announceNews(ctx, sess)
	})
}

func (s *Scheduler) announceNews(ctx context.Context, sess *Session) error {
	if s.news == nil {
		return ErrNoNews
	}
	item, ok := s.news.Random()
	if !ok {
		return ErrNoNews
	}
	body := news.Text(s.cfg.NewsTopic, item)
	a := s.gen.Generate(ctx, sess.History, announce.IntentNews, announce.Subject{Title: body})
	return s.speak(ctx, sess.GuildID, a.Text+" "+body)
}

// AnnounceZuluTime speaks the current UTC time in guildID.
func (s *Scheduler) AnnounceZuluTime(ctx context.Context, guildID string) error {
	sess := s.sessions.Get(guildID)
	sess.cycle.Lock()
	defer sess.cycle.Unlock()

	return s.step(ctx, announce.IntentTime, func() error {
		zulu := ZuluTime(s.now())
		a := s.gen.Generate(ctx, sess.History, announce.IntentTime, announce.Subject{Title: zulu})
		return s.speak(ctx, guildID, fmt.Sprintf("%s The time is %s.", a.Text, zulu))
	})
}

// ZuluTime formats t as "HH:MM:SS Zulu" in UTC.
func ZuluTime(t time.Time) string {
	return t.UTC().Format("15:04:05") + " Zulu"
}

// speak synthesises text, plays it in guildID and releases the artifact.
func (s *Scheduler) speak(ctx context.Context, guildID, text string) error {
	art, err := s.syn.Synthesize(ctx, text)
	if err != nil {
		return &stepError{outcome: OutcomeSynthesisFailed, err: err}
	}
	defer func() {
		if err := s.syn.Release(art); err != nil {
			observe.Logger(ctx).Warn("failed to release announcement audio", "path", art.Path, "err", err)
		}
	}()

	injCtx, cancel := context.WithTimeout(ctx, s.cfg.InjectTimeout)
	defer cancel()
	if err := s.inj.Inject(injCtx, guildID, art.Path); err != nil {
		return &stepError{outcome: OutcomeInjectFailed, err: err}
	}
	return nil
}

type stepError struct {
	outcome string
	err     error
}

func (e *stepError) Error() string { return e.outcome + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

// step runs fn, recovering panics and recording the outcome. The returned
// error is for callers that report back to a user; the cycle ignores it.
func (s *Scheduler) step(ctx context.Context, intent announce.Intent, fn func() error) (err error) {
	log := observe.Logger(ctx).With("intent", string(intent))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("radio: %s announcement panicked: %v", intent, r)
			log.Error("announcement panicked", "panic", r)
			s.metrics.RecordAnnouncement(ctx, string(intent), OutcomePanic)
		}
	}()

	err = fn()
	outcome := OutcomeOK
	var se *stepError
	switch {
	case err == nil:
		log.Info("announcement played")
	case errors.Is(err, ErrNoNews):
		outcome = OutcomeNoNews
		log.Info("no news to announce")
	case errors.As(err, &se):
		outcome = se.outcome
		log.Warn("announcement failed", "outcome", outcome, "err", se.err)
	default:
		outcome = "error"
		log.Warn("announcement failed", "err", err)
	}
	s.metrics.RecordAnnouncement(ctx, string(intent), outcome)
	return err
}
