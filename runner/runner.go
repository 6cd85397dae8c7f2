// Package runner orchestrates one polling run: fetch comments, filter,
// classify, compose, post, and record, under a per-run reply cap and a fixed
// inter-call rate gate.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"prosperidad-bot/classifier"
	"prosperidad-bot/composer"
	"prosperidad-bot/report"
	"prosperidad-bot/store"
	"prosperidad-bot/youtube"
)

const (
	defaultMaxReplies = 17
	defaultLookback   = 48 * time.Hour
)

// CommentSource reads channel data from the platform.
type CommentSource interface {
	VerifyChannel(ctx context.Context) (*youtube.Channel, error)
	RecentVideos(ctx context.Context) ([]youtube.Video, error)
	TopLevelComments(ctx context.Context, videoID, videoTitle string, since time.Time) ([]youtube.Comment, error)
}

// ReplyPoster writes replies back to the platform.
type ReplyPoster interface {
	PostReply(ctx context.Context, parentID, text string) (string, error)
}

// Composer produces reply text for a classified comment.
type Composer interface {
	Compose(ctx context.Context, req composer.Request) (*composer.Reply, error)
}

// Gate paces external calls. *rate.Limiter satisfies it.
type Gate interface {
	Wait(ctx context.Context) error
}

// NopGate is a Gate that never waits, for tests.
type NopGate struct{}

// Wait returns immediately.
func (NopGate) Wait(context.Context) error { return nil }

// Runner executes the classify → compose → post pipeline.
type Runner struct {
	source     CommentSource
	poster     ReplyPoster
	composer   Composer
	answered   *store.AnsweredLog
	memory     *store.Memory
	gate       Gate
	maxReplies int
	lookback   time.Duration
	delaySecs  int
	model      string
	channelID  string
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxReplies sets the per-run reply cap.
func WithMaxReplies(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxReplies = n
		}
	}
}

// WithLookback sets the recency horizon for candidate comments.
func WithLookback(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.lookback = d
		}
	}
}

// WithGate sets the pacing gate for external calls.
func WithGate(g Gate) Option {
	return func(r *Runner) {
		r.gate = g
	}
}

// WithDelaySeconds records the configured inter-call delay in the run report.
func WithDelaySeconds(n int) Option {
	return func(r *Runner) {
		r.delaySecs = n
	}
}

// WithModel records the model name in the run report.
func WithModel(model string) Option {
	return func(r *Runner) {
		r.model = model
	}
}

// WithChannelID records the channel id in the run report.
func WithChannelID(id string) Option {
	return func(r *Runner) {
		r.channelID = id
	}
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner wires the pipeline dependencies.
func NewRunner(
	source CommentSource,
	poster ReplyPoster,
	comp Composer,
	answered *store.AnsweredLog,
	memory *store.Memory,
	opts ...Option,
) *Runner {
	r := &Runner{
		source:     source,
		poster:     poster,
		composer:   comp,
		answered:   answered,
		memory:     memory,
		gate:       NopGate{},
		maxReplies: defaultMaxReplies,
		lookback:   defaultLookback,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one polling cycle. Past configuration load, nothing aborts a
// run: every per-video and per-comment failure is counted, logged, and
// skipped. The returned report is always non-nil.
func (r *Runner) Run(ctx context.Context) (*report.Run, error) {
	start := r.now()
	rep := report.NewRun(start)
	rep.ChannelID = r.channelID
	rep.Model = r.model
	rep.MaxReplies = r.maxReplies
	rep.DelaySeconds = r.delaySecs
	rep.LookbackHours = int(r.lookback.Hours())
	defer func() { rep.Finish(r.now()) }()

	channel, err := r.source.VerifyChannel(ctx)
	if err != nil {
		slog.Warn("channel verification failed", "channel_id", r.channelID, "error", err)
		rep.Counts.YouTubeErrors++
		return rep, nil
	}
	slog.Info("channel verified", "title", channel.Title, "subscribers", channel.Subscribers)

	videos, err := r.source.RecentVideos(ctx)
	if err != nil {
		slog.Warn("failed to list recent videos", "error", err)
		rep.Counts.YouTubeErrors++
		return rep, nil
	}
	slog.Info("fetched recent videos", "count", len(videos))

	candidates := r.collectCandidates(ctx, videos, rep)
	slog.Info("eligible comments collected", "count", len(candidates))

	// Most recent first; this ordering decides who gets a reply when the
	// per-run cap is hit.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Published.After(candidates[j].Published)
	})

	for _, comment := range candidates {
		if rep.Counts.RepliesSent >= r.maxReplies {
			slog.Info("reply cap reached", "cap", r.maxReplies)
			break
		}
		if ctx.Err() != nil {
			break
		}
		r.processComment(ctx, comment, rep)
	}

	if err := r.memory.Persist(); err != nil {
		slog.Warn("failed to persist conversation memory", "error", err)
	}

	return rep, nil
}

func (r *Runner) collectCandidates(ctx context.Context, videos []youtube.Video, rep *report.Run) []youtube.Comment {
	since := r.now().Add(-r.lookback)

	var candidates []youtube.Comment
	for _, video := range videos {
		comments, err := r.source.TopLevelComments(ctx, video.ID, video.Title, since)
		if err != nil {
			slog.Warn("failed to fetch comments, skipping video",
				"video_id", video.ID, "error", err)
			rep.Counts.YouTubeErrors++
			continue
		}

		for _, comment := range comments {
			switch {
			case r.answered.Has(comment.ID):
				rep.Counts.SkippedAnswered++
			case comment.ReplyCount > 0:
				// Someone already replied (us or another account):
				// remember it so it never re-enters the pipeline, but
				// report it as its own outcome.
				if err := r.answered.Record(comment.ID); err != nil {
					slog.Warn("failed to record already-replied comment", "id", comment.ID, "error", err)
				}
				rep.Counts.SkippedAlreadyReplied++
			case !classifier.Valid(comment.Text):
				rep.Counts.Filtered++
			default:
				candidates = append(candidates, comment)
			}
		}
	}
	return candidates
}

func (r *Runner) processComment(ctx context.Context, comment youtube.Comment, rep *report.Run) {
	rep.Counts.Processed++

	result := classifier.Classify(comment.Text, comment.VideoTitle)
	rep.Categories[string(result.Category)]++

	if result.Category != classifier.CategoryCrisis {
		if err := r.gate.Wait(ctx); err != nil {
			return
		}
	}

	reply, err := r.composer.Compose(ctx, composer.Request{
		Text:           comment.Text,
		AuthorName:     comment.AuthorName,
		VideoTitle:     comment.VideoTitle,
		Category:       result.Category,
		Tone:           result.Tone,
		NeedsSoftReply: result.NeedsSoftReply,
		Figures:        result.Figures,
		History:        r.memory.History(comment.AuthorID),
	})
	if errors.Is(err, composer.ErrCrisisContent) {
		// Deliberate no-op: do not engage, do not mark answered, leave the
		// comment eligible for human follow-up.
		slog.Info("crisis content ignored", "comment_id", comment.ID)
		rep.Counts.CrisisIgnored++
		return
	}
	if err != nil {
		slog.Warn("compose failed", "comment_id", comment.ID, "error", err)
		rep.Counts.GeminiErrors++
		return
	}

	if reply.GenerationFailed {
		rep.Counts.GeminiErrors++
	}
	if reply.SafetyBlocked {
		rep.Counts.SafetyBlocks++
	}
	if reply.FromFallback {
		rep.Counts.Fallbacks++
	} else {
		rep.Counts.ModelReplies++
	}

	if err := r.gate.Wait(ctx); err != nil {
		return
	}

	if _, err := r.poster.PostReply(ctx, comment.ID, reply.Text); err != nil {
		slog.Warn("failed to post reply",
			"comment_id", comment.ID, "author", comment.AuthorName, "error", err)
		rep.Counts.YouTubeErrors++
		return
	}

	if err := r.answered.Record(comment.ID); err != nil {
		slog.Warn("failed to record answered id", "id", comment.ID, "error", err)
	}
	r.memory.RecordInteraction(comment.AuthorID, comment.AuthorName, comment.Text)
	rep.Counts.RepliesSent++

	slog.Info("reply sent",
		"comment_id", comment.ID,
		"author", comment.AuthorName,
		"category", result.Category,
		"fallback", reply.FromFallback)
}
