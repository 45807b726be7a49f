package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chrisgleissner/sidflow-sub004/internal/config"
	"github.com/chrisgleissner/sidflow-sub004/internal/engine"
	"github.com/chrisgleissner/sidflow-sub004/internal/engine/sidplay"
	"github.com/chrisgleissner/sidflow-sub004/internal/engine/stub"
	"github.com/chrisgleissner/sidflow-sub004/internal/featurecache"
	"github.com/chrisgleissner/sidflow-sub004/internal/features"
	"github.com/chrisgleissner/sidflow-sub004/internal/logging"
	"github.com/chrisgleissner/sidflow-sub004/internal/phase"
	"github.com/chrisgleissner/sidflow-sub004/internal/progress"
	"github.com/chrisgleissner/sidflow-sub004/internal/rating"
	"github.com/chrisgleissner/sidflow-sub004/internal/renderpool"
	"github.com/chrisgleissner/sidflow-sub004/internal/services"
	"github.com/chrisgleissner/sidflow-sub004/internal/sidfile"
)

// FileResult is the per-file outcome of a classification run. Err is set
// when the file failed; the other fields hold whatever was produced before
// the failure.
type FileResult struct {
	Path          string
	CorrelationID string
	Title         string
	Author        string
	Songs         int
	Features      features.Set
	Prediction    *rating.Prediction
	Err           error
}

// Classifier is the composition root: it owns the render pool, feature
// cache, extractor, and optional rating model, and drives each file through
// the phase sequence while reporting to the aggregator.
type Classifier struct {
	cfg        *config.Config
	pool       *renderpool.Pool
	cache      *featurecache.Cache
	extractor  *features.Extractor
	model      *rating.Model
	aggregator *progress.Aggregator
	logger     *slog.Logger
}

// Option customizes construction.
type Option func(*classifierOptions)

type classifierOptions struct {
	model      *rating.Model
	aggregator *progress.Aggregator
	factory    renderpool.EngineFactory
}

// WithModel supplies a fitted rating model; without one the tagging phase is
// skipped and results carry features only.
func WithModel(m *rating.Model) Option {
	return func(o *classifierOptions) { o.model = m }
}

// WithAggregator shares an externally observed progress aggregator.
func WithAggregator(a *progress.Aggregator) Option {
	return func(o *classifierOptions) { o.aggregator = a }
}

// WithEngineFactory overrides the config-selected engine. Used by tests.
func WithEngineFactory(f renderpool.EngineFactory) Option {
	return func(o *classifierOptions) { o.factory = f }
}

// New builds a classifier from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Classifier, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new",
			"configuration required", nil)
	}
	var o classifierOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.aggregator == nil {
		o.aggregator = progress.NewAggregator(logger, progress.WithThresholds(
			time.Duration(cfg.Workflow.StaleTimeout)*time.Second,
			time.Duration(cfg.Workflow.StallTimeout)*time.Second))
	}
	factory := o.factory
	if factory == nil {
		factory = configuredFactory(cfg.Render)
	}

	pool, err := renderpool.New(cfg.Render.Threads, factory, logger)
	if err != nil {
		return nil, err
	}

	extractorCfg := features.Config{
		MaxAnalysisSeconds: cfg.Analysis.MaxAnalysisSeconds,
		IntroSkipSeconds:   cfg.Analysis.IntroSkipSeconds,
		AnalysisRate:       cfg.Analysis.AnalysisRate,
	}
	return &Classifier{
		cfg:        cfg,
		pool:       pool,
		cache:      featurecache.New(cfg.Paths.CacheDir, logger),
		extractor:  features.NewExtractor(extractorCfg, logger),
		model:      o.model,
		aggregator: o.aggregator,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// configuredFactory maps the configured engine name to a per-slot factory.
func configuredFactory(render config.Render) renderpool.EngineFactory {
	return func(slot int) (engine.Engine, error) {
		switch render.Engine {
		case "stub":
			return stub.New(), nil
		default:
			return sidplay.NewCLI(sidplay.WithBinary(render.Binary)), nil
		}
	}
}

// Aggregator exposes the progress view for external observers.
func (c *Classifier) Aggregator() *progress.Aggregator { return c.aggregator }

// Cache exposes the feature cache for maintenance commands.
func (c *Classifier) Cache() *featurecache.Cache { return c.cache }

// Close tears down the render pool. Idempotent.
func (c *Classifier) Close() { c.pool.Destroy() }

// Run classifies files concurrently on the configured number of executor
// threads. A failed file is recorded and the run continues; results are
// returned in input order. The returned error reflects only run-level
// cancellation.
func (c *Classifier) Run(ctx context.Context, files []string) ([]FileResult, error) {
	threads := c.cfg.Render.Threads
	if threads < 1 {
		threads = 1
	}
	if err := os.MkdirAll(c.cfg.Paths.WAVDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "run",
			"create wav dir "+c.cfg.Paths.WAVDir, err)
	}

	c.aggregator.Begin(len(files), threads)
	results := make([]FileResult, len(files))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for thread := 0; thread < threads; thread++ {
		wg.Add(1)
		go func(thread int) {
			defer wg.Done()
			for i := range jobs {
				results[i] = c.processFile(ctx, thread, files[i])
				c.aggregator.RecordFileDone(thread, results[i].Err)
			}
			c.aggregator.ApplyThreadUpdate(thread, phase.Idle, progress.ThreadIdle, "")
		}(thread)
	}

feed:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		c.aggregator.Fail("run cancelled: " + err.Error())
		return results, services.Wrap(services.ErrTimeout, "pipeline", "run",
			"classification cancelled", err)
	}
	c.aggregator.Complete()
	return results, nil
}

// processFile drives one file through analyzing, building, metadata, and
// tagging. Each phase runs under its retry policy; a fatal or exhausted
// phase fails the file without aborting the run.
func (c *Classifier) processFile(ctx context.Context, thread int, path string) FileResult {
	result := FileResult{Path: path, CorrelationID: uuid.NewString()}

	ctx = services.WithFile(ctx, path)
	ctx = services.WithThread(ctx, thread)
	ctx = services.WithRequestID(ctx, result.CorrelationID)
	logger := logging.WithContext(ctx, c.logger)
	logger.Info("classifying file")

	hooks := func(p phase.Phase) phase.Hooks {
		return phase.Hooks{
			OnRetry: func(attempt, total int, err *phase.ClassifyError, delay time.Duration) {
				c.aggregator.RecordRetry(thread, p)
				logger.Warn("phase attempt failed, retrying",
					logging.String(logging.FieldPhase, string(p)),
					logging.Int("attempt", attempt),
					logging.Int("total_attempts", total),
					logging.Duration("delay", delay),
					logging.Error(err))
			},
			OnFatal: func(err *phase.ClassifyError) {
				logger.Error("phase failed fatally",
					logging.String(logging.FieldPhase, string(p)),
					logging.String("code", err.Code),
					logging.Error(err))
			},
		}
	}

	fail := func(err error) FileResult {
		c.aggregator.ApplyThreadUpdate(thread, phase.Error, progress.ThreadError, "")
		logger.Error("file failed", logging.Error(err))
		result.Err = err
		return result
	}

	// analyzing: read the tune header
	c.aggregator.ApplyThreadUpdate(thread, phase.Analyzing, progress.ThreadWorking, path)
	var header *sidfile.Header
	if err := phase.WithRetry(ctx, phase.Analyzing, func() error {
		h, err := sidfile.ParseFile(path)
		if err != nil {
			return err
		}
		header = h
		return nil
	}, hooks(phase.Analyzing)); err != nil {
		return fail(err)
	}
	result.Title = header.Title
	result.Author = header.Author
	result.Songs = header.Songs

	// building: render through the pool, heartbeating while we wait
	c.aggregator.ApplyThreadUpdate(thread, phase.Building, progress.ThreadWorking, path)
	req := engine.Request{
		SourcePath: path,
		OutputDir:  c.cfg.Paths.WAVDir,
		Song:       header.StartSong,
		Seconds:    c.cfg.Render.SongLengthSeconds,
		SampleRate: c.cfg.Render.SampleRate,
	}
	var resp *engine.Response
	if err := phase.WithRetry(ctx, phase.Building, func() error {
		r, err := c.renderWithHeartbeat(thread, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, hooks(phase.Building)); err != nil {
		return fail(err)
	}

	if resp.HasAudio {
		c.aggregator.ResetNoAudio(thread)
	} else {
		streak, escalate := c.aggregator.RecordNoAudio(thread)
		logger.Warn("render produced no audio",
			logging.Int("no_audio_streak", streak))
		if escalate {
			logger.Warn("consecutive silent renders",
				logging.String(logging.FieldEventType, "no_audio_escalation"),
				logging.Int("no_audio_streak", streak),
				logging.String(logging.FieldErrorHint, "consider switching render engine"))
		}
	}

	// metadata: features via the content-addressed cache
	c.aggregator.ApplyThreadUpdate(thread, phase.Metadata, progress.ThreadWorking, path)
	if err := phase.WithRetry(ctx, phase.Metadata, func() error {
		set, err := c.cache.GetOrExtract(resp.WAVPath, func() (features.Set, error) {
			return c.extractor.Extract(resp.WAVPath, path)
		})
		if err != nil {
			return err
		}
		result.Features = set
		return nil
	}, hooks(phase.Metadata)); err != nil {
		return fail(err)
	}
	if !c.cfg.Render.KeepRenderedAudio {
		if err := os.Remove(resp.WAVPath); err != nil {
			logger.Debug("could not remove rendered audio", logging.Error(err))
		}
	}

	// tagging: score against the fitted model
	if c.model != nil {
		c.aggregator.ApplyThreadUpdate(thread, phase.Tagging, progress.ThreadWorking, path)
		if err := phase.WithRetry(ctx, phase.Tagging, func() error {
			if !c.model.Compatible(result.Features) {
				return services.Wrap(services.ErrValidation, "pipeline", "tagging",
					fmt.Sprintf("invalid feature stamp (%d,%s) for model (%d,%s)",
						result.Features.SchemaVersion, result.Features.Variant,
						c.model.SchemaVersion, c.model.Variant), nil)
			}
			prediction := c.model.Predict(result.Features)
			result.Prediction = &prediction
			return nil
		}, hooks(phase.Tagging)); err != nil {
			return fail(err)
		}
	}

	c.aggregator.ApplyThreadUpdate(thread, phase.Completed, progress.ThreadIdle, "")
	logger.Info("file classified")
	return result
}

// renderWithHeartbeat submits one render job and keeps the thread's liveness
// fresh while waiting. Mid-job engine progress also counts as liveness. The
// configured render timeout converts a wedged engine into a recoverable
// timeout error; the pool worker is abandoned to finish or crash on its own.
func (c *Classifier) renderWithHeartbeat(thread int, req engine.Request) (*engine.Response, error) {
	type outcome struct {
		resp *engine.Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := c.pool.Render(req, func(u engine.Update) {
			c.aggregator.Heartbeat(thread)
		})
		done <- outcome{resp: resp, err: err}
	}()

	beat := time.Duration(c.cfg.Workflow.HeartbeatInterval) * time.Second
	if beat <= 0 {
		beat = phase.HeartbeatIntervalSeconds * time.Second
	}
	ticker := time.NewTicker(beat)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if c.cfg.Render.RenderTimeoutSecs > 0 {
		timer := time.NewTimer(time.Duration(c.cfg.Render.RenderTimeoutSecs) * time.Second)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case out := <-done:
			return out.resp, out.err
		case <-ticker.C:
			c.aggregator.Heartbeat(thread)
		case <-deadline:
			return nil, services.Wrap(services.ErrTimeout, "pipeline", "building",
				fmt.Sprintf("render timeout after %ds for %s",
					c.cfg.Render.RenderTimeoutSecs, req.SourcePath), nil)
		}
	}
}
