package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/chrisgleissner/sidflow-sub004/internal/engine"
	"github.com/chrisgleissner/sidflow-sub004/internal/engine/stub"
	"github.com/chrisgleissner/sidflow-sub004/internal/features"
	"github.com/chrisgleissner/sidflow-sub004/internal/progress"
	"github.com/chrisgleissner/sidflow-sub004/internal/rating"
	"github.com/chrisgleissner/sidflow-sub004/internal/renderpool"
	"github.com/chrisgleissner/sidflow-sub004/internal/testsupport"
)

// trackingFactory wraps the stub engine, records which slots rendered, and
// holds the first render on each slot at a barrier so both slots must
// overlap before any job completes.
func trackingFactory(slots *sync.Map, barrier *sync.WaitGroup) renderpool.EngineFactory {
	return func(slot int) (engine.Engine, error) {
		return &slotTracker{slot: slot, slots: slots, barrier: barrier, inner: stub.New()}, nil
	}
}

type slotTracker struct {
	slot    int
	slots   *sync.Map
	barrier *sync.WaitGroup
	once    sync.Once
	inner   engine.Engine
}

func (s *slotTracker) Name() string { return s.inner.Name() }

func (s *slotTracker) Render(ctx context.Context, req engine.Request, progress func(engine.Update)) (*engine.Response, error) {
	s.slots.Store(s.slot, true)
	s.once.Do(func() {
		s.barrier.Done()
		s.barrier.Wait()
	})
	return s.inner.Render(ctx, req, progress)
}

func corpus(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	files := make([]string, 0, n)
	for i := 0; i < n; i++ {
		files = append(files, testsupport.WriteSID(t, dir,
			fmt.Sprintf("tune%02d.sid", i), fmt.Sprintf("Tune %d", i), "Test Composer"))
	}
	return files
}

func TestRunClassifiesCorpus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var slots sync.Map
	var barrier sync.WaitGroup
	barrier.Add(cfg.Render.Threads)
	c, err := New(cfg, nil, WithEngineFactory(trackingFactory(&slots, &barrier)))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	files := corpus(t, 4)
	results, err := c.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("results = %d", len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("file %d failed: %v", i, r.Err)
			continue
		}
		if r.Path != files[i] {
			t.Errorf("result %d out of order: %s", i, r.Path)
		}
		if r.Title == "" || r.Author != "Test Composer" {
			t.Errorf("header metadata missing: %+v", r)
		}
		if r.CorrelationID == "" {
			t.Error("missing correlation id")
		}
		if len(r.Features.Values) == 0 {
			t.Errorf("file %d has no features", i)
		}
		if r.Prediction != nil {
			t.Error("prediction set without a model")
		}
	}

	snap := c.Aggregator().Snapshot()
	if snap.State != progress.StateCompleted {
		t.Errorf("state = %s", snap.State)
	}
	if snap.RenderedFiles != 4 {
		t.Errorf("rendered = %d, want 4", snap.RenderedFiles)
	}
	if snap.ProcessedFiles != 4 || snap.FailedFiles != 0 {
		t.Errorf("processed=%d failed=%d", snap.ProcessedFiles, snap.FailedFiles)
	}

	used := 0
	slots.Range(func(_, _ any) bool { used++; return true })
	if used < 2 {
		t.Errorf("only %d worker slots used, want both", used)
	}
}

func TestRunTagsWithModel(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	// fit a model from a first pass over the corpus
	fitClassifier, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	files := corpus(t, 3)
	fitResults, err := fitClassifier.Run(context.Background(), files)
	fitClassifier.Close()
	if err != nil {
		t.Fatal(err)
	}
	sets := make([]features.Set, 0, len(fitResults))
	for _, r := range fitResults {
		if r.Err != nil {
			t.Fatalf("fit pass failed for %s: %v", r.Path, r.Err)
		}
		sets = append(sets, r.Features)
	}
	model, err := rating.Fit(sets)
	if err != nil {
		t.Fatal(err)
	}

	c, err := New(cfg, nil, WithModel(model))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	results, err := c.Run(context.Background(), files)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("%s failed: %v", r.Path, r.Err)
		}
		if r.Prediction == nil {
			t.Fatalf("%s missing prediction", r.Path)
		}
		for _, axis := range []string{rating.AxisEnergy, rating.AxisComplexity, rating.AxisMood} {
			score, ok := r.Prediction.Ratings[axis]
			if !ok || score < 1 || score > 5 {
				t.Errorf("%s axis %s score %d", r.Path, axis, score)
			}
		}
	}
}

func TestRunContinuesPastFailedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	files := corpus(t, 2)
	// corrupt header: parsing fails fatally in the analyzing phase
	broken := filepath.Join(t.TempDir(), "broken.sid")
	if err := os.WriteFile(broken, []byte("JUNKJUNKJUNK"), 0o644); err != nil {
		t.Fatal(err)
	}
	all := append([]string{files[0], broken}, files[1])

	results, err := c.Run(context.Background(), all)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("healthy files failed: %v / %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Error("corrupt file should fail")
	} else if !strings.Contains(results[1].Err.Error(), "fatal") {
		t.Errorf("corrupt header should classify fatal: %v", results[1].Err)
	}

	snap := c.Aggregator().Snapshot()
	if snap.ProcessedFiles != 2 || snap.FailedFiles != 1 {
		t.Errorf("processed=%d failed=%d", snap.ProcessedFiles, snap.FailedFiles)
	}
	if snap.State != progress.StateCompleted {
		t.Errorf("one bad file must not fail the run: %s", snap.State)
	}
}

func TestRunNoAudioEscalation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Render.Threads = 1
	silentFactory := func(slot int) (engine.Engine, error) {
		return stub.New(stub.WithSilence(func(string) bool { return true })), nil
	}
	c, err := New(cfg, nil, WithEngineFactory(silentFactory))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	results, err := c.Run(context.Background(), corpus(t, 4))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("silent renders still classify: %v", r.Err)
		}
	}
	snap := c.Aggregator().Snapshot()
	if snap.Threads[0].NoAudioStreak != 4 {
		t.Errorf("no-audio streak = %d, want 4", snap.Threads[0].NoAudioStreak)
	}
}

func TestRunCancelledContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Run(ctx, corpus(t, 2)); err == nil {
		t.Error("cancelled run must report an error")
	}
	if c.Aggregator().Snapshot().State != progress.StateFailed {
		t.Error("cancelled run should be marked failed")
	}
}

func TestNewValidatesInputs(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("nil config must fail")
	}
	cfg := testsupport.NewConfig(t)
	cfg.Render.Threads = 0
	if _, err := New(cfg, nil); err == nil {
		t.Error("zero threads must fail pool construction")
	}
}
