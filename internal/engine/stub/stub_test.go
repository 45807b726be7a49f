package stub

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chrisgleissner/sidflow-sub004/internal/engine"
	"github.com/chrisgleissner/sidflow-sub004/internal/wavio"
)

func request(t *testing.T, source string) engine.Request {
	t.Helper()
	return engine.Request{
		SourcePath: source,
		OutputDir:  t.TempDir(),
		Seconds:    1,
		SampleRate: 11025,
	}
}

func TestRenderDeterministic(t *testing.T) {
	s := New()
	req := request(t, "/hvsc/MUSICIANS/H/Hubbard_Rob/Commando.sid")

	first, err := s.Render(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	firstData, err := os.ReadFile(first.WAVPath)
	if err != nil {
		t.Fatal(err)
	}

	req.OutputDir = t.TempDir()
	second, err := s.Render(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	secondData, err := os.ReadFile(second.WAVPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(firstData) != string(secondData) {
		t.Error("same request should synthesize identical bytes")
	}

	other, err := s.Render(context.Background(), request(t, "/hvsc/MUSICIANS/G/Galway_Martin/Wizball.sid"), nil)
	if err != nil {
		t.Fatal(err)
	}
	otherData, err := os.ReadFile(other.WAVPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(firstData) == string(otherData) {
		t.Error("different sources should synthesize different audio")
	}
}

func TestRenderOutputDecodes(t *testing.T) {
	s := New()
	resp, err := s.Render(context.Background(), request(t, "/hvsc/tune.sid"), nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !resp.HasAudio {
		t.Error("default synthesis should be audible")
	}
	audio, err := wavio.DecodeFile(resp.WAVPath)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if audio.Format.SampleRate != 11025 || audio.Format.Channels != 1 {
		t.Errorf("format = %+v", audio.Format)
	}
	if audio.Frames() != 11025 {
		t.Errorf("frames = %d, want 11025", audio.Frames())
	}
}

func TestRenderSilence(t *testing.T) {
	s := New(WithSilence(func(source string) bool {
		return filepath.Base(source) == "broken.sid"
	}))

	silent, err := s.Render(context.Background(), request(t, "/hvsc/broken.sid"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if silent.HasAudio {
		t.Error("matched source should be silent")
	}
	audible, _, err := engine.ScanAudible(silent.WAVPath)
	if err != nil {
		t.Fatal(err)
	}
	if audible {
		t.Error("silent wav scans as audible")
	}

	normal, err := s.Render(context.Background(), request(t, "/hvsc/fine.sid"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !normal.HasAudio {
		t.Error("unmatched source should be audible")
	}
}

func TestRenderSubtuneSuffix(t *testing.T) {
	s := New()
	req := request(t, "/hvsc/multi.sid")
	req.Song = 3
	resp, err := s.Render(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(resp.WAVPath) != "multi_3.wav" {
		t.Errorf("wav path = %q", resp.WAVPath)
	}
}

func TestRenderValidation(t *testing.T) {
	s := New()
	if _, err := s.Render(context.Background(), engine.Request{OutputDir: "/tmp"}, nil); err == nil {
		t.Error("missing source must error")
	}
	if _, err := s.Render(context.Background(), engine.Request{SourcePath: "a.sid"}, nil); err == nil {
		t.Error("missing output dir must error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Render(ctx, request(t, "/hvsc/tune.sid"), nil); err == nil {
		t.Error("cancelled context must error")
	}
}
