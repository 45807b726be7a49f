package engine

import (
	"context"

	"github.com/chrisgleissner/sidflow-sub004/internal/wavio"
)

// Request describes one render job: a source tune rendered to WAV.
type Request struct {
	SourcePath string
	OutputDir  string
	Song       int // 1-based subtune; 0 selects the tune's start song
	Seconds    int
	SampleRate int
}

// Update is a mid-render progress event forwarded to the pool.
type Update struct {
	Percent float64
	Message string
}

// Response is the outcome of a completed render. HasAudio is false when the
// output decoded to silence; the pipeline tracks consecutive silent renders
// per worker.
type Response struct {
	WAVPath  string
	Seconds  float64
	HasAudio bool
}

// Engine renders chiptune sources to PCM audio. Implementations must be safe
// for sequential reuse; the pool guarantees one in-flight render per engine
// instance.
type Engine interface {
	Name() string
	Render(ctx context.Context, req Request, progress func(Update)) (*Response, error)
}

// silenceFloor is just above one LSB of 16-bit PCM.
const silenceFloor = 1.5 / 32768.0

// ScanAudible decodes a rendered WAV and reports whether any sample rises
// above the 16-bit noise floor.
func ScanAudible(path string) (bool, float64, error) {
	audio, err := wavio.DecodeFile(path)
	if err != nil {
		return false, 0, err
	}
	for _, s := range audio.Samples {
		if s > silenceFloor || s < -silenceFloor {
			return true, audio.Duration(), nil
		}
	}
	return false, audio.Duration(), nil
}
