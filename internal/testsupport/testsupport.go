// Package testsupport provides fixtures shared by package tests: a
// ready-to-run configuration rooted in a temp directory and a minimal valid
// PSID file builder.
package testsupport

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/chrisgleissner/sidflow-sub004/internal/config"
)

// ConfigOption mutates the test configuration before it is returned.
type ConfigOption func(*config.Config)

// NewConfig returns a configuration rooted in t.TempDir(), using the stub
// engine, short render lengths, and low analysis rates so tests stay fast.
func NewConfig(t *testing.T, opts ...ConfigOption) *config.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Paths.WAVDir = filepath.Join(root, "wav")
	cfg.Paths.CacheDir = filepath.Join(root, "cache")
	cfg.Paths.LogDir = filepath.Join(root, "log")
	cfg.Paths.ModelPath = filepath.Join(root, "model.json")
	cfg.Render.Engine = "stub"
	cfg.Render.Threads = 2
	cfg.Render.SongLengthSeconds = 1
	cfg.Render.SampleRate = 11025
	cfg.Analysis.MaxAnalysisSeconds = 1
	cfg.Analysis.AnalysisRate = 11025
	cfg.Logging.Level = "error"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WriteSID writes a minimal valid PSID v2 file and returns its path. Title
// and author land in the header's Latin-1 text fields.
func WriteSID(t *testing.T, dir, name, title, author string) string {
	t.Helper()

	data := make([]byte, 0x7C+64) // header plus a little song data
	copy(data[0:4], "PSID")
	binary.BigEndian.PutUint16(data[4:6], 2)       // version
	binary.BigEndian.PutUint16(data[6:8], 0x7C)    // data offset
	binary.BigEndian.PutUint16(data[8:10], 0x1000) // load address
	binary.BigEndian.PutUint16(data[14:16], 1)     // songs
	binary.BigEndian.PutUint16(data[16:18], 1)     // start song
	copy(data[0x16:0x36], title)
	copy(data[0x36:0x56], author)
	copy(data[0x56:0x76], "2026")
	for i := 0x7C; i < len(data); i++ {
		data[i] = byte(i)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write sid fixture: %v", err)
	}
	return path
}
