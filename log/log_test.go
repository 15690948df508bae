package log_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/zkforge/proofhost/log"
)

func TestLeveledHelpers(t *testing.T) {
	c := qt.New(t)

	out := filepath.Join(t.TempDir(), "out.log")
	prevLevel := log.Level()
	log.Init(log.LogLevelDebug, out)
	defer log.Init(prevLevel, "stderr")

	log.Debug("debug ", "message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")
	log.Infof("formatted %d", 42)
	log.Infow("structured message", "key", "value")

	data, err := os.ReadFile(out)
	c.Assert(err, qt.IsNil)
	for _, want := range []string{
		"debug message",
		"info message",
		"warn message",
		"error message",
		"formatted 42",
		"structured message",
	} {
		c.Assert(string(data), qt.Contains, want, qt.Commentf("missing %q", want))
	}
}

func TestLevelFiltering(t *testing.T) {
	c := qt.New(t)

	out := filepath.Join(t.TempDir(), "out.log")
	prevLevel := log.Level()
	log.Init(log.LogLevelWarn, out)
	defer log.Init(prevLevel, "stderr")

	log.Debug("suppressed debug")
	log.Info("suppressed info")
	log.Warn("kept warn")

	data, err := os.ReadFile(out)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Not(qt.Contains), "suppressed")
	c.Assert(string(data), qt.Contains, "kept warn")
}
