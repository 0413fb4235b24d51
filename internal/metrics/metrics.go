package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var initOnce sync.Once

// Init creates and registers all collectors with the default registry.
// Safe to call multiple times. Labelled series appear only once a run has
// touched them, so a mode that never ran exports no last-run timestamp.
func Init() {
	initOnce.Do(func() {
		initSweepMetrics()
		registerSweepMetrics()
	})
}

// WriteTextfile writes every registered metric family to path in the text
// exposition format read by node_exporter's textfile collector. The write is
// atomic: a temp file is renamed into place.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
