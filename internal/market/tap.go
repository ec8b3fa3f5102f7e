package market

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BacktestMode controls whether raw inbound frames are persisted.
type BacktestMode int

const (
	BacktestOff BacktestMode = iota
	BacktestToFile
)

// Tap copies raw websocket frames to disk, one frame per line, rolling the
// file every hour: data/{venue}_l2_{YYYY_MM_DD_HH}.dat. It sits beside the
// parse path as an explicit pipeline stage, so stream handling is unaffected
// when the mode is off.
type Tap struct {
	mode  BacktestMode
	venue string
	dir   string
	log   zerolog.Logger

	mu   sync.Mutex
	hour string
	file *os.File
}

// NewTap builds the sink. dir defaults to "data".
func NewTap(mode BacktestMode, venue, dir string, log zerolog.Logger) *Tap {
	if dir == "" {
		dir = "data"
	}
	return &Tap{
		mode:  mode,
		venue: venue,
		dir:   dir,
		log:   log.With().Str("component", "tap").Logger(),
	}
}

// Write appends one raw frame. Failures are logged, never propagated: the
// sink must not stall the ingest path.
func (t *Tap) Write(frame []byte) {
	if t == nil || t.mode != BacktestToFile {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	hour := time.Now().UTC().Format("2006_01_02_15")
	if t.file == nil || hour != t.hour {
		if t.file != nil {
			_ = t.file.Close()
			t.file = nil
		}
		if err := os.MkdirAll(t.dir, 0o755); err != nil {
			t.log.Error().Err(err).Msg("create backtest dir failed")
			return
		}
		name := filepath.Join(t.dir, fmt.Sprintf("%s_l2_%s.dat", t.venue, hour))
		file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			t.log.Error().Err(err).Str("file", name).Msg("open backtest file failed")
			return
		}
		t.file = file
		t.hour = hour
	}

	if _, err := t.file.Write(append(frame, '\n')); err != nil {
		t.log.Error().Err(err).Msg("backtest write failed")
	}
}

// Close releases the current file.
func (t *Tap) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
	}
}
