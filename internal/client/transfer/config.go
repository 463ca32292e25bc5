package transfer

import (
	"path/filepath"
	"time"
)

const (
	MB = 1 << 20

	DefaultLowThreshold     = 10 * MB
	DefaultHighThreshold    = 100 * MB
	DefaultPieceSize        = 1 * MB
	DefaultProgressInterval = 250 * time.Millisecond
	DefaultSessionTTL       = 5 * time.Minute
	DefaultIdleTimeout      = 30 * time.Minute
	DefaultYieldEvery       = 16
	DefaultYieldPause       = 2 * time.Millisecond
)

// Config carries every tunable of the transfer pipeline. The thresholds are
// read by both the manager and the entity façade, so they live here only.
type Config struct {
	UploadsDir string
	TempDir    string

	LowThreshold  int64
	HighThreshold int64
	PieceSize     int

	ProgressInterval time.Duration
	SessionTTL       time.Duration
	IdleTimeout      time.Duration

	YieldEvery int
	YieldPause time.Duration

	// StrictChunkOrder rejects appends whose index is not the next expected
	// one. Off by default: indexes are recorded but not enforced.
	StrictChunkOrder bool
}

// DefaultConfig lays the uploads and temp directories out under dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		UploadsDir:       filepath.Join(dataDir, "uploads"),
		TempDir:          filepath.Join(dataDir, "tmp"),
		LowThreshold:     DefaultLowThreshold,
		HighThreshold:    DefaultHighThreshold,
		PieceSize:        DefaultPieceSize,
		ProgressInterval: DefaultProgressInterval,
		SessionTTL:       DefaultSessionTTL,
		IdleTimeout:      DefaultIdleTimeout,
		YieldEvery:       DefaultYieldEvery,
		YieldPause:       DefaultYieldPause,
	}
}

func (c Config) withDefaults() Config {
	if c.LowThreshold <= 0 {
		c.LowThreshold = DefaultLowThreshold
	}
	if c.HighThreshold < c.LowThreshold {
		c.HighThreshold = c.LowThreshold
	}
	if c.PieceSize <= 0 {
		c.PieceSize = DefaultPieceSize
	}
	if c.ProgressInterval < 0 {
		c.ProgressInterval = 0
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

// Strategy picks the transfer kind for a file of size bytes:
// below LowThreshold BUFFERED, below HighThreshold STREAMED, else CHUNKED.
func (c Config) Strategy(size int64) Kind {
	switch {
	case size < c.LowThreshold:
		return KindBuffered
	case size < c.HighThreshold:
		return KindStreamed
	default:
		return KindChunked
	}
}
