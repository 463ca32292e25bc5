package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/client/syncer"
	"github.com/dmitrijs2005/gophsync/internal/client/transfer"
)

const (
	DBFileName = "gophsync.db"
	LogDirName = "logs"
)

// Config holds runtime settings for the gophsync client.
type Config struct {
	DataDir string

	RemoteMode   string
	ServerAddr   string
	DeviceID     string
	DeviceSecret string

	// ProbeAddr is the host:port the connectivity prober dials. Empty means
	// ServerAddr.
	ProbeAddr    string
	ProbeTimeout time.Duration

	StatusInterval time.Duration
	RemoteTimeout  time.Duration
	BatchSize      int
	RetryBase      time.Duration
	MaxRetries     int

	LowThreshold     int64
	HighThreshold    int64
	PieceSize        int
	ProgressInterval time.Duration
	SessionTTL       time.Duration
	IdleTimeout      time.Duration
	YieldEvery       int
	YieldPause       time.Duration
	StrictChunkOrder bool

	// LogFile defaults to <DataDir>/logs/client.log.
	LogFile  string
	LogLevel string
}

// DefaultDataDir is <user config dir>/gophsync, or .gophsync in the working
// directory when the platform has no config dir.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gophsync")
	}
	return ".gophsync"
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = DefaultDataDir()

	c.RemoteMode = remote.ModeGRPC
	c.ServerAddr = "127.0.0.1:50051"
	c.DeviceID = defaultDeviceID()

	c.ProbeTimeout = 3 * time.Second
	c.StatusInterval = syncer.DefaultStatusInterval
	c.RemoteTimeout = syncer.DefaultRemoteTimeout
	c.BatchSize = syncer.DefaultBatchSize
	c.RetryBase = syncer.DefaultRetryBase
	c.MaxRetries = syncer.DefaultMaxRetries

	c.LowThreshold = transfer.DefaultLowThreshold
	c.HighThreshold = transfer.DefaultHighThreshold
	c.PieceSize = transfer.DefaultPieceSize
	c.ProgressInterval = transfer.DefaultProgressInterval
	c.SessionTTL = transfer.DefaultSessionTTL
	c.IdleTimeout = transfer.DefaultIdleTimeout
	c.YieldEvery = transfer.DefaultYieldEvery
	c.YieldPause = transfer.DefaultYieldPause

	c.LogLevel = "info"
}

func defaultDeviceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "gophsync-client"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

func (c *Config) DBPath() string { return filepath.Join(c.DataDir, DBFileName) }
func (c *Config) LogDir() string { return filepath.Join(c.DataDir, LogDirName) }
func (c *Config) LogFilePath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.LogDir(), "client.log")
}

func (c *Config) ProbeAddress() string {
	if c.ProbeAddr != "" {
		return c.ProbeAddr
	}
	return c.ServerAddr
}

func (c *Config) SyncConfig() syncer.Config {
	return syncer.Config{
		BatchSize:      c.BatchSize,
		RemoteTimeout:  c.RemoteTimeout,
		StatusInterval: c.StatusInterval,
		RetryBase:      c.RetryBase,
		MaxRetries:     c.MaxRetries,
	}
}

func (c *Config) TransferConfig() transfer.Config {
	tc := transfer.DefaultConfig(c.DataDir)
	tc.LowThreshold = c.LowThreshold
	tc.HighThreshold = c.HighThreshold
	tc.PieceSize = c.PieceSize
	tc.ProgressInterval = c.ProgressInterval
	tc.SessionTTL = c.SessionTTL
	tc.IdleTimeout = c.IdleTimeout
	tc.YieldEvery = c.YieldEvery
	tc.YieldPause = c.YieldPause
	tc.StrictChunkOrder = c.StrictChunkOrder
	return tc
}

func (c *Config) RemoteOptions() remote.Options {
	return remote.Options{
		Mode:     c.RemoteMode,
		Address:  c.ServerAddr,
		DeviceID: c.DeviceID,
		Secret:   c.DeviceSecret,
	}
}
