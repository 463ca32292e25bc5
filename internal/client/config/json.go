package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/flagx"
	"github.com/dmitrijs2005/gophsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from "zero" so a file only overrides the keys
// it names. Durations use timex.Duration ("3s" or integer nanoseconds).
type JsonConfig struct {
	DataDir      *string `json:"data_dir"`
	RemoteMode   *string `json:"remote_mode"`
	ServerAddr   *string `json:"server_addr"`
	DeviceID     *string `json:"device_id"`
	DeviceSecret *string `json:"device_secret"`

	ProbeAddr    *string         `json:"probe_addr"`
	ProbeTimeout *timex.Duration `json:"probe_timeout"`

	StatusInterval *timex.Duration `json:"status_interval"`
	RemoteTimeout  *timex.Duration `json:"remote_timeout"`
	BatchSize      *int            `json:"batch_size"`
	RetryBase      *timex.Duration `json:"retry_base"`
	MaxRetries     *int            `json:"max_retries"`

	LowThreshold     *int64          `json:"low_threshold"`
	HighThreshold    *int64          `json:"high_threshold"`
	PieceSize        *int            `json:"piece_size"`
	ProgressInterval *timex.Duration `json:"progress_interval"`
	SessionTTL       *timex.Duration `json:"session_ttl"`
	IdleTimeout      *timex.Duration `json:"idle_timeout"`
	YieldEvery       *int            `json:"yield_every"`
	YieldPause       *timex.Duration `json:"yield_pause"`
	StrictChunkOrder *bool           `json:"strict_chunk_order"`

	LogFile  *string `json:"log_file"`
	LogLevel *string `json:"log_level"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}

// apply copies every present field into cfg.
func (jc *JsonConfig) apply(cfg *Config) {
	set(&cfg.DataDir, jc.DataDir)
	set(&cfg.RemoteMode, jc.RemoteMode)
	set(&cfg.ServerAddr, jc.ServerAddr)
	set(&cfg.DeviceID, jc.DeviceID)
	set(&cfg.DeviceSecret, jc.DeviceSecret)

	set(&cfg.ProbeAddr, jc.ProbeAddr)
	setDuration(&cfg.ProbeTimeout, jc.ProbeTimeout)

	setDuration(&cfg.StatusInterval, jc.StatusInterval)
	setDuration(&cfg.RemoteTimeout, jc.RemoteTimeout)
	set(&cfg.BatchSize, jc.BatchSize)
	setDuration(&cfg.RetryBase, jc.RetryBase)
	set(&cfg.MaxRetries, jc.MaxRetries)

	set(&cfg.LowThreshold, jc.LowThreshold)
	set(&cfg.HighThreshold, jc.HighThreshold)
	set(&cfg.PieceSize, jc.PieceSize)
	setDuration(&cfg.ProgressInterval, jc.ProgressInterval)
	setDuration(&cfg.SessionTTL, jc.SessionTTL)
	setDuration(&cfg.IdleTimeout, jc.IdleTimeout)
	set(&cfg.YieldEvery, jc.YieldEvery)
	setDuration(&cfg.YieldPause, jc.YieldPause)
	set(&cfg.StrictChunkOrder, jc.StrictChunkOrder)

	set(&cfg.LogFile, jc.LogFile)
	set(&cfg.LogLevel, jc.LogLevel)
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without such a flag it does nothing. Read and unmarshal
// errors panic; the caller recovers.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}
