package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/flagx"
)

var knownFlags = []string{"-d", "-m", "-a", "-p", "-u", "-i", "-b", "-l", "-strict-chunks"}

// parseFlags populates selected Config fields from command-line flags.
//
//	-d string   data directory
//	-m string   remote mode: grpc, memory or none
//	-a string   address and port of the replica server
//	-p string   address the connectivity probe dials
//	-u string   device id
//	-i int      status check interval (in seconds)
//	-b int      sync batch size (clamped to 5..10)
//	-l string   log level
//	-strict-chunks   reject out-of-order chunks
//
// os.Args is filtered with flagx.FilterArgs first so REPL arguments and the
// config flag do not reach this flag set.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.RemoteMode, "m", cfg.RemoteMode, "remote mode (grpc, memory, none)")
	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "address and port to access server")
	fs.StringVar(&cfg.ProbeAddr, "p", cfg.ProbeAddr, "address and port the connectivity probe dials")
	fs.StringVar(&cfg.DeviceID, "u", cfg.DeviceID, "device id")
	statusInterval := fs.Int("i", int(cfg.StatusInterval.Seconds()), "status check interval (in seconds)")
	fs.IntVar(&cfg.BatchSize, "b", cfg.BatchSize, "sync batch size")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.StrictChunkOrder, "strict-chunks", cfg.StrictChunkOrder, "reject out-of-order chunks")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.StatusInterval = time.Duration(*statusInterval) * time.Second
}
