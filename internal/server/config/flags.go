package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/flagx"
)

var knownFlags = []string{"-a", "-d", "-s", "-t", "-k", "-u", "-p", "-b", "-g", "-e", "-x", "-l"}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-k string   device secret
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-x int      presigned URL expiry, minutes
//	-l string   log level
//
// os.Args is filtered with flagx.FilterArgs first, so subcommand names and
// the config flag never reach this flag set.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	fs.StringVar(&config.DeviceSecret, "k", config.DeviceSecret, "device secret")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	presignExpiry := fs.Int("x", int(config.PresignExpiry.Minutes()), "presigned URL expiry (in minutes)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.PresignExpiry = time.Duration(*presignExpiry) * time.Minute
}
