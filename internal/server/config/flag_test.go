package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all short flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret", "-t", "1", "-k", "dev",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
			"-x", "5", "-l", "debug",
		},
			expected: &Config{
				EndpointAddrGRPC:            "127.0.0.1:9090",
				DatabaseDSN:                 "db",
				SecretKey:                   "secret",
				AccessTokenValidityDuration: 1 * time.Minute,
				DeviceSecret:                "dev",
				S3RootUser:                  "user",
				S3RootPassword:              "password",
				S3Bucket:                    "bucket",
				S3Region:                    "us-west-1",
				S3BaseEndpoint:              "http://endpoint",
				PresignExpiry:               5 * time.Minute,
				LogLevel:                    "debug",
			}},
		{name: "subcommand and unknown flags are ignored", args: []string{"cmd", "serve", "-a", ":1", "-zzz", "1"},
			expected: &Config{EndpointAddrGRPC: ":1"}},
		{name: "bad token validity", args: []string{"cmd", "-t", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
