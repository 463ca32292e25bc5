package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/flagx"
	"github.com/dmitrijs2005/gophsync/internal/timex"
)

// JsonConfig is the JSON form of Config. Absent keys are nil and leave the
// corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddrGRPC            *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 *string         `json:"database_dsn"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	DeviceSecret                *string         `json:"device_secret"`
	S3RootUser                  *string         `json:"s3_root_user"`
	S3RootPassword              *string         `json:"s3_root_password"`
	S3Bucket                    *string         `json:"s3_bucket"`
	S3Region                    *string         `json:"s3_region"`
	S3BaseEndpoint              *string         `json:"s3_base_endpoint"`
	PresignExpiry               *timex.Duration `json:"presign_expiry"`
	LogLevel                    *string         `json:"log_level"`
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setString(&config.DeviceSecret, c.DeviceSecret)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.PresignExpiry, c.PresignExpiry)
	setString(&config.LogLevel, c.LogLevel)
}

// parseJson loads configuration values from the JSON file named by the -c
// or -config flag into config. Without the flag nothing is loaded. A file
// that cannot be read or parsed panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}
