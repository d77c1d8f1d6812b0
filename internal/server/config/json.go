package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/voxkeeper/internal/timex"
)

// JsonConfig mirrors Config for unmarshalling.
type JsonConfig struct {
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`

	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3UsePathStyle bool   `json:"s3_use_path_style"`

	CheckInterval timex.Duration `json:"check_interval"`
	CheckTimeout  timex.Duration `json:"check_timeout"`

	LogFormat string `json:"log_format"`
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
}

func toJSON(c *Config) JsonConfig {
	return JsonConfig{
		EndpointAddrGRPC: c.EndpointAddrGRPC,
		DatabaseDSN:      c.DatabaseDSN,
		S3Bucket:         c.S3Bucket,
		S3Region:         c.S3Region,
		S3BaseEndpoint:   c.S3BaseEndpoint,
		S3AccessKey:      c.S3AccessKey,
		S3SecretKey:      c.S3SecretKey,
		S3UsePathStyle:   c.S3UsePathStyle,
		CheckInterval:    timex.Duration{Duration: c.CheckInterval},
		CheckTimeout:     timex.Duration{Duration: c.CheckTimeout},
		LogFormat:        c.LogFormat,
		LogLevel:         c.LogLevel,
		LogFile:          c.LogFile,
	}
}

func (jc JsonConfig) apply(c *Config) {
	c.EndpointAddrGRPC = jc.EndpointAddrGRPC
	c.DatabaseDSN = jc.DatabaseDSN
	c.S3Bucket = jc.S3Bucket
	c.S3Region = jc.S3Region
	c.S3BaseEndpoint = jc.S3BaseEndpoint
	c.S3AccessKey = jc.S3AccessKey
	c.S3SecretKey = jc.S3SecretKey
	c.S3UsePathStyle = jc.S3UsePathStyle
	c.CheckInterval = jc.CheckInterval.Duration
	c.CheckTimeout = jc.CheckTimeout.Duration
	c.LogFormat = jc.LogFormat
	c.LogLevel = jc.LogLevel
	c.LogFile = jc.LogFile
}

// parseJSON overlays cfg with the file at path; an empty path is a no-op.
func parseJSON(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	jc := toJSON(cfg)
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	jc.apply(cfg)
	return nil
}
