package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/voxkeeper/internal/timex"
)

// JsonConfig mirrors Config for unmarshalling; intervals use timex.Duration
// so they can be written as "3s" or as integer nanoseconds.
type JsonConfig struct {
	OwnerID   string         `json:"owner_id"`
	JWTSecret string         `json:"jwt_secret"`
	TokenTTL  timex.Duration `json:"token_ttl"`

	LocalDBPath string `json:"local_db_path"`
	RecordsDSN  string `json:"records_dsn"`

	S3Endpoint     string `json:"s3_endpoint"`
	S3Region       string `json:"s3_region"`
	S3Bucket       string `json:"s3_bucket"`
	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3UsePathStyle bool   `json:"s3_use_path_style"`

	TransportMode string         `json:"transport_mode"`
	ChunkSize     int64          `json:"chunk_size"`
	PresignTTL    timex.Duration `json:"presign_ttl"`

	HealthAddr          string         `json:"health_addr"`
	HealthService       string         `json:"health_service"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`

	OfferAboveBytes      int64 `json:"offer_above_bytes"`
	SuggestAboveBytes    int64 `json:"suggest_above_bytes"`
	RequireAboveBytes    int64 `json:"require_above_bytes"`
	TargetBytes          int64 `json:"target_bytes"`
	MaxBytes             int64 `json:"max_bytes"`
	ResampleCeilingBytes int64 `json:"resample_ceiling_bytes"`

	OrphanGrace timex.Duration `json:"orphan_grace"`
	MaxRetries  int            `json:"max_retries"`

	LogFormat string `json:"log_format"`
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`

	FFmpegPath string `json:"ffmpeg_path"`
	WorkDir    string `json:"work_dir"`
}

func toJSON(c *Config) JsonConfig {
	return JsonConfig{
		OwnerID:              c.OwnerID,
		JWTSecret:            c.JWTSecret,
		TokenTTL:             timex.Duration{Duration: c.TokenTTL},
		LocalDBPath:          c.LocalDBPath,
		RecordsDSN:           c.RecordsDSN,
		S3Endpoint:           c.S3Endpoint,
		S3Region:             c.S3Region,
		S3Bucket:             c.S3Bucket,
		S3AccessKey:          c.S3AccessKey,
		S3SecretKey:          c.S3SecretKey,
		S3UsePathStyle:       c.S3UsePathStyle,
		TransportMode:        c.TransportMode,
		ChunkSize:            c.ChunkSize,
		PresignTTL:           timex.Duration{Duration: c.PresignTTL},
		HealthAddr:           c.HealthAddr,
		HealthService:        c.HealthService,
		OnlineCheckInterval:  timex.Duration{Duration: c.OnlineCheckInterval},
		OfferAboveBytes:      c.OfferAboveBytes,
		SuggestAboveBytes:    c.SuggestAboveBytes,
		RequireAboveBytes:    c.RequireAboveBytes,
		TargetBytes:          c.TargetBytes,
		MaxBytes:             c.MaxBytes,
		ResampleCeilingBytes: c.ResampleCeilingBytes,
		OrphanGrace:          timex.Duration{Duration: c.OrphanGrace},
		MaxRetries:           c.MaxRetries,
		LogFormat:            c.LogFormat,
		LogLevel:             c.LogLevel,
		LogFile:              c.LogFile,
		FFmpegPath:           c.FFmpegPath,
		WorkDir:              c.WorkDir,
	}
}

func (jc JsonConfig) apply(c *Config) {
	c.OwnerID = jc.OwnerID
	c.JWTSecret = jc.JWTSecret
	c.TokenTTL = jc.TokenTTL.Duration
	c.LocalDBPath = jc.LocalDBPath
	c.RecordsDSN = jc.RecordsDSN
	c.S3Endpoint = jc.S3Endpoint
	c.S3Region = jc.S3Region
	c.S3Bucket = jc.S3Bucket
	c.S3AccessKey = jc.S3AccessKey
	c.S3SecretKey = jc.S3SecretKey
	c.S3UsePathStyle = jc.S3UsePathStyle
	c.TransportMode = jc.TransportMode
	c.ChunkSize = jc.ChunkSize
	c.PresignTTL = jc.PresignTTL.Duration
	c.HealthAddr = jc.HealthAddr
	c.HealthService = jc.HealthService
	c.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	c.OfferAboveBytes = jc.OfferAboveBytes
	c.SuggestAboveBytes = jc.SuggestAboveBytes
	c.RequireAboveBytes = jc.RequireAboveBytes
	c.TargetBytes = jc.TargetBytes
	c.MaxBytes = jc.MaxBytes
	c.ResampleCeilingBytes = jc.ResampleCeilingBytes
	c.OrphanGrace = jc.OrphanGrace.Duration
	c.MaxRetries = jc.MaxRetries
	c.LogFormat = jc.LogFormat
	c.LogLevel = jc.LogLevel
	c.LogFile = jc.LogFile
	c.FFmpegPath = jc.FFmpegPath
	c.WorkDir = jc.WorkDir
}

// parseJSON overlays cfg with the file at path. Keys absent from the file
// keep their current values. An empty path is a no-op.
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
