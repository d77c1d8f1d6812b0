package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/flagx"
)

var knownFlags = []string{"-o", "-a", "-i", "-d", "-r", "-b", "-e", "-m", "-l", "-f", "-n"}

// parseFlags overlays cfg with the short flags it owns. Other arguments are
// ignored so they can belong to a different loader.
//
//	-o string  owner id
//	-a string  health endpoint host:port
//	-i int     online check interval, seconds
//	-d string  local database path
//	-r string  records store DSN
//	-b string  bucket
//	-e string  S3 endpoint URL
//	-m string  transport mode (multipart|presigned)
//	-l string  log level
//	-f string  ffmpeg binary
//	-n int     max sync retries per capture (0 = unbounded)
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("voxkeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.OwnerID, "o", cfg.OwnerID, "owner id")
	fs.StringVar(&cfg.HealthAddr, "a", cfg.HealthAddr, "health endpoint host:port")
	interval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.LocalDBPath, "d", cfg.LocalDBPath, "local database path")
	fs.StringVar(&cfg.RecordsDSN, "r", cfg.RecordsDSN, "records store DSN")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "bucket")
	fs.StringVar(&cfg.S3Endpoint, "e", cfg.S3Endpoint, "S3 endpoint URL")
	fs.StringVar(&cfg.TransportMode, "m", cfg.TransportMode, "transport mode")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.FFmpegPath, "f", cfg.FFmpegPath, "ffmpeg binary")
	fs.IntVar(&cfg.MaxRetries, "n", cfg.MaxRetries, "max sync retries per capture")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" {
			cfg.OnlineCheckInterval = time.Duration(*interval) * time.Second
		}
	})
	return nil
}
