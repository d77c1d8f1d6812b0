package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/flagx"
)

var knownFlags = []string{"-a", "-d", "-u", "-p", "-b", "-g", "-e", "-i", "-l"}

// parseFlags overlays cfg with the flags it owns.
//
//	-a string  gRPC bind address (e.g. ":50051")
//	-d string  PostgreSQL DSN
//	-u string  S3 access key
//	-p string  S3 secret key
//	-b string  S3 bucket
//	-g string  S3 region
//	-e string  S3 base endpoint
//	-i int     check interval, seconds
//	-l string  log level
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("voxkeeper-health", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.EndpointAddrGRPC, "a", cfg.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.S3AccessKey, "u", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "p", cfg.S3SecretKey, "S3 secret key")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")
	interval := fs.Int("i", int(cfg.CheckInterval.Seconds()), "check interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" {
			cfg.CheckInterval = time.Duration(*interval) * time.Second
		}
	})
	return nil
}
