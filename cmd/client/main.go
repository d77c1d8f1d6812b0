package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/audio/transcode"
	"github.com/dmitrijs2005/voxkeeper/internal/audio/validation"
	"github.com/dmitrijs2005/voxkeeper/internal/client/cli"
	"github.com/dmitrijs2005/voxkeeper/internal/client/client"
	"github.com/dmitrijs2005/voxkeeper/internal/client/config"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/pending"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/transfers"
	"github.com/dmitrijs2005/voxkeeper/internal/client/services"
	"github.com/dmitrijs2005/voxkeeper/internal/connectivity"
	"github.com/dmitrijs2005/voxkeeper/internal/filex"
	"github.com/dmitrijs2005/voxkeeper/internal/logging"
	"github.com/dmitrijs2005/voxkeeper/internal/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	err := run(ctx, os.Args[1:], nil, nil)
	stop()
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// run wires the client and serves the REPL until exit. Nil in and out mean
// the process's terminal.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger, closer, err := logging.New(logging.Options{
		Format:     cfg.LogFormat,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 3,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	db, err := client.InitDatabase(ctx, cfg.LocalDBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	recStore, err := client.OpenRecordStore(cfg.RecordsDSN)
	if err != nil {
		return err
	}
	defer recStore.Close()

	s3c, err := transport.NewS3Client(ctx, transport.S3Options{
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		UsePathStyle: cfg.S3UsePathStyle,
	})
	if err != nil {
		return err
	}

	secret := []byte(cfg.JWTSecret)
	rp := transport.RetryPolicy{MaxRetries: 4, Base: 500 * time.Millisecond}

	var tr transport.Transport
	switch cfg.TransportMode {
	case config.TransportPresigned:
		tr = transport.NewPresignedTransport(transport.NewS3Presigner(s3c, cfg.S3Bucket, cfg.PresignTTL), secret, rp, logger)
	default:
		tr = transport.NewS3Transport(s3c, cfg.S3Bucket, cfg.ChunkSize, transfers.NewSQLiteRepository(db), secret, rp, logger)
	}

	prober, err := connectivity.NewGRPCHealthProber(cfg.HealthAddr, cfg.HealthService)
	if err != nil {
		return err
	}
	defer prober.Close()
	monitor := connectivity.NewMonitor(prober, cfg.OnlineCheckInterval, logger)

	workBase := cfg.WorkDir
	if workBase == "" {
		workBase = os.TempDir()
	}
	workDir, err := filex.EnsureDir(workBase, "voxkeeper")
	if err != nil {
		return fmt.Errorf("work dir: %w", err)
	}

	policy := cfg.Policy()
	queue := pending.NewSQLiteRepository(db)
	recs := records.NewEnsuredRepository(records.NewPostgresRepository(recStore.DB), recStore.Ensure)
	tokens := services.JWTTokens(secret, cfg.TokenTTL)
	status := services.NewStatusBroadcaster()

	tc := transcode.New(transcode.NewFFmpegRunner(cfg.FFmpegPath), policy, workDir, logger)
	capture := services.NewCaptureService(validation.New(cfg.MaxBytes), policy, tc, queue, recs, tr, tokens, monitor, logger)
	reconciler := services.NewReconciler(queue, recs, tr, tokens, status, cfg.MaxRetries, logger)
	sweeper := services.NewOrphanSweeper(recs, tr, cfg.OrphanGrace, logger)

	go monitor.Run(ctx)
	go reconciler.Run(ctx, cfg.OwnerID, monitor)

	app := cli.NewApp(cli.Deps{
		OwnerID:  cfg.OwnerID,
		MaxBytes: cfg.MaxBytes,
		Uploader: capture,
		Syncer:   reconciler,
		Sweeper:  sweeper,
		Status:   status,
		Queue:    queue,
		Online:   monitor,
		Marks:    metadata.NewSQLiteRepository(db),
		In:       in,
		Out:      out,
		Log:      logger,
	})
	app.Run(ctx)
	return nil
}
