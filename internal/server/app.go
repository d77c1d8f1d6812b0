// Package server runs the voxkeeper health daemon. It watches the record
// store and the bucket and publishes their state over the gRPC health
// protocol, which is what clients probe to decide online versus offline.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/voxkeeper/internal/logging"
	"github.com/dmitrijs2005/voxkeeper/internal/server/config"
	"github.com/dmitrijs2005/voxkeeper/internal/transport"
	_ "github.com/jackc/pgx/v5/stdlib"
	"google.golang.org/grpc/health"

	gs "github.com/dmitrijs2005/voxkeeper/internal/server/grpc"
)

const (
	CheckRecords = "records"
	CheckStorage = "storage"
)

// BucketHeader is the slice of the S3 API the storage check needs.
type BucketHeader interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func RecordsCheck(db Pinger) Check {
	return Check{Name: CheckRecords, Probe: db.PingContext}
}

func StorageCheck(api BucketHeader, bucket string) Check {
	return Check{Name: CheckStorage, Probe: func(ctx context.Context) error {
		if _, err := api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
			return fmt.Errorf("head bucket %s: %w", bucket, err)
		}
		return nil
	}}
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	health   *health.Server
	reporter *Reporter
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	api, err := transport.NewS3Client(ctx, transport.S3Options{
		Endpoint:     c.S3BaseEndpoint,
		Region:       c.S3Region,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		UsePathStyle: c.S3UsePathStyle,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("s3 init error: %w", err)
	}

	hs := health.NewServer()
	r := NewReporter(hs, c.CheckInterval, c.CheckTimeout, logger,
		RecordsCheck(db),
		StorageCheck(api, c.S3Bucket),
	)

	return &App{config: c, logger: logger, db: db, health: hs, reporter: r}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.health, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a termination signal arrives or the gRPC server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.db.Close()

	app.logger.Info(ctx, "Starting health daemon...", "addr", app.config.EndpointAddrGRPC)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.reporter.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.logger.Info(context.WithoutCancel(ctx), "health daemon stopped")
}
