package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/voxkeeper/internal/logging"
	"github.com/dmitrijs2005/voxkeeper/internal/server"
	"github.com/dmitrijs2005/voxkeeper/internal/server/config"
)

func main() {

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	logger, closer, err := logging.New(logging.Options{
		Format:     cfg.LogFormat,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 3,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	ctx := context.Background()

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}

	app.Run(ctx)
}
