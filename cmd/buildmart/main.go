// Command buildmart runs the construction marketplace API.
//
//	@title						BuildMart API
//	@version					1.0
//	@description				Construction materials marketplace and project tracker.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/config"
	"github.com/MikeMC777/buildmart/internal/db"
	"github.com/MikeMC777/buildmart/internal/logging"
)

func main() {
	app := &cli.App{
		Name:  "buildmart",
		Usage: "construction marketplace API",
		// serve is the default so the container can start with no arguments
		Action: serveCmd,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: serveCmd,
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "apply all pending migrations", Action: migrateCmd(false)},
					{Name: "down", Usage: "roll back the last migration", Action: migrateCmd(true)},
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and the logger shared by every command.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.AppEnv)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func migrateCmd(down bool) cli.ActionFunc {
	return func(*cli.Context) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		if err := db.Migrate(cfg.PostgresDSN, down); err != nil {
			return err
		}
		log.Info("migrations applied", zap.Bool("down", down))
		return nil
	}
}
