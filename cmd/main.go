package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/royalcat/dfcigrid/internal/telemetry"
	"github.com/royalcat/dfcigrid/projection"
	"github.com/royalcat/dfcigrid/server"

	_ "net/http/pprof"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	app := &cli.App{
		Name:        "dfcigrid",
		Description: "DFCI grid codec and grid generator",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the dfci api",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: envOr("DFCI_LISTEN", ":8080"),
					},
					&cli.StringFlag{
						Name:        "otel-endpoint",
						Value:       os.Getenv("DFCI_OTEL_ENDPOINT"),
						DefaultText: "",
					},
				},
				Action: serve,
			},
			{
				Name:    "encode",
				Aliases: []string{"e"},
				Usage:   "prints the code of a point",
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:     "x",
						Required: true,
					},
					&cli.Float64Flag{
						Name:     "y",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "level",
						Aliases: []string{"l"},
						Value:   3,
					},
					&cli.StringFlag{
						Name:  "crs",
						Value: projection.NativeCRS,
					},
				},
				Action: encode,
			},
			{
				Name:      "decode",
				Aliases:   []string{"d"},
				Usage:     "prints the center and hierarchy of a code",
				ArgsUsage: "CODE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "crs",
						Value: projection.NativeCRS,
					},
					&cli.BoolFlag{
						Name:  "wkt",
						Usage: "print the cell polygon as WKT",
					},
				},
				Action: decode,
			},
			{
				Name:  "export",
				Usage: "writes a grid level as a GeoJSON feature collection",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "output",
						Aliases:   []string{"o"},
						Required:  true,
						TakesFile: true,
						Usage:     "output file, zstd compressed when it ends with .zst",
					},
					&cli.IntFlag{
						Name:    "level",
						Aliases: []string{"l"},
						Value:   1,
					},
					&cli.StringFlag{
						Name:  "crs",
						Value: projection.WGS84,
					},
					&cli.StringFlag{
						Name:        "bbox",
						Usage:       "minX,minY,maxX,maxY in native units",
						DefaultText: "whole grid",
					},
					&cli.IntFlag{
						Name:        "threads",
						Aliases:     []string{"t"},
						DefaultText: "max",
					},
					&cli.BoolFlag{
						Name:  "sorted",
						Usage: "order features by code instead of by tile",
					},
					&cli.StringFlag{
						Name:      "stats",
						TakesFile: true,
						Usage:     "write runtime statistics to this file",
					},
					&cli.StringFlag{
						Name:        "pprof.listen",
						DefaultText: "",
					},
				},
				Action: export,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func serve(ctx *cli.Context) error {
	sctx, cancel := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := telemetry.Setup(sctx, ctx.String("otel-endpoint"))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Flush(shutdownCtx); err != nil {
			slog.Error("failed to flush telemetry", "error", err)
		}
		client.Shutdown(shutdownCtx)
	}()

	slog.Info("Initing projection adapter")
	adapter, err := projection.New(projection.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	return server.Run(sctx, ctx.String("listen"), adapter)
}
