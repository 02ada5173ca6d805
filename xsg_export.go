package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/export"
	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/source"
	"github.com/mogaika/xsg_export/utils"
	"github.com/mogaika/xsg_export/watch"
	"github.com/mogaika/xsg_export/web"
)

func main() {
	var flags config.Flags
	var serve, watchMode, dump bool
	flags.Register(flag.CommandLine)
	flag.BoolVar(&serve, "serve", false, "Run the conversion web server instead of converting")
	flag.BoolVar(&watchMode, "watch", false, "Convert again whenever the scene file changes")
	flag.BoolVar(&dump, "dump", false, "Print the loaded scene instead of converting")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] scene.{gltf,glb,yaml}\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := flags.Apply()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if serve {
		if cfg.Server.Address == "" {
			cfg.Server.Address = ":8000"
		}
		if err := web.StartServer(cfg); err != nil {
			logger.Error("[web] server stopped", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	scenePath := flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run := func(ctx context.Context) error {
		sc, err := source.Open(scenePath)
		if err != nil {
			return err
		}
		if dump {
			fmt.Print(utils.SDump(sc))
			return nil
		}
		e := export.New(cfg)
		e.Loader = source.Open
		report, err := e.Run(ctx, sc, cfg.Export.Output)
		if report != nil {
			for _, p := range report.Problems {
				logger.Warn("[export] problem", zap.String("kind", p.Kind), zap.String("object", p.Object),
					zap.String("detail", p.Detail))
			}
			logger.Info("[export] finished", zap.Strings("files", report.Files), zap.Int("nodes", report.Nodes),
				zap.Int("meshes", report.Meshes), zap.Int("materials", report.Materials),
				zap.Int("textures", report.Textures), zap.Int("channels", report.Channels),
				zap.Int("problems", len(report.Problems)))
		}
		return err
	}

	if watchMode {
		w := &watch.Watcher{Path: scenePath, Run: run}
		if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
			logger.Error("[watch] stopped", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	if err := run(ctx); err != nil {
		logger.Error("[export] failed", zap.String("scene", scenePath), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
