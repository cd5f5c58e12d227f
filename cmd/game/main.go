package main

import (
	"flag"
	"log"
	"os"

	"github.com/Garsondee/Squad-Tactics/internal/config"
	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/internal/logging"
	"github.com/Garsondee/Squad-Tactics/internal/recorder"
	"github.com/Garsondee/Squad-Tactics/internal/scenario"
	"github.com/Garsondee/Squad-Tactics/internal/viewer"
	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	var configPath string
	var scenarioPath string
	var seed int64
	flag.StringVar(&configPath, "config", "", "config file (JSON/YAML/TOML)")
	flag.StringVar(&scenarioPath, "scenario", "", "scenario YAML file (default: config, then built-in)")
	flag.Int64Var(&seed, "seed", 0, "RNG seed (0 = config)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if scenarioPath == "" {
		scenarioPath = cfg.Scenario
	}
	if seed == 0 {
		seed = cfg.Seed
	}

	logger, closeLog, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading scenario")
	}

	simLog := game.NewSimLog(false)
	history := &game.EventHistory{}
	opts := []game.Option{
		game.WithSeed(seed),
		game.WithRules(cfg.Rules),
		game.WithLogger(logger),
		game.WithSink(simLog),
		game.WithSink(history),
	}

	var viewOpts []viewer.Option
	if cfg.Recorder.Enabled {
		rec, err := recorder.Open(cfg.Recorder, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("opening recorder")
		}
		defer rec.Close()
		if _, err := rec.Begin(sc.Name, seed); err != nil {
			logger.Fatal().Err(err).Msg("starting recording")
		}
		opts = append(opts, game.WithSink(rec))
		viewOpts = append(viewOpts, viewer.WithFinish(func(s game.MissionSummary) {
			if err := rec.Finish(s); err != nil {
				logger.Error().Err(err).Msg("recording incomplete")
			}
		}))
	}

	m, err := game.NewMission(sc.Setup, opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("starting mission")
	}
	simLog.SetRoster(m.Units())

	viewOpts = append(viewOpts, viewer.WithLogger(logger), viewer.WithTitle(sc.Name))
	g := viewer.New(m, simLog, history, viewOpts...)

	ebiten.SetWindowTitle("Squad Tactics: " + sc.Name)
	ebiten.SetWindowSize(g.WindowSize())
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(g); err != nil {
		logger.Error().Err(err).Msg("game loop")
		os.Exit(1)
	}
}
