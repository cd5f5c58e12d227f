package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Garsondee/Squad-Tactics/internal/config"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
)

// exporter writes one point per finished run to InfluxDB.
type exporter struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	log    zerolog.Logger
}

// newExporter returns nil without error when export is disabled.
func newExporter(cfg config.InfluxConfig, log zerolog.Logger) (*exporter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	running, err := client.Ping(ctx)
	if err != nil || !running {
		client.Close()
		if err == nil {
			err = errors.New("server not running")
		}
		return nil, fmt.Errorf("influx at %s: %w", cfg.URL, err)
	}
	log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("influx export enabled")
	return &exporter{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:    log,
	}, nil
}

// Write sends the run; failures are logged and do not stop the batch.
func (e *exporter) Write(rs runStats) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.writer.WritePoint(ctx, runPoint(rs, time.Now())); err != nil {
		e.log.Error().Err(err).Int("run", rs.runIndex).Msg("writing run to influx")
	}
}

func (e *exporter) Close() { e.client.Close() }

// runPoint turns a run into a mission_run measurement.
func runPoint(rs runStats, at time.Time) *write.Point {
	s := rs.summary
	stale, _ := detectStalemate(rs)
	return influxdb2.NewPointWithMeasurement("mission_run").
		AddTag("scenario", rs.scenario).
		AddTag("outcome", s.Description).
		AddTag("seed", fmt.Sprintf("%d", rs.seed)).
		AddField("turns", s.Turns).
		AddField("soldier_survivors", rs.soldierSurvivors).
		AddField("alien_survivors", rs.alienSurvivors).
		AddField("soldier_kills", s.Soldiers.Kills).
		AddField("alien_kills", s.Aliens.Kills).
		AddField("soldier_accuracy", s.Soldiers.Accuracy()).
		AddField("alien_accuracy", s.Aliens.Accuracy()).
		AddField("reaction_shots", s.ReactionShots).
		AddField("explosions", rs.explosions).
		AddField("panicked", s.Soldiers.Panicked).
		AddField("stalemate", stale).
		SetTime(at)
}
