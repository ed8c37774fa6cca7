// Package app builds the long-lived components from a loaded configuration.
package app

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/trnscrb/trnscrb/internal/audio"
	"github.com/trnscrb/trnscrb/internal/calendar"
	"github.com/trnscrb/trnscrb/internal/config"
	"github.com/trnscrb/trnscrb/internal/enrich"
	"github.com/trnscrb/trnscrb/internal/grpcclient"
	"github.com/trnscrb/trnscrb/internal/metrics"
	"github.com/trnscrb/trnscrb/internal/orchestrator"
	"github.com/trnscrb/trnscrb/internal/pipeline"
	"github.com/trnscrb/trnscrb/internal/presence"
	"github.com/trnscrb/trnscrb/internal/storage"
)

// App holds the wired components. Commands use the parts they need.
type App struct {
	Config   *config.Config
	Metrics  *metrics.Metrics
	Engine   *grpcclient.Client
	Store    *storage.Store
	Calendar calendar.Source
	Devices  func() ([]audio.Device, error)
	Signals  presence.Signals
	Surface  presence.Surface
	Manager  *orchestrator.Manager

	index *storage.Index
}

// New wires the application. The engine connection is established lazily
// on first use, so New succeeds while the engine is down.
func New(cfg *config.Config) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	engine, err := grpcclient.New(grpcclient.Options{
		Addr:        cfg.InferenceAddr,
		ModelSize:   func() string { return cfg.ModelSize },
		CallTimeout: cfg.EngineTimeout,
		Metrics:     m,
	})
	if err != nil {
		return nil, err
	}

	index, err := storage.OpenIndex(cfg.IndexPath)
	if err != nil {
		slog.Warn("transcript index unavailable, continuing without it", "path", cfg.IndexPath, "error", err)
		index = nil
	}
	store := storage.NewStore(cfg.NotesDir, index)
	cal := calendar.Default()
	signals := presence.DefaultSignals()
	surface := presence.NewProcessSurface(signals, cfg.ExtraApps)

	mgr := orchestrator.New(orchestrator.Options{
		Device:     cfg.Device,
		MaxPending: cfg.MaxPending,
		AutoRecord: cfg.AutoRecord,
		Capture:    audio.NewCapture(audio.Options{PreferLoopback: cfg.PreferLoopback}),
		Pipeline: pipeline.Options{
			Transcriber: engine,
			Diarizer:    engine,
			Sink:        store,
			Credential:  func() string { return cfg.HFToken },
		},
		Presence: presence.Options{
			Timing:  Timing(cfg.Presence),
			Signals: signals,
			Surface: surface,
		},
		Calendar: cal,
		Enricher: enrich.New(engine, store, cal),
		Metrics:  m,
	})

	return &App{
		Config:   cfg,
		Metrics:  m,
		Engine:   engine,
		Store:    store,
		Calendar: cal,
		Devices:  audio.ListInputDevices,
		Signals:  signals,
		Surface:  surface,
		Manager:  mgr,
		index:    index,
	}, nil
}

// Timing converts the configured presence timings.
func Timing(p config.Presence) presence.Timing {
	return presence.Timing{
		Poll:         p.Poll,
		Warmup:       p.Warmup,
		Grace:        p.Grace,
		MinSession:   p.MinSession,
		AppPollEvery: p.AppPollEvery,
		AppGonePolls: p.AppGonePolls,
	}
}

// Close releases the engine connection and the index.
func (a *App) Close() error {
	var err error
	if a.Engine != nil {
		err = a.Engine.Close()
	}
	if a.index != nil {
		if cerr := a.index.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
