// Command orderboard runs the order board daemon: it polls the restaurant
// backend, holds the normalized board snapshot, mirrors realtime order
// events into it and serves the local status API for the screen shells.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/internal/board"
	"github.com/dinehall/boardlink/internal/config"
	"github.com/dinehall/boardlink/internal/device"
	"github.com/dinehall/boardlink/internal/insights"
	"github.com/dinehall/boardlink/internal/metrics"
	"github.com/dinehall/boardlink/internal/normalize"
	"github.com/dinehall/boardlink/internal/notify"
	"github.com/dinehall/boardlink/internal/realtime"
	"github.com/dinehall/boardlink/internal/report"
	"github.com/dinehall/boardlink/internal/statusapi"
	"github.com/dinehall/boardlink/internal/system"
	"github.com/dinehall/boardlink/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "orderboard:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}

	log := logger.New("orderboard", cfg.LogLevel)
	log.WithFields(map[string]any{
		"api":     cfg.APIURL,
		"version": cfg.AppVersion,
	}).Info("starting")

	m := metrics.New()
	bus := notify.New(notify.WithDefaultDuration(profile.ToastDuration.Std()))
	defer bus.Close()
	bus.Subscribe(func(e notify.Event) {
		switch e.Kind {
		case notify.EventCreated:
			m.ActiveToasts.Inc()
		case notify.EventDismissed:
			m.ActiveToasts.Dec()
		}
	})

	client, err := api.New(api.Config{
		BaseURL:    cfg.APIURL,
		AppVersion: cfg.AppVersion,
		Sessions: api.SessionHandlerFunc(func(redirect string) {
			log.WithField("redirect", redirect).Warn("backend session expired")
			bus.PublishFor(notify.SeverityError, "Signed out", "the backend session expired; sign in again", time.Minute)
		}),
		Logger: log.WithField("component", "api"),
	})
	if err != nil {
		return err
	}

	reporter := report.New(client, 0, log.WithField("component", "report"))

	boardSvc := board.New(client, nil, bus, m, log.WithField("component", "board"))
	refreshInterval, err := board.ParseInterval(cfg.RefreshInterval)
	if err != nil {
		return err
	}
	boardRefresher := board.NewRefresher(boardSvc, refreshInterval, log.WithField("component", "board-refresher"))

	manager := system.NewManager(log.WithField("component", "system"))
	if err := manager.Register(boardRefresher); err != nil {
		return err
	}

	var insightsSvc *insights.Service
	if profile.ShowInsights {
		insightsSvc = insights.New(client, log.WithField("component", "insights"))
		insightsInterval, err := board.ParseInterval(cfg.InsightsInterval)
		if err != nil {
			return err
		}
		if err := manager.Register(insights.NewRefresher(insightsSvc, insightsInterval, log.WithField("component", "insights-refresher"))); err != nil {
			return err
		}
	}

	if cfg.WSURL != "" {
		feed, err := realtime.New(cfg.WSURL, m, log.WithField("component", "realtime"))
		if err != nil {
			return err
		}
		feed.On("order.created", func(payload gjson.Result) {
			order := normalize.Order(payload)
			boardSvc.ApplyRemote(order)
			bus.Publish(notify.SeverityInfo, "New order", "order "+order.Number+" arrived")
		})
		feed.On("order.updated", func(payload gjson.Result) {
			boardSvc.ApplyRemote(normalize.Order(payload))
		})
		if err := manager.Register(feed); err != nil {
			return err
		}
	}

	if cfg.DeviceID != "" {
		identity := device.Identity{
			ID:         cfg.DeviceID,
			Name:       cfg.DeviceName,
			Kind:       cfg.DeviceKind,
			AppVersion: cfg.AppVersion,
		}
		if err := manager.Register(device.NewReporter(client, identity, 0, log.WithField("component", "device"))); err != nil {
			return err
		}
	}

	statusSrv := statusapi.New(statusapi.Options{
		Addr:        cfg.StatusAddr,
		Version:     cfg.AppVersion,
		CORSOrigins: profile.CORSOrigins,
		Board:       boardSvc,
		Refresher:   boardRefresher,
		Insights:    insightsSvc,
		Bus:         bus,
		Metrics:     m,
		Logger:      log.WithField("component", "statusapi"),
	})
	if err := manager.Register(statusSrv); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.StartAll(ctx); err != nil {
		reporter.Report(ctx, report.Incident{Message: "daemon failed to start: " + err.Error(), Severity: "error"})
		flushReports(reporter)
		return err
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	stop()

	if err := manager.StopAll(context.Background()); err != nil {
		log.WithError(err).Warn("shutdown finished with errors")
	}
	flushReports(reporter)
	return nil
}

func flushReports(reporter *report.Reporter) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = reporter.Flush(ctx)
}
