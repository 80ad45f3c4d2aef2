package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gfiorelli/plantwatch/internal/services/command"
	"github.com/gfiorelli/plantwatch/internal/services/monitor"
	"github.com/gfiorelli/plantwatch/pkg/eventhub"
	"github.com/gfiorelli/plantwatch/pkg/sched"
	"github.com/gfiorelli/plantwatch/pkg/transport"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	log.Info().Str("broker", cfg.BrokerURL).Str("port", cfg.Port).Msg("starting plantwatch monitor")

	reg := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(reg)
	hub := eventhub.New(log.Logger)

	tr := transport.NewMQTT(transport.MQTTConfig{
		BrokerURL:   cfg.BrokerURL,
		ClientID:    cfg.ClientID,
		Username:    cfg.MQTTUser,
		Password:    cfg.MQTTPass,
		TopicPrefix: cfg.TopicPrefix,
	}, log.Logger)

	svc := monitor.New(monitor.Config{
		Endpoint:       cfg.BrokerURL,
		MaxAttempts:    cfg.MaxAttempts,
		BaseDelay:      time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		CapDelay:       time.Duration(cfg.CapDelayMs) * time.Millisecond,
		ConnectTimeout: time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond,
	}, tr, hub, sched.New(), log.Logger)
	svc.SetMetrics(metrics)

	disp := command.NewDispatcher(command.Config{
		Endpoint:        cfg.CommandURL,
		Timeout:         time.Duration(cfg.CommandTimeoutMs) * time.Millisecond,
		BreakerFailures: uint32(cfg.BreakerFailures),
		BreakerOpenFor:  time.Duration(cfg.BreakerOpenMs) * time.Millisecond,
	}, hub, svc.Registry(), svc.Plant, svc.Connected, log.Logger)
	disp.SetMetrics(metrics.Commands)
	svc.SetActuators(disp)

	// log state transitions the way a UI would consume them
	hub.Subscribe(eventhub.KindConnection, func(e eventhub.Event) {
		ev := e.(eventhub.ConnectionEvent)
		log.Info().Bool("connected", ev.Status.Connected).Msg("connection event")
	})
	hub.Subscribe(eventhub.KindError, func(e eventhub.Event) {
		ev := e.(eventhub.ErrorEvent)
		log.Error().Str("details", ev.Details).Msg(ev.Message)
	})

	go svc.Connect()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	registerRoutes(e, &api{svc: svc, disp: disp, logger: log.Logger}, reg)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	svc.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
}
