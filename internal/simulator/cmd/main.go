package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gfiorelli/plantwatch/internal/model"
	"github.com/gfiorelli/plantwatch/internal/simulator"
	"github.com/gfiorelli/plantwatch/pkg/transport"
)

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	broker := getenv("BROKER_URL", "tcp://localhost:1883")
	prefix := getenv("TOPIC_PREFIX", "garden")

	tr := transport.NewMQTT(transport.MQTTConfig{
		BrokerURL:   broker,
		ClientID:    "plantwatch-gateway-sim",
		TopicPrefix: prefix,
	}, log.Logger)

	gen := simulator.NewGenerator(time.Now().UnixNano(), []string{model.DevicePrimary, model.DeviceSecondary})

	tr.On("requestInitialData", func([]byte) {
		log.Info().Msg("snapshot requested")
		if err := tr.Emit("initData", gen.Snapshot(model.DevicePrimary, model.DeviceSecondary)); err != nil {
			log.Warn().Err(err).Msg("initData emit failed")
		}
	})
	tr.On("setPlantType", func(b []byte) {
		log.Info().Str("payload", string(b)).Msg("plant type set")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	err := tr.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot reach broker")
	}
	defer tr.Disconnect()
	log.Info().Str("broker", broker).Msg("gateway simulator running")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	n := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, id := range []string{model.DevicePrimary, model.DeviceSecondary} {
				if err := tr.Emit("dataUpdate", gen.DeviceUpdate(id)); err != nil {
					log.Warn().Err(err).Str("device", id).Msg("dataUpdate emit failed")
				}
			}
			n++
			if n%6 == 0 {
				if err := tr.Emit("reservoirUpdate", gen.Reservoir(model.DevicePrimary, model.DeviceSecondary)); err != nil {
					log.Warn().Err(err).Msg("reservoirUpdate emit failed")
				}
			}
		}
	}
}
