// Package monitor owns the gateway link: connection lifecycle with bounded
// backoff, payload normalization, device fusion, caches, and the events
// published to consumers.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gfiorelli/plantwatch/internal/combine"
	"github.com/gfiorelli/plantwatch/internal/history"
	"github.com/gfiorelli/plantwatch/internal/model"
	"github.com/gfiorelli/plantwatch/pkg/dedup"
	"github.com/gfiorelli/plantwatch/pkg/eventhub"
	"github.com/gfiorelli/plantwatch/pkg/sched"
	"github.com/gfiorelli/plantwatch/pkg/transport"
)

// Inbound transport events.
const (
	evInitData        = "initData"
	evDataUpdate      = "dataUpdate"
	evReservoirUpdate = "reservoirUpdate"
	evControlResponse = "controlResponse"
	evCommandIssued   = "commandIssued"
	evCommandTimeout  = "commandTimeout"
	evReconnect       = "reconnect"
)

// Outbound transport events.
const (
	evRequestInitialData = "requestInitialData"
	evSetPlantType       = "setPlantType"
)

type Config struct {
	Endpoint       string        // gateway endpoint, reported in error events
	MaxAttempts    int           // cap on the connect retry sequence
	BaseDelay      time.Duration // first backoff delay
	CapDelay       time.Duration // backoff ceiling
	ConnectTimeout time.Duration // per-attempt watchdog
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 5 * time.Second
	}
	if c.CapDelay <= 0 {
		c.CapDelay = 20 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 20 * time.Second
	}
	return c
}

// ActuatorSink receives the authoritative actuator updates arriving over
// the streaming link. Implemented by the command dispatcher.
type ActuatorSink interface {
	SetSnapshot(watering, light bool)
	ApplyControlResponse(action string, active, success bool)
	HandleCommandIssued(cmd string, value bool)
	HandleCommandTimeout(cmd string)
}

// Service is the connection manager. All mutable state (current-reading
// cache, reservoir snapshot, connection state) lives here or in the
// combiner, guarded by one mutex; every mutation publishes its event before
// the lock-free caller returns.
type Service struct {
	cfg       Config
	tr        transport.Transport
	hub       *eventhub.Hub
	sched     sched.Scheduler
	combiner  *combine.Combiner
	reg       *model.DeviceRegistry
	dedupe    *dedup.Filter
	actuators ActuatorSink
	metrics   *Metrics
	logger    zerolog.Logger
	now       func() time.Time

	mu            sync.Mutex
	state         model.ConnectionState
	attempts      int
	bo            *backoff.ExponentialBackOff
	retry         sched.Timer
	localClose    bool
	everConnected bool
	current       model.CombinedReading
	hasCurrent    bool
	reservoir     model.ReservoirLevels
	hasReservoir  bool
	series        map[model.PlantSlot]*history.Series
	alerts        *alertRing
}

func New(cfg Config, tr transport.Transport, hub *eventhub.Hub, s sched.Scheduler, logger zerolog.Logger) *Service {
	cfg = cfg.withDefaults()
	reg := model.DefaultRegistry()
	svc := &Service{
		cfg:      cfg,
		tr:       tr,
		hub:      hub,
		sched:    s,
		combiner: combine.New(reg, logger),
		reg:      reg,
		dedupe:   dedup.New(2*time.Minute, 1024),
		logger:   logger,
		now:      time.Now,
		state:    model.StateDisconnected,
		series: map[model.PlantSlot]*history.Series{
			model.PlantLevel1: history.NewSeries(s, logger, nil),
			model.PlantLevel2: history.NewSeries(s, logger, nil),
		},
		alerts: newAlertRing(maxAlerts),
	}
	svc.bo = svc.newBackoff()
	svc.attachHandlers()
	return svc
}

// SetActuators wires the sink for actuator updates from the gateway.
func (s *Service) SetActuators(a ActuatorSink) { s.actuators = a }

// SetMetrics attaches the prometheus instruments.
func (s *Service) SetMetrics(m *Metrics) { s.metrics = m }

// State returns the current connection state.
func (s *Service) State() model.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the link is up.
func (s *Service) Connected() bool {
	return s.State() == model.StateConnected
}

// Ready reports whether at least one connect has ever succeeded.
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.everConnected
}

// Plant returns the active plant slot.
func (s *Service) Plant() model.PlantSlot { return s.combiner.Plant() }

// Registry exposes the device role registry.
func (s *Service) Registry() *model.DeviceRegistry { return s.reg }

// Current returns the latest fused reading, if any fusion has happened.
func (s *Service) Current() (model.CombinedReading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasCurrent
}

// Reservoir returns the latest tank snapshot, if one arrived.
func (s *Service) Reservoir() (model.ReservoirLevels, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservoir, s.hasReservoir
}

// History returns the averaged series for a plant slot.
func (s *Service) History(p model.PlantSlot) []model.AveragedDataPoint {
	s.mu.Lock()
	ser := s.series[p]
	s.mu.Unlock()
	if ser == nil {
		return nil
	}
	return ser.Snapshot()
}

// Alerts returns the retained alerts, most recent first.
func (s *Service) Alerts() []model.Alert { return s.alerts.list() }

// AckAlert marks one alert as read.
func (s *Service) AckAlert(id string) bool { return s.alerts.markRead(id) }

// SelectPlant switches the active slot, re-fuses immediately from the
// cached device readings, and tells the gateway about the switch.
func (s *Service) SelectPlant(p model.PlantSlot) error {
	if !p.Valid() {
		return fmt.Errorf("invalid plant slot %q", p)
	}
	cr, ok := s.combiner.SelectPlant(p)
	if ok {
		s.setCurrent(cr)
		s.publish(eventhub.DataEvent{Reading: cr})
	}
	if s.tr.Connected() {
		if err := s.tr.Emit(evSetPlantType, map[string]string{"plantType": string(p)}); err != nil {
			s.logger.Warn().Err(err).Msg("setPlantType emit failed")
		}
	}
	s.logger.Info().Str("plant", string(p)).Msg("active plant switched")
	return nil
}

func (s *Service) setCurrent(cr model.CombinedReading) {
	s.mu.Lock()
	s.current = cr
	s.hasCurrent = true
	s.mu.Unlock()
}

// publish sends e through the hub, counting it.
func (s *Service) publish(e eventhub.Event) {
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(string(e.Kind())).Inc()
	}
	s.hub.Publish(e)
}

// alert retains and broadcasts one informational notification.
func (s *Service) alert(kind, message string) {
	a := model.Alert{
		ID:        uuid.New().String(),
		Type:      kind,
		Message:   message,
		Timestamp: s.now().UTC(),
	}
	s.alerts.add(a)
	s.publish(eventhub.AlertEvent{Alert: a})
}
