// Package command sends actuation requests to the gateway over the
// out-of-band HTTP endpoint, independent of the streaming link, and keeps
// the local actuator state in sync with the responses.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/gfiorelli/plantwatch/internal/model"
	"github.com/gfiorelli/plantwatch/pkg/eventhub"
)

// Action names one actuation command.
type Action string

const (
	ActionWater     Action = "water"
	ActionLight     Action = "light"
	ActionNutrients Action = "nutrients"
)

// Valid reports whether a names a known action.
func (a Action) Valid() bool {
	return a == ActionWater || a == ActionLight || a == ActionNutrients
}

// defaultRunSeconds is how long a pump/light burst runs when the gateway
// is not told otherwise.
const defaultRunSeconds = 10

type Config struct {
	Endpoint        string        // send-command URL
	Timeout         time.Duration // per-request HTTP timeout
	BreakerFailures uint32        // consecutive failures tripping the breaker
	BreakerOpenFor  time.Duration // how long the breaker stays open
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 3
	}
	if c.BreakerOpenFor <= 0 {
		c.BreakerOpenFor = 15 * time.Second
	}
	return c
}

// Dispatcher issues commands and owns the ActuatorState booleans. Commands
// are never retried automatically; every failure surfaces as a
// controlError event.
type Dispatcher struct {
	cfg       Config
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	hub       *eventhub.Hub
	reg       *model.DeviceRegistry
	plant     func() model.PlantSlot
	connected func() bool
	logger    zerolog.Logger
	now       func() time.Time
	commands  *prometheus.CounterVec // may be nil

	mu    sync.Mutex
	state model.ActuatorState
}

// NewDispatcher wires a dispatcher. plant and connected are read at send
// time, not at construction time.
func NewDispatcher(cfg Config, hub *eventhub.Hub, reg *model.DeviceRegistry,
	plant func() model.PlantSlot, connected func() bool, logger zerolog.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "send-command",
			Timeout: cfg.BreakerOpenFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= cfg.BreakerFailures
			},
		}),
		hub:       hub,
		reg:       reg,
		plant:     plant,
		connected: connected,
		logger:    logger,
		now:       time.Now,
	}
}

// SetMetrics attaches the commands counter (labels: action, outcome).
func (d *Dispatcher) SetMetrics(commands *prometheus.CounterVec) {
	d.commands = commands
}

type commandRequest struct {
	DeviceID  string `json:"deviceId"`
	Command   string `json:"command"`
	Value     bool   `json:"value"`
	Duration  int    `json:"duration"`
	PlantType string `json:"plantType"`
}

type commandResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SendCommand issues one actuation request. It fails fast without any
// network call when the streaming link is down. On a success response the
// corresponding actuator boolean is flipped optimistically.
func (d *Dispatcher) SendCommand(ctx context.Context, action Action) bool {
	if !action.Valid() {
		d.fail(action, fmt.Sprintf("unknown action %q", action))
		return false
	}
	if !d.connected() {
		d.fail(action, "not connected to garden gateway")
		return false
	}

	plant := d.plant()
	desired := d.desiredValue(action)
	body := commandRequest{
		DeviceID:  d.reg.ForPlant(plant),
		Command:   string(action),
		Value:     desired,
		Duration:  defaultRunSeconds,
		PlantType: string(plant),
	}

	res, err := d.breaker.Execute(func() (any, error) {
		return d.post(ctx, body)
	})
	if err != nil {
		d.logger.Warn().Err(err).Str("action", string(action)).Msg("command request failed")
		d.fail(action, "command request failed: "+err.Error())
		return false
	}

	resp := res.(commandResponse)
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "gateway rejected command"
		}
		d.fail(action, msg)
		return false
	}

	d.applyOptimistic(action, desired)
	d.publishResult(true, model.ControlResult{
		Action:    string(action),
		Success:   true,
		Message:   resp.Message,
		Timestamp: d.now().UTC(),
	})
	d.count(action, "success")
	return true
}

func (d *Dispatcher) post(ctx context.Context, body commandRequest) (commandResponse, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return commandResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, bytes.NewReader(b))
	if err != nil {
		return commandResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return commandResponse{}, err
	}
	defer resp.Body.Close()

	var out commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return commandResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Message != "" {
			// a structured rejection is a command failure, not a breaker trip
			return out, nil
		}
		return commandResponse{}, fmt.Errorf("send-command status %d", resp.StatusCode)
	}
	return out, nil
}

// desiredValue is the state the actuator should end up in: the opposite of
// the current one for toggles, always on for a nutrient dose.
func (d *Dispatcher) desiredValue(action Action) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch action {
	case ActionWater:
		return !d.state.WateringActive
	case ActionLight:
		return !d.state.LightActive
	default:
		return true
	}
}

func (d *Dispatcher) applyOptimistic(action Action, value bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch action {
	case ActionWater:
		d.state.WateringActive = value
	case ActionLight:
		d.state.LightActive = value
	}
}

// Actuators returns the current actuator booleans.
func (d *Dispatcher) Actuators() model.ActuatorState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetSnapshot applies the authoritative on/off states from the gateway's
// initial snapshot.
func (d *Dispatcher) SetSnapshot(watering, light bool) {
	d.mu.Lock()
	d.state = model.ActuatorState{WateringActive: watering, LightActive: light}
	d.mu.Unlock()
}

// ApplyControlResponse applies an authoritative correction from the
// streaming link and re-publishes the outcome.
func (d *Dispatcher) ApplyControlResponse(action string, active, success bool) {
	if success {
		d.applyOptimistic(Action(action), active)
	}
	result := model.ControlResult{
		Action:    action,
		Success:   success,
		Timestamp: d.now().UTC(),
	}
	if !success {
		result.Message = "gateway reported command failure"
	}
	d.publishResult(success, result)
}

// HandleCommandIssued mirrors a command broadcast by the gateway, e.g.
// issued by another client against the same plant.
func (d *Dispatcher) HandleCommandIssued(cmd string, value bool) {
	d.applyOptimistic(Action(cmd), value)
	d.logger.Info().Str("command", cmd).Bool("value", value).Msg("command issued remotely")
}

// HandleCommandTimeout marks a gateway-side command timeout.
func (d *Dispatcher) HandleCommandTimeout(cmd string) {
	d.applyOptimistic(Action(cmd), false)
	d.publishResult(false, model.ControlResult{
		Action:    cmd,
		Success:   false,
		Message:   "command timed out on gateway",
		Timestamp: d.now().UTC(),
	})
}

func (d *Dispatcher) fail(action Action, msg string) {
	d.publishResult(false, model.ControlResult{
		Action:    string(action),
		Success:   false,
		Message:   msg,
		Timestamp: d.now().UTC(),
	})
	d.count(action, "error")
}

func (d *Dispatcher) publishResult(success bool, r model.ControlResult) {
	if success {
		d.hub.Publish(eventhub.ControlSuccessEvent{Result: r})
		return
	}
	d.hub.Publish(eventhub.ControlErrorEvent{Result: r})
}

func (d *Dispatcher) count(action Action, outcome string) {
	if d.commands != nil {
		d.commands.WithLabelValues(string(action), outcome).Inc()
	}
}
