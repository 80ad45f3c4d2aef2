package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTConfig holds the broker coordinates for the gateway link.
type MQTTConfig struct {
	BrokerURL   string // es. tcp://garden-gw.local:1883
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string // event name -> "<prefix>/<event>"
}

// MQTTTransport carries gateway events over MQTT topics, one topic per
// event name. Auto-reconnect is disabled: the connection manager owns the
// retry policy, the transport only reports the loss.
type MQTTTransport struct {
	cfg    MQTTConfig
	logger zerolog.Logger

	mu       sync.RWMutex
	client   mqtt.Client
	handlers map[string]Handler
}

func NewMQTT(cfg MQTTConfig, logger zerolog.Logger) *MQTTTransport {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "garden"
	}
	return &MQTTTransport{
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Connect replaces any previous client with a fresh one and subscribes the
// registered handlers on it. The old client is fully torn down first, so
// handlers are never attached to two connections at once.
func (t *MQTTTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.client != nil {
		t.client.Disconnect(100)
		t.client = nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(t.cfg.BrokerURL)
	opts.SetClientID(t.cfg.ClientID)
	opts.SetUsername(t.cfg.Username)
	opts.SetPassword(t.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		reason := ""
		if err != nil {
			reason = err.Error()
		}
		t.logger.Warn().Str("reason", reason).Msg("gateway link lost")
		t.dispatch(EventDisconnect, []byte(reason))
	})

	client := mqtt.NewClient(opts)
	t.client = client
	t.mu.Unlock()

	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect %s: %w", t.cfg.BrokerURL, err)
		}
	case <-ctx.Done():
		client.Disconnect(100)
		return fmt.Errorf("mqtt connect %s: %w", t.cfg.BrokerURL, ctx.Err())
	}

	t.mu.RLock()
	events := make([]string, 0, len(t.handlers))
	for ev := range t.handlers {
		events = append(events, ev)
	}
	t.mu.RUnlock()

	for _, ev := range events {
		if err := t.subscribe(client, ev); err != nil {
			client.Disconnect(100)
			return err
		}
	}

	t.logger.Info().Str("broker", t.cfg.BrokerURL).Msg("gateway link established")
	return nil
}

// Emit publishes one outbound event at QoS 1.
func (t *MQTTTransport) Emit(event string, payload any) error {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil || !client.IsConnectionOpen() {
		return fmt.Errorf("emit %s: not connected", event)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	token := client.Publish(t.topicFor(event), 1, false, b)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("emit %s: %w", event, token.Error())
	}
	return nil
}

// On registers h for an inbound event. If the link is already up the topic
// is subscribed immediately, otherwise at the next Connect.
func (t *MQTTTransport) On(event string, h Handler) {
	t.mu.Lock()
	t.handlers[event] = h
	client := t.client
	t.mu.Unlock()

	if event == EventDisconnect {
		return // synthetic, no topic behind it
	}
	if client != nil && client.IsConnectionOpen() {
		if err := t.subscribe(client, event); err != nil {
			t.logger.Error().Err(err).Str("event", event).Msg("subscribe failed")
		}
	}
}

// Off removes the handler and unsubscribes the topic if the link is up.
func (t *MQTTTransport) Off(event string) {
	t.mu.Lock()
	delete(t.handlers, event)
	client := t.client
	t.mu.Unlock()

	if client != nil && client.IsConnectionOpen() && event != EventDisconnect {
		client.Unsubscribe(t.topicFor(event))
	}
}

// Disconnect closes the link locally.
func (t *MQTTTransport) Disconnect() {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()
	if client != nil {
		client.Disconnect(250)
		t.logger.Info().Msg("gateway link closed")
	}
}

func (t *MQTTTransport) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.client != nil && t.client.IsConnectionOpen()
}

func (t *MQTTTransport) subscribe(client mqtt.Client, event string) error {
	if event == EventDisconnect {
		return nil
	}
	topic := t.topicFor(event)
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		t.dispatch(event, msg.Payload())
	})
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func (t *MQTTTransport) dispatch(event string, payload []byte) {
	t.mu.RLock()
	h := t.handlers[event]
	t.mu.RUnlock()
	if h == nil {
		t.logger.Debug().Str("event", event).Msg("no handler registered")
		return
	}
	h(payload)
}

func (t *MQTTTransport) topicFor(event string) string {
	return t.cfg.TopicPrefix + "/" + event
}
