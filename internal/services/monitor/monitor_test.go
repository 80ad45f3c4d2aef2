package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gfiorelli/plantwatch/internal/model"
	"github.com/gfiorelli/plantwatch/pkg/eventhub"
	"github.com/gfiorelli/plantwatch/pkg/sched"
	"github.com/gfiorelli/plantwatch/pkg/transport"
)

type fakeSink struct {
	mu              sync.Mutex
	watering, light bool
	responses       []string
	timeouts        []string
}

func (f *fakeSink) SetSnapshot(w, l bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watering, f.light = w, l
}

func (f *fakeSink) ApplyControlResponse(action string, active, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, action)
}

func (f *fakeSink) HandleCommandIssued(cmd string, value bool) {}

func (f *fakeSink) HandleCommandTimeout(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, cmd)
}

type capturedEvents struct {
	mu          sync.Mutex
	connections []bool
	data        []model.CombinedReading
	reservoirs  []model.ReservoirLevels
	alerts      []model.Alert
	errors      []eventhub.ErrorEvent
}

func captureAll(h *eventhub.Hub) *capturedEvents {
	c := &capturedEvents{}
	h.Subscribe(eventhub.KindConnection, func(e eventhub.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.connections = append(c.connections, e.(eventhub.ConnectionEvent).Status.Connected)
	})
	h.Subscribe(eventhub.KindData, func(e eventhub.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.data = append(c.data, e.(eventhub.DataEvent).Reading)
	})
	h.Subscribe(eventhub.KindReservoir, func(e eventhub.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.reservoirs = append(c.reservoirs, e.(eventhub.ReservoirEvent).Levels)
	})
	h.Subscribe(eventhub.KindAlert, func(e eventhub.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.alerts = append(c.alerts, e.(eventhub.AlertEvent).Alert)
	})
	h.Subscribe(eventhub.KindError, func(e eventhub.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.errors = append(c.errors, e.(eventhub.ErrorEvent))
	})
	return c
}

func newTestService(t *testing.T) (*Service, *transport.Fake, *sched.Manual, *capturedEvents) {
	t.Helper()
	fake := transport.NewFake()
	clock := sched.NewManual()
	hub := eventhub.New(zerolog.Nop())
	events := captureAll(hub)
	svc := New(Config{Endpoint: "tcp://gw.local:1883"}, fake, hub, clock, zerolog.Nop())
	return svc, fake, clock, events
}

func TestBackoffSchedule(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	bo := svc.newBackoff()

	want := []time.Duration{
		5000 * time.Millisecond,
		7500 * time.Millisecond,
		11250 * time.Millisecond,
		16875 * time.Millisecond,
		20000 * time.Millisecond,
	}
	var prev time.Duration
	for i, w := range want {
		d := bo.NextBackOff()
		assert.Equal(t, w, d, "attempt %d", i+1)
		assert.GreaterOrEqual(t, d, prev, "monotonically non-decreasing")
		assert.LessOrEqual(t, d, 20*time.Second, "never exceeds the cap")
		prev = d
	}
}

func TestConnectSuccess(t *testing.T) {
	svc, fake, _, events := newTestService(t)

	svc.Connect()

	assert.Equal(t, model.StateConnected, svc.State())
	assert.True(t, svc.Ready())
	require.Equal(t, []bool{true}, events.connections)
	require.Len(t, events.alerts, 1)
	assert.Equal(t, "success", events.alerts[0].Type)

	emits := fake.Emits()
	require.Len(t, emits, 1)
	assert.Equal(t, "requestInitialData", emits[0].Event)
}

func TestConnectRetriesThenFails(t *testing.T) {
	svc, fake, clock, events := newTestService(t)
	fake.ConnectErr = errors.New("connection refused")

	svc.Connect() // attempt 1, synchronous
	assert.Equal(t, model.StateReconnecting, svc.State())

	// walk through the whole backoff schedule
	for _, d := range []time.Duration{5000, 7500, 11250, 16875} {
		clock.Advance(time.Duration(d) * time.Millisecond)
	}

	assert.Equal(t, model.StateFailed, svc.State())
	assert.Equal(t, 5, fake.Connects(), "bounded at maxAttempts")
	assert.Equal(t, []time.Duration{
		5000 * time.Millisecond,
		7500 * time.Millisecond,
		11250 * time.Millisecond,
		16875 * time.Millisecond,
	}, clock.Delays(), "delays between attempts follow the capped schedule")

	require.Len(t, events.errors, 1)
	assert.Contains(t, events.errors[0].Details, "5 attempts")
	assert.Contains(t, events.errors[0].Details, "tcp://gw.local:1883")

	// no further auto-retry from Failed
	clock.Advance(time.Hour)
	assert.Equal(t, 5, fake.Connects())
}

func TestReconnectAfterFailedResetsAttempts(t *testing.T) {
	svc, fake, clock, _ := newTestService(t)
	fake.ConnectErr = errors.New("connection refused")

	svc.Connect()
	clock.Advance(time.Hour)
	require.Equal(t, model.StateFailed, svc.State())

	fake.ConnectErr = nil
	svc.Connect() // explicit external re-invoke
	assert.Equal(t, model.StateConnected, svc.State())
}

func TestWatchdogForcesAttemptFailure(t *testing.T) {
	fake := transport.NewFake()
	fake.ConnectFn = func(ctx context.Context) error {
		<-ctx.Done() // never signals success
		return ctx.Err()
	}
	clock := sched.NewManual()
	hub := eventhub.New(zerolog.Nop())
	svc := New(Config{Endpoint: "x", ConnectTimeout: 20 * time.Millisecond}, fake, hub, clock, zerolog.Nop())

	svc.Connect()
	assert.Equal(t, model.StateReconnecting, svc.State())
}

func TestRemoteDisconnectStartsReconnection(t *testing.T) {
	svc, fake, clock, events := newTestService(t)
	svc.Connect()
	require.Equal(t, model.StateConnected, svc.State())

	fake.DropConnection("io server disconnect")

	assert.Equal(t, model.StateReconnecting, svc.State())
	assert.Equal(t, []bool{true, false}, events.connections)

	clock.Advance(5 * time.Second) // first backoff delay
	assert.Equal(t, model.StateConnected, svc.State())
	assert.Equal(t, 2, fake.Connects())
}

func TestLocalCloseDoesNotReconnect(t *testing.T) {
	svc, fake, clock, events := newTestService(t)
	svc.Connect()
	svc.Close()

	assert.Equal(t, model.StateDisconnected, svc.State())
	assert.Equal(t, []bool{true, false}, events.connections)

	fake.Fire(transport.EventDisconnect, []byte("transport close"))
	clock.Advance(time.Hour)
	assert.Equal(t, model.StateDisconnected, svc.State())
	assert.Equal(t, 1, fake.Connects(), "no reconnection after a local close")
}

func TestDataUpdateFlow(t *testing.T) {
	svc, fake, _, events := newTestService(t)
	svc.Connect()

	fake.FireJSON("dataUpdate", map[string]any{
		"deviceId": model.DevicePrimary,
		"data": map[string]any{
			"temperature":      24.5,
			"moisture_percent": 41.0,
			"npk":              map[string]any{"N": 5, "P": 2, "K": 1},
		},
	})

	cr, ok := svc.Current()
	require.True(t, ok)
	assert.Equal(t, 24.5, cr.Temperature)
	assert.Equal(t, 41.0, cr.Moisture)
	assert.Equal(t, 5.0, cr.Nitrogen)
	require.Len(t, events.data, 1)
}

func TestDuplicateDataUpdateDropped(t *testing.T) {
	svc, fake, _, events := newTestService(t)
	svc.Connect()

	payload := []byte(`{"deviceId":"esp32_1","data":{"moisture_percent":41}}`)
	fake.Fire("dataUpdate", payload)
	fake.Fire("dataUpdate", payload)

	assert.Len(t, events.data, 1, "QoS 1 redelivery is deduplicated")
}

func TestMalformedPayloadsAreIgnored(t *testing.T) {
	svc, fake, _, events := newTestService(t)
	svc.Connect()

	fake.Fire("dataUpdate", []byte(`{broken`))
	fake.Fire("dataUpdate", []byte(`{"data":{"moisture_percent":10}}`)) // no deviceId
	fake.Fire("reservoirUpdate", []byte(`not json`))
	fake.Fire("initData", []byte(`[]`))

	assert.Empty(t, events.data)
	assert.Empty(t, events.reservoirs)
	_, ok := svc.Current()
	assert.False(t, ok)
}

func TestInitDataSnapshot(t *testing.T) {
	svc, fake, _, events := newTestService(t)
	sink := &fakeSink{}
	svc.SetActuators(sink)
	svc.Connect()

	fake.FireJSON("initData", map[string]any{
		"sensors": map[string]any{
			model.DevicePrimary:   map[string]any{"temperature": 22, "moisture_percent": 40, "water_level_percent": 81},
			model.DeviceSecondary: map[string]any{"fertilizer_level_percent": 55, "moisture_percent": 20},
		},
		"reservoir": map[string]any{"water_level_percent": 81, "fertilizer_level_percent": 55},
		"states":    map[string]bool{"watering": true, "light": false},
		"history": map[string]any{
			"level1": []map[string]any{
				{"timestamp": "2024-01-01T00:00:10Z", "value": 10},
				{"timestamp": "2024-01-01T00:01:00Z", "value": 20},
			},
		},
	})

	cr, ok := svc.Current()
	require.True(t, ok)
	assert.Equal(t, 22.0, cr.Temperature)
	assert.Equal(t, 55.0, cr.FertilizerLevel)

	levels, ok := svc.Reservoir()
	require.True(t, ok)
	assert.Equal(t, 81.0, levels.WaterPercent)
	require.NotEmpty(t, events.reservoirs)

	assert.True(t, sink.watering)
	assert.False(t, sink.light)

	// seeded history is aggregated immediately
	points := svc.History(model.PlantLevel1)
	require.Len(t, points, 1)
	assert.Equal(t, 15.0, points[0].Value)
	assert.Equal(t, 2, points[0].Count)
}

func TestSelectPlantReemitsAndNotifiesGateway(t *testing.T) {
	svc, fake, _, events := newTestService(t)
	svc.Connect()

	fake.FireJSON("dataUpdate", map[string]any{
		"deviceId": model.DevicePrimary,
		"data":     map[string]any{"moisture_percent": 40},
	})
	fake.FireJSON("dataUpdate", map[string]any{
		"deviceId": model.DeviceSecondary,
		"data":     map[string]any{"moisture_percent": 15},
	})
	require.Len(t, events.data, 2)

	require.NoError(t, svc.SelectPlant(model.PlantLevel2))

	require.Len(t, events.data, 3, "re-selection re-emits immediately from cache")
	assert.Equal(t, 15.0, events.data[2].Moisture)
	assert.Equal(t, model.PlantLevel2, events.data[2].Plant)

	emits := fake.Emits()
	last := emits[len(emits)-1]
	assert.Equal(t, "setPlantType", last.Event)

	assert.Error(t, svc.SelectPlant(model.PlantSlot("level9")))
}

func TestControlEventsForwardedToSink(t *testing.T) {
	svc, fake, _, _ := newTestService(t)
	sink := &fakeSink{}
	svc.SetActuators(sink)
	svc.Connect()

	fake.FireJSON("controlResponse", map[string]any{"action": "water", "active": true, "success": true})
	fake.FireJSON("commandTimeout", map[string]any{"command": "light"})

	assert.Equal(t, []string{"water"}, sink.responses)
	assert.Equal(t, []string{"light"}, sink.timeouts)
}

func TestDebouncedHistoryFromLiveUpdates(t *testing.T) {
	svc, fake, clock, _ := newTestService(t)
	svc.Connect()

	for i := 0; i < 5; i++ {
		fake.FireJSON("dataUpdate", map[string]any{
			"deviceId": model.DevicePrimary,
			"data": map[string]any{
				"moisture_percent": 40 + i,
				"timestamp":        time.Date(2024, 1, 1, 0, 0, 10*i, 0, time.UTC).Format(time.RFC3339),
			},
		})
	}
	assert.Empty(t, svc.History(model.PlantLevel1), "nothing recomputed inside the quiet window")

	clock.Advance(30 * time.Second)
	points := svc.History(model.PlantLevel1)
	require.Len(t, points, 1)
	assert.Equal(t, 5, points[0].Count)
	assert.Equal(t, 42.0, points[0].Value)
}

func TestAlertRing(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	for i := 0; i < maxAlerts+10; i++ {
		svc.alert("info", "notice")
	}
	alerts := svc.Alerts()
	assert.Len(t, alerts, maxAlerts)

	id := alerts[0].ID
	assert.True(t, svc.AckAlert(id))
	assert.False(t, svc.AckAlert("nope"))

	for _, a := range svc.Alerts() {
		if a.ID == id {
			assert.True(t, a.Read)
		}
	}
}
