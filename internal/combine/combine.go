// Package combine fuses the per-device current readings into one logical
// reading for the active plant slot.
package combine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gfiorelli/plantwatch/internal/model"
)

// Combiner caches the most recent reading per device (last writer wins by
// arrival order, not by embedded timestamp) and the active plant slot, and
// produces a CombinedReading whenever either changes.
type Combiner struct {
	reg    *model.DeviceRegistry
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	latest map[string]model.SensorReading
	plant  model.PlantSlot
}

func New(reg *model.DeviceRegistry, logger zerolog.Logger) *Combiner {
	return &Combiner{
		reg:    reg,
		logger: logger,
		now:    time.Now,
		latest: make(map[string]model.SensorReading),
		plant:  model.PlantLevel1,
	}
}

// Update stores r as the current reading for its device and returns the
// re-fused reading. ok is false when no source reading exists at all,
// which cannot happen here since r itself is one.
func (c *Combiner) Update(r model.SensorReading) (model.CombinedReading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[r.DeviceID] = r
	return c.combineLocked()
}

// SelectPlant switches the active slot and immediately re-fuses from the
// cached readings, without waiting for new transport traffic. ok is false
// when neither device has reported yet.
func (c *Combiner) SelectPlant(p model.PlantSlot) (model.CombinedReading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plant = p
	return c.combineLocked()
}

// Plant returns the active slot.
func (c *Combiner) Plant() model.PlantSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plant
}

// Latest returns the cached current reading for a device.
func (c *Combiner) Latest(deviceID string) (model.SensorReading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.latest[deviceID]
	return r, ok
}

// combineLocked applies the fusion rule: climate and water tank from the
// primary device, plant-scoped sensors from the active slot's device,
// fertilizer tank from the secondary device. Fields whose source device has
// not reported stay 0 (no source available).
func (c *Combiner) combineLocked() (model.CombinedReading, bool) {
	primary, okP := c.latest[c.reg.Device(model.RolePrimary)]
	secondary, okS := c.latest[c.reg.Device(model.RoleSecondary)]
	if !okP && !okS {
		c.logger.Debug().Str("plant", string(c.plant)).Msg("no device readings cached yet, skipping fusion")
		return model.CombinedReading{}, false
	}
	active := c.latest[c.reg.ForPlant(c.plant)] // zero value if absent

	return model.CombinedReading{
		Temperature:     primary.Temperature,
		Humidity:        primary.Humidity,
		WaterLevel:      primary.WaterLevel,
		Moisture:        active.Moisture,
		Sunlight:        active.Sunlight,
		Nitrogen:        active.Nitrogen,
		Phosphorus:      active.Phosphorus,
		Potassium:       active.Potassium,
		FertilizerLevel: secondary.FertilizerLevel,
		Timestamp:       c.now().UTC(),
		Plant:           c.plant,
	}, true
}
