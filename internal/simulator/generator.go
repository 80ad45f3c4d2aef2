// Package simulator plays the remote gateway for local development: it
// serves the initial snapshot and emits drifting sensor updates for both
// devices, deliberately rotating through the payload shapes the real
// firmware has shipped over time so the normalizer keeps getting exercised.
package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gfiorelli/plantwatch/internal/model"
)

type deviceState struct {
	moisture float64
	temp     float64
	hum      float64
	lux      float64
	n, p, k  float64
	level    float64 // water tank on primary, fertilizer tank on secondary
}

// Generator keeps a random-walk state per device.
type Generator struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	state map[string]*deviceState
	tick  int
}

func NewGenerator(seed int64, devices []string) *Generator {
	g := &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		state: make(map[string]*deviceState, len(devices)),
	}
	for _, id := range devices {
		g.state[id] = &deviceState{
			moisture: 35 + g.rnd.Float64()*20,
			temp:     21 + g.rnd.Float64()*3,
			hum:      48 + g.rnd.Float64()*10,
			lux:      800 + g.rnd.Float64()*400,
			n:        6, p: 3, k: 4,
			level: 70 + g.rnd.Float64()*20,
		}
	}
	return g
}

// DeviceUpdate advances one device and returns a dataUpdate payload. Every
// third tick uses the legacy flat field names instead of the current ones.
func (g *Generator) DeviceUpdate(deviceID string) map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state[deviceID]
	if st == nil {
		return nil
	}
	g.tick++
	st.moisture = clamp(st.moisture+g.rnd.Float64()*2-1.1, 5, 95)
	st.temp = clamp(st.temp+g.rnd.Float64()*0.6-0.3, 10, 35)
	st.hum = clamp(st.hum+g.rnd.Float64()*2-1, 20, 90)
	st.lux = clamp(st.lux+g.rnd.Float64()*120-60, 0, 30000)
	st.level = clamp(st.level-g.rnd.Float64()*0.2, 0, 100)

	now := time.Now().UTC().Format(time.RFC3339)
	data := map[string]any{
		"temperature": round1(st.temp),
		"humidity":    round1(st.hum),
		"timestamp":   now,
	}
	if g.tick%3 == 0 {
		// legacy firmware shape
		data["soil_moisture_percent"] = round1(st.moisture)
		data["ldr"] = round1(st.lux)
		data["nitrogen"] = st.n
		data["phosphorus"] = st.p
		data["potassium"] = st.k
		data["waterLevel"] = round1(st.level)
	} else {
		data["moisture_percent"] = round1(st.moisture)
		data["lux"] = round1(st.lux)
		data["npk"] = map[string]any{"N": st.n, "P": st.p, "K": st.k}
		data["water_level_percent"] = round1(st.level)
		data["fertilizer_level_percent"] = round1(st.level)
	}

	return map[string]any{
		"deviceId": deviceID,
		"data":     data,
	}
}

// Reservoir returns a reservoirUpdate payload derived from the tank levels.
func (g *Generator) Reservoir(primary, secondary string) map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	water, fert := 0.0, 0.0
	if st := g.state[primary]; st != nil {
		water = st.level
	}
	if st := g.state[secondary]; st != nil {
		fert = st.level
	}
	// 30 cm tanks
	return map[string]any{
		"water_level_percent":      round1(water),
		"water_level_cm":           round1(water * 0.3),
		"fertilizer_level_percent": round1(fert),
		"fertilizer_level_cm":      round1(fert * 0.3),
	}
}

// Snapshot builds an initData payload for all devices.
func (g *Generator) Snapshot(primary, secondary string) map[string]any {
	sensors := make(map[string]any)
	for _, id := range []string{primary, secondary} {
		if upd := g.DeviceUpdate(id); upd != nil {
			sensors[id] = upd["data"]
		}
	}
	history := map[string][]model.RawPoint{}
	now := time.Now().UTC()
	g.mu.Lock()
	for slot, id := range map[string]string{"level1": primary, "level2": secondary} {
		st := g.state[id]
		if st == nil {
			continue
		}
		points := make([]model.RawPoint, 0, 24)
		for i := 23; i >= 0; i-- {
			points = append(points, model.RawPoint{
				Timestamp: now.Add(-time.Duration(i) * 5 * time.Minute).Format(time.RFC3339),
				Value:     clamp(st.moisture+g.rnd.Float64()*6-3, 5, 95),
			})
		}
		history[slot] = points
	}
	g.mu.Unlock()
	return map[string]any{
		"sensors":   sensors,
		"reservoir": g.Reservoir(primary, secondary),
		"states":    map[string]bool{"watering": false, "light": false},
		"history":   history,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
