// Package normalize converts the heterogeneous payload shapes the gateway
// firmware has shipped over time into the canonical SensorReading. It is
// total over any object-shaped input: malformed or missing fields resolve
// to documented defaults, never to an error or a NaN.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gfiorelli/plantwatch/internal/model"
)

// Reading normalizes one raw device payload. Resolution order per field
// family, first present key wins; every extracted value passes through Num
// so non-numeric input collapses to the field's default.
func Reading(raw map[string]any, deviceID string, now time.Time) model.SensorReading {
	r := model.SensorReading{
		DeviceID:    deviceID,
		Temperature: Num(raw["temperature"], model.DefaultTemperature),
		Humidity:    Num(raw["humidity"], model.DefaultHumidity),
		Moisture:    firstNum(raw, 0, "moisture_percent", "soil_moisture_percent", "moisture"),
		Sunlight:    firstNum(raw, 0, "lux", "lightLevel", "ldr"),
		WaterLevel:  firstNum(raw, 0, "water_level_percent", "waterLevel"),
		Timestamp:   timestamp(raw, now),
	}
	r.FertilizerLevel = firstNum(raw, 0, "fertilizer_level_percent", "fertilizerLevel")
	r.Nitrogen, r.Phosphorus, r.Potassium = npk(raw)
	return r
}

// npk prefers the nested {N,P,K} object, then the flat legacy fields.
func npk(raw map[string]any) (n, p, k float64) {
	if nested, ok := raw["npk"].(map[string]any); ok {
		return Num(nested["N"], 0), Num(nested["P"], 0), Num(nested["K"], 0)
	}
	return Num(raw["nitrogen"], 0), Num(raw["phosphorus"], 0), Num(raw["potassium"], 0)
}

func firstNum(raw map[string]any, def float64, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			return Num(v, def)
		}
	}
	return def
}

// Num coerces an arbitrary JSON value to a finite float64, falling back to
// def for anything missing, empty or unparsable.
func Num(v any, def float64) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return def
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return def
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		f = parsed
	case bool:
		if x {
			f = 1
		}
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// timestamp takes the payload's own instant when present and parsable,
// otherwise the normalization instant.
func timestamp(raw map[string]any, now time.Time) time.Time {
	if s, ok := raw["timestamp"].(string); ok && strings.TrimSpace(s) != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return now
}
