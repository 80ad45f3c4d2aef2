package model

import "time"

// Fallback values used when a source payload field is missing or unparsable.
const (
	DefaultTemperature = 20.0
	DefaultHumidity    = 50.0
)

// SensorReading is one normalized sample from one device at one instant.
// It is immutable once constructed; a later reading for the same device
// supersedes it in the current-reading cache, it is never mutated in place.
type SensorReading struct {
	Temperature     float64   `json:"temperature"`
	Humidity        float64   `json:"humidity"`
	Moisture        float64   `json:"moisture"`   // percent
	Sunlight        float64   `json:"sunlight"`   // lux
	Nitrogen        float64   `json:"nitrogen"`   // nutrient index
	Phosphorus      float64   `json:"phosphorus"` // nutrient index
	Potassium       float64   `json:"potassium"`  // nutrient index
	WaterLevel      float64   `json:"waterLevel"` // percent
	FertilizerLevel float64   `json:"fertilizerLevel"`
	Timestamp       time.Time `json:"timestamp"`
	DeviceID        string    `json:"deviceId"`
}

// CombinedReading is the fused reading for the active plant slot. Temperature,
// humidity and water level always come from the primary device; moisture,
// sunlight and NPK come from the device assigned to the active slot;
// fertilizer level comes from the secondary device. Timestamp is the fusion
// instant, not a source sample instant.
type CombinedReading struct {
	Temperature     float64   `json:"temperature"`
	Humidity        float64   `json:"humidity"`
	Moisture        float64   `json:"moisture"`
	Sunlight        float64   `json:"sunlight"`
	Nitrogen        float64   `json:"nitrogen"`
	Phosphorus      float64   `json:"phosphorus"`
	Potassium       float64   `json:"potassium"`
	WaterLevel      float64   `json:"waterLevel"`
	FertilizerLevel float64   `json:"fertilizerLevel"`
	Timestamp       time.Time `json:"timestamp"`
	Plant           PlantSlot `json:"plant"`
}

// ReservoirLevels is a wholesale-replaced snapshot of both tank levels,
// each as a percentage and a physical height in cm.
type ReservoirLevels struct {
	WaterPercent      float64 `json:"waterPercent"`
	WaterCm           float64 `json:"waterCm"`
	FertilizerPercent float64 `json:"fertilizerPercent"`
	FertilizerCm      float64 `json:"fertilizerCm"`
}

// ActuatorState tracks the two physical actuators. Flipped optimistically on
// command dispatch and corrected by control responses from the gateway.
type ActuatorState struct {
	WateringActive bool `json:"wateringActive"`
	LightActive    bool `json:"lightActive"`
}
