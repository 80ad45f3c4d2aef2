package combine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gfiorelli/plantwatch/internal/model"
)

func newTestCombiner() *Combiner {
	c := New(model.DefaultRegistry(), zerolog.Nop())
	c.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return c
}

func primaryReading() model.SensorReading {
	return model.SensorReading{
		DeviceID:    model.DevicePrimary,
		Temperature: 22, Humidity: 61, Moisture: 44, Sunlight: 900,
		Nitrogen: 5, Phosphorus: 2, Potassium: 1,
		WaterLevel: 80, FertilizerLevel: 10,
		Timestamp: time.Date(2024, 5, 1, 8, 59, 0, 0, time.UTC),
	}
}

func secondaryReading() model.SensorReading {
	return model.SensorReading{
		DeviceID:    model.DeviceSecondary,
		Temperature: 30, Humidity: 20, Moisture: 12, Sunlight: 300,
		Nitrogen: 9, Phosphorus: 8, Potassium: 7,
		WaterLevel: 5, FertilizerLevel: 66,
		Timestamp: time.Date(2024, 5, 1, 8, 58, 0, 0, time.UTC),
	}
}

func TestFusionLevel1BothDevices(t *testing.T) {
	c := newTestCombiner()
	c.Update(primaryReading())
	cr, ok := c.Update(secondaryReading())
	require.True(t, ok)

	// climate and water tank always from the primary device
	assert.Equal(t, 22.0, cr.Temperature)
	assert.Equal(t, 61.0, cr.Humidity)
	assert.Equal(t, 80.0, cr.WaterLevel)
	// level1 plant sensors from the primary device too
	assert.Equal(t, 44.0, cr.Moisture)
	assert.Equal(t, 900.0, cr.Sunlight)
	assert.Equal(t, 5.0, cr.Nitrogen)
	// fertilizer tank always from the secondary device
	assert.Equal(t, 66.0, cr.FertilizerLevel)
	assert.Equal(t, model.PlantLevel1, cr.Plant)
}

func TestFusionTimestampIsFusionInstant(t *testing.T) {
	c := newTestCombiner()
	cr, ok := c.Update(primaryReading())
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), cr.Timestamp,
		"timestamp must be the fusion instant, not the sample instant")
}

func TestFusionSecondaryAbsent(t *testing.T) {
	c := newTestCombiner()
	cr, ok := c.Update(primaryReading())
	require.True(t, ok)

	assert.Equal(t, 0.0, cr.FertilizerLevel, "no source available")
	assert.Equal(t, 22.0, cr.Temperature)
	assert.Equal(t, 44.0, cr.Moisture)
}

func TestFusionBothAbsentIsNoOp(t *testing.T) {
	c := newTestCombiner()
	_, ok := c.SelectPlant(model.PlantLevel2)
	assert.False(t, ok)
}

func TestReselectionReemitsFromCache(t *testing.T) {
	c := newTestCombiner()
	c.Update(primaryReading())
	c.Update(secondaryReading())

	cr, ok := c.SelectPlant(model.PlantLevel2)
	require.True(t, ok)
	// plant-scoped sensors switch to the secondary device immediately
	assert.Equal(t, 12.0, cr.Moisture)
	assert.Equal(t, 300.0, cr.Sunlight)
	assert.Equal(t, 9.0, cr.Nitrogen)
	// climate stays pinned to the primary device
	assert.Equal(t, 22.0, cr.Temperature)
	assert.Equal(t, 61.0, cr.Humidity)
	assert.Equal(t, model.PlantLevel2, cr.Plant)

	cr, ok = c.SelectPlant(model.PlantLevel1)
	require.True(t, ok)
	assert.Equal(t, 44.0, cr.Moisture)
}

func TestLastWriterWinsByArrival(t *testing.T) {
	c := newTestCombiner()
	newer := primaryReading()
	older := primaryReading()
	older.Moisture = 11
	older.Timestamp = newer.Timestamp.Add(-time.Hour) // stale embedded time

	c.Update(newer)
	cr, ok := c.Update(older)
	require.True(t, ok)
	assert.Equal(t, 11.0, cr.Moisture, "arrival order wins over embedded timestamps")
}

func TestLatest(t *testing.T) {
	c := newTestCombiner()
	_, ok := c.Latest(model.DevicePrimary)
	assert.False(t, ok)

	c.Update(primaryReading())
	r, ok := c.Latest(model.DevicePrimary)
	require.True(t, ok)
	assert.Equal(t, 44.0, r.Moisture)
}
