package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlantSlotValid(t *testing.T) {
	assert.True(t, PlantLevel1.Valid())
	assert.True(t, PlantLevel2.Valid())
	assert.False(t, PlantSlot("level3").Valid())
	assert.False(t, PlantSlot("").Valid())
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	assert.Equal(t, DevicePrimary, reg.Device(RolePrimary))
	assert.Equal(t, DeviceSecondary, reg.Device(RoleSecondary))
	assert.Equal(t, DevicePrimary, reg.ForPlant(PlantLevel1))
	assert.Equal(t, DeviceSecondary, reg.ForPlant(PlantLevel2))
	assert.Equal(t, []string{DevicePrimary, DeviceSecondary}, reg.Devices())
}

func TestSlotOf(t *testing.T) {
	reg := NewDeviceRegistry("dev-a", "dev-b")

	slot, ok := reg.SlotOf("dev-b")
	assert.True(t, ok)
	assert.Equal(t, PlantLevel2, slot)

	_, ok = reg.SlotOf("unknown")
	assert.False(t, ok)
}
