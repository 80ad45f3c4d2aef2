package model

// PlantSlot identifies which of the two monitored plant slots is active.
type PlantSlot string

const (
	PlantLevel1 PlantSlot = "level1"
	PlantLevel2 PlantSlot = "level2"
)

// Valid reports whether p names a known plant slot.
func (p PlantSlot) Valid() bool {
	return p == PlantLevel1 || p == PlantLevel2
}

// DeviceRole is the logical role a device plays in the fusion rule.
type DeviceRole string

const (
	RolePrimary   DeviceRole = "primary"   // climate + water tank
	RoleSecondary DeviceRole = "secondary" // fertilizer tank
)

// Default device identities as flashed on the two controllers.
const (
	DevicePrimary   = "esp32_1"
	DeviceSecondary = "esp32_2"
)

// DeviceRegistry maps logical roles and plant slots to concrete device IDs.
// The defaults preserve the original two-controller wiring, but the mapping
// is kept in one place instead of scattered string literals.
type DeviceRegistry struct {
	byRole map[DeviceRole]string
	bySlot map[PlantSlot]string
}

// DefaultRegistry returns the registry for the stock two-device setup:
// level1 is wired to the primary controller, level2 to the secondary.
func DefaultRegistry() *DeviceRegistry {
	return NewDeviceRegistry(DevicePrimary, DeviceSecondary)
}

// NewDeviceRegistry builds a registry for an arbitrary pair of device IDs.
func NewDeviceRegistry(primary, secondary string) *DeviceRegistry {
	return &DeviceRegistry{
		byRole: map[DeviceRole]string{
			RolePrimary:   primary,
			RoleSecondary: secondary,
		},
		bySlot: map[PlantSlot]string{
			PlantLevel1: primary,
			PlantLevel2: secondary,
		},
	}
}

// Device returns the device ID filling the given role.
func (r *DeviceRegistry) Device(role DeviceRole) string {
	return r.byRole[role]
}

// ForPlant returns the device that carries the plant-scoped sensors
// (moisture, sunlight, NPK) for the given slot.
func (r *DeviceRegistry) ForPlant(p PlantSlot) string {
	return r.bySlot[p]
}

// SlotOf returns the plant slot a device is assigned to, if any.
func (r *DeviceRegistry) SlotOf(deviceID string) (PlantSlot, bool) {
	for slot, id := range r.bySlot {
		if id == deviceID {
			return slot, true
		}
	}
	return "", false
}

// Devices lists all registered device IDs, primary first.
func (r *DeviceRegistry) Devices() []string {
	return []string{r.byRole[RolePrimary], r.byRole[RoleSecondary]}
}
