package normalize

import "github.com/gfiorelli/plantwatch/internal/model"

// Reservoir normalizes a reservoirUpdate payload into a tank snapshot.
// Same coercion rules as sensor fields: absent or unparsable values are 0.
func Reservoir(raw map[string]any) model.ReservoirLevels {
	return model.ReservoirLevels{
		WaterPercent:      firstNum(raw, 0, "water_level_percent", "waterPercent"),
		WaterCm:           firstNum(raw, 0, "water_level_cm", "waterCm"),
		FertilizerPercent: firstNum(raw, 0, "fertilizer_level_percent", "fertilizerPercent"),
		FertilizerCm:      firstNum(raw, 0, "fertilizer_level_cm", "fertilizerCm"),
	}
}
