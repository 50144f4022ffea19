package inference

// EntityMetadata carries the non-statistical context a post-processing
// policy may key on.
type EntityMetadata struct {
	EntityID int64  `json:"entity_id"`
	Name     string `json:"name,omitempty"`
	Tier     string `json:"tier,omitempty"`
}

// AdjustmentPolicy is the swappable post-processing step applied to raw
// model output. The prediction pipeline itself carries no domain
// special-casing; anything of that kind lives behind this interface where it
// can be tested or removed independently.
type AdjustmentPolicy interface {
	Adjust(category string, rawPrediction float64, meta EntityMetadata) float64
}

// PassthroughPolicy returns model output unchanged. The default.
type PassthroughPolicy struct{}

// Adjust returns the raw prediction.
func (PassthroughPolicy) Adjust(_ string, rawPrediction float64, _ EntityMetadata) float64 {
	return rawPrediction
}

// TierFloorPolicy raises predictions to a per-tier minimum. Encodes the
// judgment that a model cold-starting on thin history should not project an
// established elite player below a floor.
type TierFloorPolicy struct {
	Floors map[string]float64
}

// Adjust applies the floor for the entity's tier, when one is configured.
func (p TierFloorPolicy) Adjust(_ string, rawPrediction float64, meta EntityMetadata) float64 {
	floor, ok := p.Floors[meta.Tier]
	if ok && rawPrediction < floor {
		return floor
	}
	return rawPrediction
}
