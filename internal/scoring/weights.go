// internal/scoring/weights.go
package scoring

import (
	"fmt"

	"dealflow-workers/internal/models"
)

// ValidateWeights rejects weight configs the engine cannot use. Weights
// are operator data, not constants, so they get checked on every load.
func ValidateWeights(cfg models.WeightConfig) error {
	sum := cfg.SizeFitWeight + cfg.DataQualityWeight + cfg.MotivationWeight + cfg.EngagementWeight
	if sum != 100 {
		return fmt.Errorf("weights must sum to 100, got %d (size_fit=%d data_quality=%d motivation=%d engagement=%d)",
			sum, cfg.SizeFitWeight, cfg.DataQualityWeight, cfg.MotivationWeight, cfg.EngagementWeight)
	}
	if cfg.SizeFitWeight < 0 || cfg.DataQualityWeight < 0 || cfg.MotivationWeight < 0 || cfg.EngagementWeight < 0 {
		return fmt.Errorf("weights must be non-negative")
	}
	if cfg.ThesisBonusCap < 0 || cfg.DataQualityBonusCap < 0 {
		return fmt.Errorf("bonus caps must be non-negative")
	}
	if cfg.LearningPenaltyMax < 0 {
		return fmt.Errorf("learning penalty max must be non-negative")
	}
	if cfg.SizeTolerancePct < 0 || cfg.SizeTolerancePct > 1 {
		return fmt.Errorf("size tolerance must be within [0, 1], got %v", cfg.SizeTolerancePct)
	}
	return nil
}

// DefaultWeights is the shipped 65/20/8/7 split used when no operator
// config is active.
func DefaultWeights() models.WeightConfig {
	return models.WeightConfig{
		ID:                  "default",
		Name:                "default",
		SizeFitWeight:       65,
		DataQualityWeight:   20,
		MotivationWeight:    8,
		EngagementWeight:    7,
		ThesisBonusCap:      20,
		DataQualityBonusCap: 10,
		LearningPenaltyMax:  25,
		SizeTolerancePct:    0.20,
		Active:              true,
	}
}
