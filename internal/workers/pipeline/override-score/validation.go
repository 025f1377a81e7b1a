// internal/workers/pipeline/override-score/validation.go
package overridescore

import "dealflow-workers/internal/common/validation"

// GetInputSchema gates presence, not plausibility: the override values
// themselves are deliberately unconstrained because an admin override
// is applied even when it looks wrong.
func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"scoreId", "actorUserId", "reason"},
		Properties: map[string]validation.Property{
			"scoreId": {
				Type:        "string",
				Description: "Score row being overridden",
				MinLength:   intPtr(1),
			},
			"actorUserId": {
				Type:        "string",
				Description: "Admin user applying the override",
				MinLength:   intPtr(1),
			},
			"reason": {
				Type:        "string",
				Description: "Why the score is being overridden",
				MinLength:   intPtr(1),
			},
			"compositeScore": {
				Type:        "number",
				Description: "New composite score",
			},
			"tier": {
				Type:        "string",
				Description: "New tier letter",
			},
			"needsReview": {
				Type:        "boolean",
				Description: "New needs-review flag",
			},
		},
		AdditionalProperties: false,
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"success": {
				Type:        "boolean",
				Description: "Whether the override was applied",
			},
			"message": {
				Type:        "string",
				Description: "Result message",
			},
			"scoreId": {
				Type:        "string",
				Description: "Id of the override score row",
			},
			"previousScoreId": {
				Type:        "string",
				Description: "Id of the archived row",
			},
			"compositeScore": {
				Type:        "number",
				Description: "Composite score after the override",
			},
			"tier": {
				Type:        "string",
				Description: "Tier after the override",
			},
			"needsReview": {
				Type:        "boolean",
				Description: "Needs-review flag after the override",
			},
			"confidence": {
				Type:        "string",
				Description: "Always manual for overrides",
			},
			"overriddenAt": {
				Type:        "string",
				Description: "When the override was applied",
			},
		},
		AdditionalProperties: false,
	}
}

func intPtr(i int) *int {
	return &i
}
