// internal/workers/pipeline/sync-agreement-status/validation.go
package syncagreementstatus

import "dealflow-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"firmId", "agreementType", "newStatus", "actorUserId"},
		Properties: map[string]validation.Property{
			"firmId": {
				Type:        "string",
				Description: "Firm whose agreement status changed",
				MinLength:   intPtr(1),
			},
			"agreementType": {
				Type:        "string",
				Description: "Which agreement the status applies to",
				Enum:        []string{"nda", "fee_agreement"},
			},
			"newStatus": {
				Type:        "string",
				Description: "Status the agreement moved to",
				Enum:        []string{"none", "requested", "signed", "expired"},
			},
			"actorUserId": {
				Type:        "string",
				Description: "Admin user performing the change",
				MinLength:   intPtr(1),
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
				Description: "Whether the status change was applied",
			},
			"message": {
				Type:        "string",
				Description: "Result message",
			},
			"firmId": {
				Type:        "string",
				Description: "Firm the change applied to",
			},
			"agreementType": {
				Type:        "string",
				Description: "Agreement the change applied to",
			},
			"previousStatus": {
				Type:        "string",
				Description: "Status before the change",
			},
			"newStatus": {
				Type:        "string",
				Description: "Status after the change",
			},
			"propagation": {
				Type:        "object",
				Description: "Row counts per cascade step",
			},
			"cacheInvalidated": {
				Type:        "boolean",
				Description: "Whether the cached status was dropped",
			},
		},
		AdditionalProperties: false,
	}
}

func intPtr(i int) *int {
	return &i
}
