// internal/workers/pipeline/create-valuation-lead/validation.go
package createvaluationlead

import "dealflow-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"email", "calculatorType"},
		Properties: map[string]validation.Property{
			"email": {
				Type:        "string",
				Description: "Email address submitted with the calculator",
				MinLength:   intPtr(5),
				MaxLength:   intPtr(255),
			},
			"calculatorType": {
				Type:        "string",
				Description: "Which valuation calculator produced the lead",
				Enum:        []string{"standard", "sde", "ebitda"},
			},
			"companyName": {
				Type:        "string",
				Description: "Company name entered by the visitor",
				MaxLength:   intPtr(200),
			},
			"industry": {
				Type:        "string",
				Description: "Industry selected in the calculator",
				MaxLength:   intPtr(100),
			},
			"inputs": {
				Type:        "object",
				Description: "Raw calculator inputs as entered",
			},
			"estimateLow": {
				Type:        "number",
				Description: "Low end of the estimated valuation range",
			},
			"estimateHigh": {
				Type:        "number",
				Description: "High end of the estimated valuation range",
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
				Description: "Whether the lead was stored or resolved to an existing one",
			},
			"message": {
				Type:        "string",
				Description: "Result message",
			},
			"leadId": {
				Type:        "string",
				Description: "Identifier of the stored or existing lead",
			},
			"duplicate": {
				Type:        "boolean",
				Description: "True when a recent lead for the same email and calculator already existed",
			},
			"createdAt": {
				Type:        "string",
				Description: "Timestamp of the stored lead",
			},
		},
		AdditionalProperties: false,
	}
}

func intPtr(i int) *int {
	return &i
}
