// internal/workers/alerts/match-deal-alerts/criteria.go
package matchdealalerts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"dealflow-workers/internal/backfill"
	"dealflow-workers/internal/models"
)

// criteriaSchema validates the normalized form. Stored blobs are never
// validated directly; they are upgraded first.
const criteriaSchema = `{
	"type": "object",
	"required": ["version"],
	"properties": {
		"version": {"type": "integer", "enum": [2]},
		"categories": {"type": "array", "items": {"type": "string"}},
		"locations": {"type": "array", "items": {"type": "string"}},
		"revenueMin": {"type": "integer", "minimum": 0},
		"revenueMax": {"type": "integer", "minimum": 0},
		"ebitdaMin": {"type": "integer", "minimum": 0},
		"ebitdaMax": {"type": "integer", "minimum": 0},
		"freeText": {"type": "string"}
	},
	"additionalProperties": false
}`

// storedCriteria accepts both blob generations: the legacy scalar keys
// written by the first alerts UI and the array keys written since.
type storedCriteria struct {
	Version    int      `json:"version"`
	Category   string   `json:"category"`
	Location   string   `json:"location"`
	MinRevenue int64    `json:"min_revenue"`
	MaxRevenue int64    `json:"max_revenue"`
	Categories []string `json:"categories"`
	Locations  []string `json:"locations"`
	RevenueMin int64    `json:"revenue_min"`
	RevenueMax int64    `json:"revenue_max"`
	EBITDAMin  int64    `json:"ebitda_min"`
	EBITDAMax  int64    `json:"ebitda_max"`
	FreeText   string   `json:"free_text"`
}

// NormalizeCriteria upgrades a stored criteria blob to the versioned
// form: legacy scalars become one-element slices, state names become
// USPS codes, and the result is schema-checked. Query sites only ever
// see the normalized shape. A missing blob means no constraints.
func NormalizeCriteria(raw json.RawMessage) (models.AlertCriteria, error) {
	normalized := models.AlertCriteria{Version: models.CriteriaSchemaVersion}
	if len(raw) == 0 || string(raw) == "null" {
		return normalized, nil
	}

	var stored storedCriteria
	if err := json.Unmarshal(raw, &stored); err != nil {
		return models.AlertCriteria{}, fmt.Errorf("criteria blob is not valid JSON: %w", err)
	}

	categories := stored.Categories
	if len(categories) == 0 && stored.Category != "" {
		categories = []string{stored.Category}
	}
	for _, c := range categories {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			normalized.Categories = append(normalized.Categories, trimmed)
		}
	}

	locations := stored.Locations
	if len(locations) == 0 && stored.Location != "" {
		locations = []string{stored.Location}
	}
	for _, l := range locations {
		if strings.TrimSpace(l) == "" {
			continue
		}
		code, _ := backfill.NormalizeState(l)
		normalized.Locations = append(normalized.Locations, code)
	}

	normalized.RevenueMin = firstNonZero(stored.RevenueMin, stored.MinRevenue)
	normalized.RevenueMax = firstNonZero(stored.RevenueMax, stored.MaxRevenue)
	normalized.EBITDAMin = stored.EBITDAMin
	normalized.EBITDAMax = stored.EBITDAMax
	normalized.FreeText = strings.TrimSpace(stored.FreeText)

	if err := validateCriteria(normalized); err != nil {
		return models.AlertCriteria{}, err
	}
	return normalized, nil
}

func validateCriteria(criteria models.AlertCriteria) error {
	doc, err := json.Marshal(criteria)
	if err != nil {
		return fmt.Errorf("marshal criteria: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(criteriaSchema)
	documentLoader := gojsonschema.NewBytesLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("criteria validation failed: %v", errs)
	}
	return nil
}

func firstNonZero(values ...int64) int64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
