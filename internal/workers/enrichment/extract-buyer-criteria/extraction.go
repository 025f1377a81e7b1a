// internal/workers/enrichment/extract-buyer-criteria/extraction.go
package extractbuyercriteria

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"dealflow-workers/internal/backfill"
	stderrors "dealflow-workers/internal/common/errors"
)

// extractionSchema is the contract the model's answer must satisfy.
// The model is treated as a black box: whatever comes back is checked
// here, never trusted.
const extractionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"buyerType": {
			"type": "string",
			"enum": ["pe_firm", "platform", "strategic", "individual"]
		},
		"revenueMin": {"type": "integer", "minimum": 0},
		"revenueMax": {"type": "integer", "minimum": 0},
		"ebitdaMin": {"type": "integer", "minimum": 0},
		"ebitdaMax": {"type": "integer", "minimum": 0},
		"targetGeographies": {
			"type": "array",
			"items": {"type": "string"}
		},
		"targetServices": {
			"type": "array",
			"items": {"type": "string"}
		},
		"geographyMode": {
			"type": "string",
			"enum": ["critical", "preferred", "minimal"]
		}
	}
}`

const extractionSystemPrompt = `You extract acquisition criteria from a buyer's investment thesis and call notes.

Return ONLY a JSON object, no prose, with any of these fields you can support from the text:
- buyerType: one of "pe_firm", "platform", "strategic", "individual"
- revenueMin, revenueMax: annual revenue bounds in whole US dollars
- ebitdaMin, ebitdaMax: EBITDA bounds in whole US dollars
- targetGeographies: US states the buyer targets
- targetServices: service categories the buyer targets, lowercase
- geographyMode: "critical" if the buyer will only look in-territory, "preferred" if they favor it, "minimal" if location barely matters

Omit any field the text does not support. Never guess numbers.`

// parseExtraction turns the model's raw answer into a CriteriaPatch.
// Markdown fences are tolerated, the payload is schema-validated, and
// geographies/services fold through the same normalization tables the
// matcher uses. Unrecognized values survive into the patch with a
// warning so the reviewing admin sees exactly what the model said.
func parseExtraction(content string) (CriteriaPatch, []string, error) {
	doc := []byte(stripCodeFences(content))

	schemaLoader := gojsonschema.NewStringLoader(extractionSchema)
	documentLoader := gojsonschema.NewBytesLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return CriteriaPatch{}, nil, stderrors.NewExtractionInvalidOutputError(
			fmt.Sprintf("not valid JSON: %v", err))
	}
	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}
		return CriteriaPatch{}, nil, stderrors.NewExtractionInvalidOutputError(
			strings.Join(descriptions, "; "))
	}

	var patch CriteriaPatch
	if err := json.Unmarshal(doc, &patch); err != nil {
		return CriteriaPatch{}, nil, stderrors.NewExtractionInvalidOutputError(err.Error())
	}

	var warnings []string
	patch.TargetGeographies, warnings = normalizeGeographies(patch.TargetGeographies)

	var serviceWarnings []string
	patch.TargetServices, serviceWarnings = normalizeServices(patch.TargetServices)
	warnings = append(warnings, serviceWarnings...)

	if patch.RevenueMin > 0 && patch.RevenueMax > 0 && patch.RevenueMax < patch.RevenueMin {
		warnings = append(warnings, fmt.Sprintf("revenueMax %d below revenueMin %d", patch.RevenueMax, patch.RevenueMin))
	}
	if patch.EBITDAMin > 0 && patch.EBITDAMax > 0 && patch.EBITDAMax < patch.EBITDAMin {
		warnings = append(warnings, fmt.Sprintf("ebitdaMax %d below ebitdaMin %d", patch.EBITDAMax, patch.EBITDAMin))
	}

	return patch, warnings, nil
}

// stripCodeFences unwraps a ```json ... ``` (or bare ```) block when
// the model ignores the no-prose instruction.
func stripCodeFences(content string) string {
	if idx := strings.Index(content, "```json"); idx >= 0 {
		rest := content[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(content, "```"); idx >= 0 {
		rest := content[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(content)
}

func normalizeGeographies(raw []string) ([]string, []string) {
	var codes []string
	var warnings []string
	seen := make(map[string]bool)

	for _, geo := range raw {
		trimmed := strings.TrimSpace(geo)
		if trimmed == "" {
			continue
		}
		code, ok := backfill.NormalizeState(trimmed)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("geography %q is not a recognized US state", trimmed))
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}

	return codes, warnings
}

func normalizeServices(raw []string) ([]string, []string) {
	var services []string
	var warnings []string
	seen := make(map[string]bool)

	add := func(svc string) {
		if svc != "" && !seen[svc] {
			seen[svc] = true
			services = append(services, svc)
		}
	}

	for _, svc := range raw {
		trimmed := strings.TrimSpace(svc)
		if trimmed == "" {
			continue
		}
		canonical, ok := backfill.NormalizeCategory(trimmed)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("service %q is not a known category", trimmed))
		}
		for _, c := range canonical {
			add(c)
		}
	}

	return services, warnings
}
