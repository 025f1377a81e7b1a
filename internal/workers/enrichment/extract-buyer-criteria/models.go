// internal/workers/enrichment/extract-buyer-criteria/models.go
package extractbuyercriteria

type Input struct {
	BuyerID    string `json:"buyerId,omitempty"`
	ThesisText string `json:"thesisText,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// CriteriaPatch is the reviewable subset of buyer criteria the
// extraction produces. Zero values mean the model found nothing for
// that field. The patch is handed back to the process for an admin to
// apply; this worker never touches buyer rows itself.
type CriteriaPatch struct {
	BuyerType         string   `json:"buyerType,omitempty"`
	RevenueMin        int64    `json:"revenueMin,omitempty"`
	RevenueMax        int64    `json:"revenueMax,omitempty"`
	EBITDAMin         int64    `json:"ebitdaMin,omitempty"`
	EBITDAMax         int64    `json:"ebitdaMax,omitempty"`
	TargetGeographies []string `json:"targetGeographies,omitempty"`
	TargetServices    []string `json:"targetServices,omitempty"`
	GeographyMode     string   `json:"geographyMode,omitempty"`
}

type Output struct {
	BuyerID       string        `json:"buyerId,omitempty"`
	CriteriaPatch CriteriaPatch `json:"criteriaPatch"`
	Model         string        `json:"extractionModel"`
	Warnings      []string      `json:"warnings,omitempty"`
	ExtractedAt   string        `json:"extractedAt"`
}
