// internal/workers/data-access/search-listings/models.go
package searchlistings

type Input struct {
	IndexName  string                 `json:"indexName,omitempty"`
	QueryType  string                 `json:"queryType,omitempty"`
	Query      string                 `json:"query,omitempty"`
	Filters    map[string]interface{} `json:"filters,omitempty"`
	ListingID  string                 `json:"listingId,omitempty"`
	Pagination Pagination             `json:"pagination"`
}

type Pagination struct {
	From int `json:"from"`
	Size int `json:"size"`
}

// SearchHit carries what a saved-search preview needs: the listing id,
// its relevance, and highlighted fragments. Full listing rows come from
// query-postgresql, not the index.
type SearchHit struct {
	ListingID  string              `json:"listingId"`
	Score      float64             `json:"score"`
	Title      string              `json:"title"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

type Output struct {
	Hits      []SearchHit `json:"hits"`
	TotalHits int64       `json:"totalHits"`
	MaxScore  float64     `json:"maxScore"`
	Took      int64       `json:"took"` // milliseconds
}
