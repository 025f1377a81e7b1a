// internal/workers/data-access/search-listings/queries/builders.go
package queries

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrUnknownQueryType = errors.New("unknown query type")
	ErrMissingIndex     = errors.New("index name is required")
)

// SearchQuery defines the structure of a listing search request
type SearchQuery struct {
	Index      string
	QueryType  string
	Text       string
	Filters    map[string]interface{}
	ListingID  string
	Pagination struct {
		From int
		Size int
	}
}

// BuildQuery builds an Elasticsearch search request based on query type and filters
func BuildQuery(esClient *elasticsearch.Client, sq SearchQuery) (*esapi.SearchRequest, error) {
	if sq.Index == "" {
		return nil, ErrMissingIndex
	}

	var queryBody map[string]interface{}

	switch sq.QueryType {
	case "listing_search":
		queryBody = buildListingSearchQuery(sq)
	case "similar_listings":
		queryBody = buildSimilarListingsQuery(sq)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueryType, sq.QueryType)
	}

	body, _ := json.Marshal(queryBody)

	req := esapi.SearchRequest{
		Index:  []string{sq.Index},
		Body:   strings.NewReader(string(body)),
		From:   &sq.Pagination.From,
		Size:   &sq.Pagination.Size,
		Pretty: true,
	}

	return &req, nil
}

// buildListingSearchQuery builds the main listing search query dynamically.
// Only active listings are searchable; a preview never surfaces sold or
// withdrawn inventory.
func buildListingSearchQuery(sq SearchQuery) map[string]interface{} {
	boolQuery := make(map[string]interface{})
	mustClauses := []interface{}{}
	filterClauses := []interface{}{
		map[string]interface{}{
			"term": map[string]interface{}{"status": "active"},
		},
	}

	// Free-text search
	if sq.Text != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  sq.Text,
				"fields": []string{"title^3", "description^2", "category"},
				"type":   "best_fields",
			},
		})
	}

	// Category filter (categories holds the primary plus extras)
	if category, ok := sq.Filters["category"].(string); ok && category != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"categories": category},
		})
	}

	// State filter
	if states, ok := sq.Filters["states"].([]interface{}); ok && len(states) > 0 {
		terms := make([]string, 0, len(states))
		for _, s := range states {
			if code, ok := s.(string); ok {
				terms = append(terms, code)
			}
		}
		if len(terms) > 0 {
			filterClauses = append(filterClauses, map[string]interface{}{
				"terms": map[string]interface{}{"state": terms},
			})
		}
	}

	// Revenue and EBITDA bounds. Listings carry point values, so the
	// bounds clamp directly instead of the range-containment dance an
	// investment-range field would need.
	if min := filterNumber(sq.Filters, "revenueMin"); min > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{
				"revenue": map[string]interface{}{"gte": min},
			},
		})
	}
	if max := filterNumber(sq.Filters, "revenueMax"); max > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{
				"revenue": map[string]interface{}{"lte": max},
			},
		})
	}
	if min := filterNumber(sq.Filters, "ebitdaMin"); min > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{
				"ebitda": map[string]interface{}{"gte": min},
			},
		})
	}
	if max := filterNumber(sq.Filters, "ebitdaMax"); max > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{
				"ebitda": map[string]interface{}{"lte": max},
			},
		})
	}

	// Default match_all if no free text
	if len(mustClauses) == 0 {
		mustClauses = append(mustClauses, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	boolQuery["must"] = mustClauses
	boolQuery["filter"] = filterClauses

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"title": map[string]interface{}{},
				"description": map[string]interface{}{
					"fragment_size":       160,
					"number_of_fragments": 2,
				},
			},
		},
	}

	// Sorting logic
	if sortBy, ok := sq.Filters["sortBy"].(string); ok {
		switch sortBy {
		case "revenue":
			query["sort"] = []map[string]interface{}{{"revenue": "desc"}}
		case "newest":
			query["sort"] = []map[string]interface{}{{"created_at": "desc"}}
		}
	}

	return query
}

// buildSimilarListingsQuery builds a "listings like this one" query
func buildSimilarListingsQuery(sq SearchQuery) map[string]interface{} {
	if sq.ListingID == "" {
		return map[string]interface{}{
			"query": map[string]interface{}{
				"match_none": map[string]interface{}{},
			},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"more_like_this": map[string]interface{}{
							"fields": []string{"title", "description", "category"},
							"like": []map[string]interface{}{
								{"_index": sq.Index, "_id": sq.ListingID},
							},
							"min_term_freq":   1,
							"max_query_terms": 12,
							"min_doc_freq":    1,
							"min_word_length": 3,
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"status": "active"},
					},
				},
			},
		},
	}
}

func filterNumber(filters map[string]interface{}, key string) float64 {
	switch v := filters[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
