// internal/workers/data-access/search-listings/queries/registry.go
package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

type Hit struct {
	ListingID  string
	Score      float64
	Title      string
	Highlights map[string][]string
}

type QueryResult struct {
	Hits      []Hit
	TotalHits int64
	MaxScore  float64
	Took      int64
}

func Execute(ctx context.Context, esClient *elasticsearch.Client, input map[string]interface{}) (*QueryResult, error) {
	sq := SearchQuery{
		Index:      input["indexName"].(string),
		QueryType:  input["queryType"].(string),
		Pagination: struct{ From, Size int }{0, 20},
	}

	if text, ok := input["query"].(string); ok {
		sq.Text = text
	}
	if filters, ok := input["filters"].(map[string]interface{}); ok {
		sq.Filters = filters
	} else {
		sq.Filters = map[string]interface{}{}
	}
	if listingID, ok := input["listingId"].(string); ok {
		sq.ListingID = listingID
	}
	if pagination, ok := input["pagination"].(map[string]interface{}); ok {
		if from, exists := pagination["from"].(float64); exists {
			sq.Pagination.From = int(from)
		}
		if size, exists := pagination["size"].(float64); exists {
			sq.Pagination.Size = int(size)
			if sq.Pagination.Size > 100 {
				sq.Pagination.Size = 100
			}
			if sq.Pagination.Size < 1 {
				sq.Pagination.Size = 20
			}
		}
	}

	req, err := BuildQuery(esClient, sq)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := req.Do(ctx, esClient)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	var r map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	hits := r["hits"].(map[string]interface{})
	total := hits["total"].(map[string]interface{})["value"].(float64)
	maxScore := 0.0
	if ms, ok := hits["max_score"].(float64); ok {
		maxScore = ms
	}

	var results []Hit
	for _, raw := range hits["hits"].([]interface{}) {
		hit := raw.(map[string]interface{})

		h := Hit{}
		if id, ok := hit["_id"].(string); ok {
			h.ListingID = id
		}
		// _score is null when a sort clause overrides relevance
		if score, ok := hit["_score"].(float64); ok {
			h.Score = score
		}
		if source, ok := hit["_source"].(map[string]interface{}); ok {
			if title, ok := source["title"].(string); ok {
				h.Title = title
			}
		}
		if highlight, ok := hit["highlight"].(map[string]interface{}); ok {
			h.Highlights = make(map[string][]string, len(highlight))
			for field, fragments := range highlight {
				list, ok := fragments.([]interface{})
				if !ok {
					continue
				}
				for _, fragment := range list {
					if s, ok := fragment.(string); ok {
						h.Highlights[field] = append(h.Highlights[field], s)
					}
				}
			}
		}

		results = append(results, h)
	}

	return &QueryResult{
		Hits:      results,
		TotalHits: int64(total),
		MaxScore:  maxScore,
		Took:      time.Since(start).Milliseconds(),
	}, nil
}
