package searchlistings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	stderrors "dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
)

func createTestConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Index:   "deal-listings",
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func createRealElasticsearchClient(t *testing.T) *elasticsearch.Client {
	cfg := elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
	}

	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		t.Skipf("Skipping test: Failed to create Elasticsearch client: %v", err)
		return nil
	}

	res, err := esClient.Info()
	if err != nil {
		t.Skipf("Skipping test: Elasticsearch container not responding: %v", err)
		return nil
	}
	defer res.Body.Close()

	if res.IsError() {
		t.Skipf("Skipping test: Elasticsearch error: %s", res.String())
		return nil
	}

	t.Log("✅ Connected to REAL Elasticsearch container")
	return esClient
}

func setupRealTestData(t *testing.T, esClient *elasticsearch.Client) {
	esClient.Indices.Delete([]string{"deal-listings"}, esClient.Indices.Delete.WithIgnoreUnavailable(true))

	time.Sleep(2 * time.Second)

	indexBody := `{
		"mappings": {
			"properties": {
				"title": {"type": "text"},
				"description": {"type": "text"},
				"category": {"type": "keyword"},
				"categories": {"type": "keyword"},
				"state": {"type": "keyword"},
				"status": {"type": "keyword"},
				"revenue": {"type": "long"},
				"ebitda": {"type": "long"},
				"asking_price": {"type": "long"},
				"created_at": {"type": "date"}
			}
		}
	}`

	res, err := esClient.Indices.Create(
		"deal-listings",
		esClient.Indices.Create.WithBody(strings.NewReader(indexBody)),
	)
	require.NoError(t, err, "Failed to create index")
	res.Body.Close()

	time.Sleep(1 * time.Second)

	testDocs := []map[string]interface{}{
		{
			"title":        "Gulf Coast HVAC Services",
			"description":  "Commercial HVAC installation and maintenance across the Texas Gulf Coast",
			"category":     "hvac",
			"categories":   []string{"hvac"},
			"state":        "TX",
			"status":       "active",
			"revenue":      4200000,
			"ebitda":       850000,
			"asking_price": 9000000,
			"created_at":   "2026-02-10T00:00:00Z",
		},
		{
			"title":        "Metro Plumbing Co",
			"description":  "Residential plumbing service and repair business with recurring contracts",
			"category":     "plumbing",
			"categories":   []string{"plumbing"},
			"state":        "TX",
			"status":       "active",
			"revenue":      2100000,
			"ebitda":       400000,
			"asking_price": 4500000,
			"created_at":   "2026-03-22T00:00:00Z",
		},
		{
			"title":        "Sooner Electrical Contractors",
			"description":  "Licensed electrical contractor serving the Oklahoma City metro",
			"category":     "electrical",
			"categories":   []string{"electrical"},
			"state":        "OK",
			"status":       "active",
			"revenue":      3500000,
			"ebitda":       600000,
			"asking_price": 7000000,
			"created_at":   "2026-01-05T00:00:00Z",
		},
		{
			"title":        "Lone Star Roofing",
			"description":  "Roofing replacement and repair operator in Dallas-Fort Worth",
			"category":     "roofing",
			"categories":   []string{"roofing"},
			"state":        "TX",
			"status":       "sold",
			"revenue":      1800000,
			"ebitda":       300000,
			"asking_price": 3200000,
			"created_at":   "2025-11-18T00:00:00Z",
		},
	}

	for i, doc := range testDocs {
		docJSON, _ := json.Marshal(doc)
		res, err := esClient.Index(
			"deal-listings",
			strings.NewReader(string(docJSON)),
			esClient.Index.WithDocumentID(fmt.Sprintf("listing-%d", i+1)),
			esClient.Index.WithRefresh("wait_for"),
		)
		require.NoError(t, err, "Failed to index document %d: %v", i+1, doc)
		res.Body.Close()
	}

	_, err = esClient.Indices.Refresh(esClient.Indices.Refresh.WithIndex("deal-listings"))
	require.NoError(t, err, "Failed to refresh index")

	verifyTestData(t, esClient)

	t.Log("✅ REAL test data setup complete in Elasticsearch container")
}

func verifyTestData(t *testing.T, esClient *elasticsearch.Client) {
	res, err := esClient.Count(
		esClient.Count.WithIndex("deal-listings"),
	)
	require.NoError(t, err)
	defer res.Body.Close()

	var countResult map[string]interface{}
	err = json.NewDecoder(res.Body).Decode(&countResult)
	require.NoError(t, err)

	count := int(countResult["count"].(float64))
	t.Logf("📊 Verified: %d documents in index", count)

	searchRes, err := esClient.Search(
		esClient.Search.WithIndex("deal-listings"),
		esClient.Search.WithBody(strings.NewReader(`{"query": {"match_all": {}}, "size": 10}`)),
	)
	require.NoError(t, err)
	defer searchRes.Body.Close()

	var searchResult map[string]interface{}
	err = json.NewDecoder(searchRes.Body).Decode(&searchResult)
	require.NoError(t, err)

	hits := searchResult["hits"].(map[string]interface{})["hits"].([]interface{})
	t.Logf("🔍 Actual documents in Elasticsearch:")
	for i, hit := range hits {
		source := hit.(map[string]interface{})["_source"].(map[string]interface{})
		t.Logf("  %d: %s (status: %s)", i+1, source["title"], source["status"])
	}
}

func TestHandler_Execute_Success_RealElasticsearch(t *testing.T) {
	esClient := createRealElasticsearchClient(t)
	if esClient == nil {
		return
	}
	setupRealTestData(t, esClient)

	handler := NewHandler(createTestConfig(), esClient, createTestLogger(t))

	tests := []struct {
		name     string
		input    *Input
		validate func(t *testing.T, output *Output)
	}{
		{
			name: "match all surfaces only active listings",
			input: &Input{
				IndexName:  "deal-listings",
				QueryType:  "listing_search",
				Filters:    map[string]interface{}{},
				Pagination: Pagination{From: 0, Size: 10},
			},
			validate: func(t *testing.T, output *Output) {
				assert.Equal(t, int64(3), output.TotalHits, "Sold listing must stay out of search results")
				assert.Equal(t, 3, len(output.Hits))
				for _, hit := range output.Hits {
					assert.NotEqual(t, "Lone Star Roofing", hit.Title)
				}
				t.Logf("✅ Found %d active listings in %d ms", output.TotalHits, output.Took)
			},
		},
		{
			name: "keyword search with highlights",
			input: &Input{
				IndexName:  "deal-listings",
				QueryType:  "listing_search",
				Query:      "plumbing",
				Filters:    map[string]interface{}{},
				Pagination: Pagination{From: 0, Size: 10},
			},
			validate: func(t *testing.T, output *Output) {
				assert.Equal(t, int64(1), output.TotalHits, "Should find 1 plumbing listing")
				if output.TotalHits > 0 {
					hit := output.Hits[0]
					assert.Equal(t, "listing-2", hit.ListingID)
					assert.Equal(t, "Metro Plumbing Co", hit.Title)
					assert.Greater(t, hit.Score, 0.0)
					require.NotEmpty(t, hit.Highlights, "Keyword hits should carry highlight fragments")
					joined := strings.Join(hit.Highlights["title"], " ") + strings.Join(hit.Highlights["description"], " ")
					assert.Contains(t, joined, "<em>")
					t.Logf("✅ Found plumbing listing with highlights: %v", hit.Highlights)
				}
			},
		},
		{
			name: "category filter",
			input: &Input{
				IndexName: "deal-listings",
				QueryType: "listing_search",
				Filters: map[string]interface{}{
					"category": "hvac",
				},
				Pagination: Pagination{From: 0, Size: 10},
			},
			validate: func(t *testing.T, output *Output) {
				assert.Equal(t, int64(1), output.TotalHits, "Should find 1 hvac listing")
				if output.TotalHits > 0 {
					assert.Equal(t, "Gulf Coast HVAC Services", output.Hits[0].Title)
					t.Logf("✅ Found hvac listing: %s", output.Hits[0].Title)
				}
			},
		},
		{
			name: "state filter",
			input: &Input{
				IndexName: "deal-listings",
				QueryType: "listing_search",
				Filters: map[string]interface{}{
					"states": []interface{}{"OK"},
				},
				Pagination: Pagination{From: 0, Size: 10},
			},
			validate: func(t *testing.T, output *Output) {
				assert.Equal(t, int64(1), output.TotalHits, "Should find 1 Oklahoma listing")
				if output.TotalHits > 0 {
					assert.Equal(t, "Sooner Electrical Contractors", output.Hits[0].Title)
					t.Logf("✅ Found Oklahoma listing: %s", output.Hits[0].Title)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := handler.execute(context.Background(), tt.input)

			assert.NoError(t, err)
			assert.NotNil(t, output)

			if tt.validate != nil {
				tt.validate(t, output)
			}
		})
	}
}

func TestHandler_Execute_RevenueRange_RealElasticsearch(t *testing.T) {
	esClient := createRealElasticsearchClient(t)
	if esClient == nil {
		return
	}
	setupRealTestData(t, esClient)

	handler := NewHandler(createTestConfig(), esClient, createTestLogger(t))

	tests := []struct {
		name         string
		revenueMin   float64
		revenueMax   float64
		expectedHits int64
		description  string
	}{
		{
			name:         "revenue floor 2M",
			revenueMin:   2000000,
			revenueMax:   0,
			expectedHits: 3,
			description:  "All three active listings clear a 2M floor",
		},
		{
			name:         "revenue floor 3M",
			revenueMin:   3000000,
			revenueMax:   0,
			expectedHits: 2,
			description:  "Only the HVAC and electrical listings clear a 3M floor",
		},
		{
			name:         "revenue ceiling 2.5M",
			revenueMin:   0,
			revenueMax:   2500000,
			expectedHits: 1,
			description:  "Only the plumbing listing fits under 2.5M; the sold roofing listing never appears",
		},
		{
			name:         "revenue band 2M-4M",
			revenueMin:   2000000,
			revenueMax:   4000000,
			expectedHits: 2,
			description:  "Plumbing and electrical listings sit inside the band",
		},
		{
			name:         "revenue floor 5M",
			revenueMin:   5000000,
			revenueMax:   0,
			expectedHits: 0,
			description:  "No active listing clears a 5M floor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters := map[string]interface{}{}
			if tt.revenueMin > 0 {
				filters["revenueMin"] = tt.revenueMin
			}
			if tt.revenueMax > 0 {
				filters["revenueMax"] = tt.revenueMax
			}

			input := &Input{
				IndexName:  "deal-listings",
				QueryType:  "listing_search",
				Filters:    filters,
				Pagination: Pagination{From: 0, Size: 10},
			}

			output, err := handler.execute(context.Background(), input)

			assert.NoError(t, err)
			assert.NotNil(t, output)
			assert.Equal(t, tt.expectedHits, output.TotalHits, tt.description)

			if output.TotalHits > 0 {
				t.Logf("🔍 Found %d listings in range %v-%v:", output.TotalHits, tt.revenueMin, tt.revenueMax)
				for _, hit := range output.Hits {
					t.Logf("   - %s", hit.Title)
				}
			} else {
				t.Logf("🔍 No listings found in range %v-%v", tt.revenueMin, tt.revenueMax)
			}

			t.Logf("✅ Revenue range %v-%v: %d hits (%s)",
				tt.revenueMin, tt.revenueMax, output.TotalHits, tt.description)
		})
	}
}

func TestHandler_Execute_IndexNotFound_RealElasticsearch(t *testing.T) {
	esClient := createRealElasticsearchClient(t)
	if esClient == nil {
		return
	}

	handler := NewHandler(createTestConfig(), esClient, createTestLogger(t))

	input := &Input{
		IndexName: "nonexistent_index",
		QueryType: "listing_search",
		Filters:   map[string]interface{}{},
	}

	output, err := handler.execute(context.Background(), input)

	assert.Error(t, err)
	var stdErr *stderrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, stderrors.ErrCodeIndexNotFound, stdErr.Code)
	assert.Nil(t, output)

	t.Logf("✅ Correctly handled missing index: %v", err)
}

func TestHandler_Execute_ErrorClassification(t *testing.T) {
	// Both failures happen in query building, before any network call,
	// so a nil Elasticsearch client is safe here.
	handler := NewHandler(&Config{Timeout: time.Second}, nil, createTestLogger(t))

	t.Run("unknown query type", func(t *testing.T) {
		output, err := handler.execute(context.Background(), &Input{
			IndexName: "deal-listings",
			QueryType: "franchise_index",
		})

		assert.Nil(t, output)
		var stdErr *stderrors.StandardError
		require.True(t, errors.As(err, &stdErr))
		assert.Equal(t, stderrors.ErrCodeInvalidQueryType, stdErr.Code)
		assert.False(t, stdErr.Retryable)
	})

	t.Run("missing index with no configured fallback", func(t *testing.T) {
		output, err := handler.execute(context.Background(), &Input{
			QueryType: "listing_search",
		})

		assert.Nil(t, output)
		var stdErr *stderrors.StandardError
		require.True(t, errors.As(err, &stdErr))
		assert.Equal(t, stderrors.ErrCodeIndexNotFound, stdErr.Code)
		assert.False(t, stdErr.Retryable)
	})
}

func TestHandler_EdgeCases(t *testing.T) {
	esClient := createRealElasticsearchClient(t)
	if esClient == nil {
		return
	}
	setupRealTestData(t, esClient)

	handler := NewHandler(createTestConfig(), esClient, createTestLogger(t))

	t.Run("nil input", func(t *testing.T) {
		output, err := handler.execute(context.Background(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be nil")
		assert.Nil(t, output)
	})

	t.Run("empty index name falls back to configured default", func(t *testing.T) {
		input := &Input{
			IndexName:  "",
			QueryType:  "listing_search",
			Filters:    map[string]interface{}{},
			Pagination: Pagination{From: 0, Size: 10},
		}
		output, err := handler.execute(context.Background(), input)
		assert.NoError(t, err)
		require.NotNil(t, output)
		assert.Equal(t, int64(3), output.TotalHits)
	})

	t.Run("empty query type defaults to listing search", func(t *testing.T) {
		input := &Input{
			IndexName:  "deal-listings",
			Filters:    map[string]interface{}{},
			Pagination: Pagination{From: 0, Size: 10},
		}
		output, err := handler.execute(context.Background(), input)
		assert.NoError(t, err)
		require.NotNil(t, output)
		assert.Equal(t, int64(3), output.TotalHits)
	})

	t.Run("invalid query type", func(t *testing.T) {
		input := &Input{
			IndexName: "deal-listings",
			QueryType: "invalid_query_type",
			Filters:   map[string]interface{}{},
		}
		output, err := handler.execute(context.Background(), input)
		assert.Error(t, err)
		assert.Nil(t, output)
	})

	t.Run("similar listings without listing id matches nothing", func(t *testing.T) {
		input := &Input{
			IndexName:  "deal-listings",
			QueryType:  "similar_listings",
			Filters:    map[string]interface{}{},
			Pagination: Pagination{From: 0, Size: 10},
		}
		output, err := handler.execute(context.Background(), input)
		assert.NoError(t, err)
		require.NotNil(t, output)
		assert.Equal(t, int64(0), output.TotalHits)
	})
}
