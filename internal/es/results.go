package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/squatlab/backend/internal/models"
)

const ResultsIndex = "analysis_results"

// ResultDoc is the shape of an analysis result in the search index.
type ResultDoc struct {
	JobID      uint      `json:"job_id"`
	Username   string    `json:"username"`
	Score      *float64  `json:"score"`
	Feedback   string    `json:"feedback"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

type ResultIndexer struct {
	Client *elasticsearch.Client
	Index  string
}

func (ix *ResultIndexer) IndexResult(ctx context.Context, r *models.AnalysisResult) error {
	doc := ResultDoc{
		JobID:      r.JobID,
		Username:   r.Username,
		Score:      r.Score,
		Feedback:   r.Feedback,
		AnalyzedAt: r.AnalyzedAt,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal result doc: %w", err)
	}

	res, err := ix.Client.Index(
		ix.Index,
		bytes.NewReader(data),
		ix.Client.Index.WithContext(ctx),
		ix.Client.Index.WithDocumentID(strconv.FormatUint(uint64(r.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index result: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index result: %s", res.Status())
	}
	return nil
}

// SearchFeedback full-text matches a user's feedback lines.
func SearchFeedback(ctx context.Context, client *elasticsearch.Client, index, username, query string, from, size int) (int64, []ResultDoc, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"match": map[string]interface{}{
						"feedback": map[string]interface{}{
							"query":     query,
							"fuzziness": "AUTO",
						},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{
						"username": username,
					},
				},
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode search body: %w", err)
	}

	res, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(index),
		client.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source ResultDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	docs := make([]ResultDoc, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		docs[i] = hit.Source
	}
	return r.Hits.Total.Value, docs, nil
}
