package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Outcome classifies a single analysis round-trip. Every upload request
// performs exactly one attempt and records the outcome, whatever it is.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeConnectionFailure
	OutcomeClientRejected
	OutcomeServerFault
	OutcomeUnexpected
)

type Result struct {
	Score    float64  `json:"score"`
	Feedback []string `json:"feedback"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Analyze sends the raw video bytes to the analysis service as a multipart
// payload (field "file") and classifies the response. The returned error
// carries detail for logging; the Outcome decides what gets persisted and
// which status the caller maps it to.
func (c *Client) Analyze(ctx context.Context, filename string, data []byte) (*Result, Outcome, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, OutcomeUnexpected, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, OutcomeUnexpected, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, OutcomeUnexpected, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", &buf)
	if err != nil {
		return nil, OutcomeUnexpected, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, OutcomeConnectionFailure, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
		if err != nil || len(body) == 0 {
			return nil, OutcomeUnexpected, fmt.Errorf("empty analysis response")
		}
		var result Result
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, OutcomeUnexpected, fmt.Errorf("decode analysis response: %w", err)
		}
		return &result, OutcomeSuccess, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, OutcomeClientRejected, fmt.Errorf("analysis rejected request: %s", resp.Status)
	case resp.StatusCode >= 500:
		return nil, OutcomeServerFault, fmt.Errorf("analysis server fault: %s", resp.Status)
	default:
		return nil, OutcomeUnexpected, fmt.Errorf("unexpected analysis status: %s", resp.Status)
	}
}
