package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mafzaal/letstalk-index/internal/app/core/service"
	"github.com/mafzaal/letstalk-index/pkg/errors"
)

// embedRetryPolicy governs retries of the embedding HTTP call. Embedding
// endpoints are rate-limited and occasionally flaky under load, so transient
// failures (timeouts, 5xx, connection resets) get a few backed-off retries
// rather than failing the whole batch on the first hiccup.
var embedRetryPolicy = service.RetryPolicy{
	Attempts:       3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	Multiplier:     2,
}

// HTTPProvider calls a JSON embeddings endpoint (OpenAI-compatible shape:
// {"data": [{"embedding": [...]}, ...]}) and extracts vectors with gjson
// rather than unmarshalling into a full response struct.
type HTTPProvider struct {
	Endpoint    string
	Model       string
	APIKey      string
	HTTPClient  *http.Client
	Dims        int
	RetryPolicy service.RetryPolicy
}

// NewHTTPProvider returns an HTTPProvider with a bounded-timeout client.
func NewHTTPProvider(endpoint, model, apiKey string, dims int) *HTTPProvider {
	return &HTTPProvider{
		Endpoint:    endpoint,
		Model:       model,
		APIKey:      apiKey,
		Dims:        dims,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		RetryPolicy: embedRetryPolicy,
	}
}

// Dimensions returns the configured embedding width.
func (p *HTTPProvider) Dimensions() int { return p.Dims }

// Embed posts texts to the configured endpoint and returns one vector per
// input text, in order.
func (p *HTTPProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model": p.Model,
		"input": texts,
	})
	if err != nil {
		return nil, errors.Embedding("marshal embedding request", err)
	}

	var raw []byte
	err = service.Retry(ctx, p.RetryPolicy, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
		if reqErr != nil {
			return errors.Embedding("build embedding request", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.APIKey)
		}

		resp, doErr := p.HTTPClient.Do(req)
		if doErr != nil {
			return errors.Embedding("call embedding provider", doErr)
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return errors.Embedding("read embedding response", readErr)
		}
		if resp.StatusCode != http.StatusOK {
			return errors.Embedding(fmt.Sprintf("embedding provider returned status %d", resp.StatusCode), nil)
		}
		raw = respBody
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := gjson.GetBytes(raw, "data").Array()
	if len(items) != len(texts) {
		return nil, errors.Embedding(fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(items)), nil)
	}

	vectors := make([][]float32, len(items))
	for i, item := range items {
		values := item.Get("embedding").Array()
		vec := make([]float32, len(values))
		for j, v := range values {
			vec[j] = float32(v.Float())
		}
		vectors[i] = vec
	}
	return vectors, nil
}
