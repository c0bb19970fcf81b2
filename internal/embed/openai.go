package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/westonopentrain/capsule-match/internal/apperr"
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
// Supports text-embedding-3-large (3072d) and text-embedding-3-small /
// text-embedding-ada-002 (1536d).
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	endpoint   string
	dimensions int
	batchSize  int
	client     *http.Client
}

// OpenAIEmbedOption configures an OpenAIEmbedder.
type OpenAIEmbedOption func(*OpenAIEmbedder)

// WithEndpoint overrides the default OpenAI API endpoint (e.g. for proxies).
func WithEndpoint(endpoint string) OpenAIEmbedOption {
	return func(d *OpenAIEmbedder) { d.endpoint = endpoint }
}

// WithDimensions overrides the dimension inferred from the model name.
func WithDimensions(d int) OpenAIEmbedOption {
	return func(e *OpenAIEmbedder) { e.dimensions = d }
}

// NewOpenAIEmbedder creates an embedding driver for model.
func NewOpenAIEmbedder(apiKey, model string, opts ...OpenAIEmbedOption) *OpenAIEmbedder {
	dims := 1536
	switch model {
	case "text-embedding-3-large":
		dims = 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		dims = 1536
	}

	d := &OpenAIEmbedder{
		apiKey:     apiKey,
		model:      model,
		endpoint:   "https://api.openai.com/v1/embeddings",
		dimensions: dims,
		batchSize:  2048,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *OpenAIEmbedder) Dimensions() int { return d.dimensions }

type openAIEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIEmbedResponse struct {
	Data  []openAIEmbedData `json:"data"`
	Error *openAIError      `json:"error,omitempty"`
}

type openAIEmbedData struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Embed calls the embeddings endpoint for the given texts. On any
// failure it returns an EMBEDDING_FAILURE domain error — unlike the
// classifier, there is no fallback path: embedding failures propagate.
func (d *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > d.batchSize {
		return nil, apperr.New(apperr.CodeEmbeddingFailure, fmt.Sprintf("batch size %d exceeds max %d", len(texts), d.batchSize))
	}

	body, err := json.Marshal(openAIEmbedRequest{Input: texts, Model: d.model})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeEmbeddingFailure, err, "marshal embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeEmbeddingFailure, err, "create embed request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeEmbeddingFailure, err, "embed request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeEmbeddingFailure, err, "read embed response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.CodeEmbeddingFailure, fmt.Sprintf("embeddings API returned %d: %s", resp.StatusCode, string(respBody)))
	}

	var result openAIEmbedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, apperr.Wrap(apperr.CodeEmbeddingFailure, err, "unmarshal embed response")
	}
	if result.Error != nil {
		return nil, apperr.New(apperr.CodeEmbeddingFailure, fmt.Sprintf("embeddings API error: %s (%s)", result.Error.Message, result.Error.Type))
	}

	vectors := make([][]float64, len(texts))
	for _, item := range result.Data {
		if item.Index >= 0 && item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	return vectors, nil
}
