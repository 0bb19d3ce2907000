package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	NomicEmbedderTextEndpoint = "https://api-atlas.nomic.ai/v1/embedding/text"
	NomicTextEmbedderModel    = "nomic-embed-text-v1.5"
)

type (
	NomicEncoder struct {
		client    *http.Client
		apiKey    string
		endpoint  string
		model     string
		dimension int
	}

	NomicOption func(*NomicEncoder)
)

var (
	_ Encoder = (*NomicEncoder)(nil)
)

func WithNomicEndpoint(endpoint string) NomicOption {
	return func(e *NomicEncoder) {
		e.endpoint = endpoint
	}
}

func WithNomicHTTPClient(client *http.Client) NomicOption {
	return func(e *NomicEncoder) {
		e.client = client
	}
}

func NewNomicEncoder(apiKey, model string, dimension int, opts ...NomicOption) *NomicEncoder {
	if model == "" {
		model = NomicTextEmbedderModel
	}
	e := &NomicEncoder{
		client:    http.DefaultClient,
		apiKey:    apiKey,
		endpoint:  NomicEmbedderTextEndpoint,
		model:     model,
		dimension: dimension,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode sends the task type alongside the texts; the Atlas API applies the
// task marker itself, so the local one is stripped.
func (e *NomicEncoder) Encode(ctx context.Context, task Task, texts ...string) ([][]float32, error) {
	if e.apiKey == "" {
		return nil, errors.New("nomic api key is not configured")
	}

	var requestBody bytes.Buffer
	if err := json.NewEncoder(&requestBody).Encode(struct {
		TaskType       string   `json:"task_type"`
		Model          string   `json:"model"`
		Texts          []string `json:"texts"`
		Dimensionality int      `json:"dimensionality,omitempty"`
	}{
		TaskType:       task.String(),
		Model:          e.model,
		Texts:          lo.Map(texts, func(t string, _ int) string { return task.StripPrefix(t) }),
		Dimensionality: e.dimension,
	}); err != nil {
		return nil, errors.Wrapf(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, &requestBody)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("failed to embed text: HTTP %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, errors.Wrapf(err, "failed to decode response")
	}

	return response.Embeddings, nil
}
