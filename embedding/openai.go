package embedding

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
)

type OpenAIEncoder struct {
	client    openai.Client
	model     string
	dimension int
}

var (
	_ Encoder = (*OpenAIEncoder)(nil)
)

func NewOpenAIEncoder(model string, dimension int, opts ...option.RequestOption) *OpenAIEncoder {
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	return &OpenAIEncoder{
		client:    openai.NewClient(opts...),
		model:     model,
		dimension: dimension,
	}
}

// Encode keeps the task marker in the text; OpenAI models treat it as
// ordinary content.
func (e *OpenAIEncoder) Encode(ctx context.Context, _ Task, texts ...string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
		Dimensions:     openai.Int(int64(e.dimension)),
	}

	res, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create embeddings")
	}

	embeddings := make([][]float32, len(texts))
	for _, emb := range res.Data {
		if emb.Index < 0 || int(emb.Index) >= len(texts) {
			return nil, errors.Errorf("embedding index %d out of range", emb.Index)
		}
		vec := make([]float32, len(emb.Embedding))
		for i, val := range emb.Embedding {
			vec[i] = float32(val)
		}
		embeddings[emb.Index] = vec
	}

	return embeddings, nil
}
