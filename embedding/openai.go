package embedding

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/rushteam/estaterec/core"
)

// OpenAIConfig 是 OpenAI 兼容 embedding 服务的配置（openai / siliconflow / ollama 等）
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// OpenAI 通过 OpenAI 兼容接口计算句向量
type OpenAI struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAI 创建 OpenAI 兼容的向量化器
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.Model == "" {
		return nil, core.InvalidInput(core.ModuleEmbedding, "embedding model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, core.InvalidInput(core.ModuleEmbedding, "embedding dimensions must be positive")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

var _ core.Embedder = (*OpenAI)(nil)

func (s *OpenAI) Dimensions() int { return s.dimensions }

func (s *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 一次请求计算多段文本的向量，顺序与输入一致
func (s *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, core.InvalidInput(core.ModuleEmbedding, "no texts provided for embedding")
	}

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: s.dimensions,
	})
	if err != nil {
		return nil, core.Unavailable(core.ModuleEmbedding, err, "create embeddings")
	}
	if len(resp.Data) != len(texts) {
		return nil, core.Unavailable(core.ModuleEmbedding, errors.New("unexpected embedding count"), "create embeddings")
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, core.Unavailable(core.ModuleEmbedding, errors.New("embedding index out of range"), "create embeddings")
		}
		if len(d.Embedding) != s.dimensions {
			return nil, core.Unavailable(core.ModuleEmbedding, errors.New("embedding dimension mismatch"), "create embeddings")
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
