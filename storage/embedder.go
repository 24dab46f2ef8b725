package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videoSlides/config"
	"videoSlides/utils"
)

// Embedder 文本向量化
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder 豆包模型走火山引擎接口，其余走 OpenAI 兼容接口；结果截到 embedding_dim
func NewEmbedder(cfg *config.Config) Embedder {
	var e Embedder
	if IsVolcengineModel(cfg.EmbeddingModel) {
		e = NewVolcengineEmbedder(cfg.APIKey, cfg.BaseURL, cfg.EmbeddingModel)
	} else {
		e = &OpenAIEmbedder{cli: utils.NewOpenAIClient(cfg.APIKey, cfg.BaseURL), model: cfg.EmbeddingModel}
	}
	return dimFitter{inner: e, dim: cfg.EmbeddingDim}
}

// OpenAIEmbedder go-openai CreateEmbeddings
type OpenAIEmbedder struct {
	cli   *openai.Client
	model string
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Data[0].Embedding, nil
}

// VolcengineEmbedder 火山引擎 embedding 客户端
type VolcengineEmbedder struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type volcengineRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type volcengineResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func NewVolcengineEmbedder(apiKey, baseURL, model string) *VolcengineEmbedder {
	return &VolcengineEmbedder{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *VolcengineEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(volcengineRequest{Model: c.model, Input: []string{text}, EncodingFormat: "float"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(msg))
	}
	var out volcengineResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return out.Data[0].Embedding, nil
}

// IsVolcengineModel 检查是否为火山引擎模型
func IsVolcengineModel(model string) bool {
	return strings.HasPrefix(model, "doubao-embedding")
}

// dimFitter 向量长于 dim 时截取并重新归一化
type dimFitter struct {
	inner Embedder
	dim   int
}

func (d dimFitter) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := d.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if d.dim <= 0 || len(v) <= d.dim {
		return v, nil
	}
	return slicedNormL2(v, d.dim), nil
}

// slicedNormL2 截取前 dim 维并做L2归一化
func slicedNormL2(vec []float32, dim int) []float32 {
	if dim > len(vec) {
		dim = len(vec)
	}
	sliced := make([]float32, dim)
	copy(sliced, vec[:dim])

	var norm float64
	for _, v := range sliced {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range sliced {
			sliced[i] = float32(float64(sliced[i]) / norm)
		}
	}
	return sliced
}
