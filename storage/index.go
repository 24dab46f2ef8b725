package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"videoSlides/config"
	"videoSlides/core"
)

// SlideIndex 按转录文本检索幻灯片
type SlideIndex interface {
	// Upsert 替换该视频的全部记录，返回写入条数
	Upsert(ctx context.Context, videoID string, slides []core.SlideRecord) (int, error)
	// Search videoID 为空时跨视频检索
	Search(ctx context.Context, videoID, query string, topK int) ([]core.Hit, error)
	Close() error
}

const defaultTopK = 5

var ErrEmbeddingUnavailable = errors.New("embedding API not configured")

// Open 根据 store 选择后端，失败时退回内存索引
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) SlideIndex {
	if logger == nil {
		logger = slog.Default()
	}
	kind := strings.ToLower(strings.TrimSpace(cfg.Store))

	var (
		idx SlideIndex
		err error
	)
	switch kind {
	case "", "memory":
		return NewMemoryIndex()
	case "sqlite":
		idx, err = OpenSQLite(ctx, cfg.SQLitePath)
	case "pgvector", "milvus":
		if !cfg.HasValidAPI() {
			config.PrintConfigInstructions()
			err = ErrEmbeddingUnavailable
			break
		}
		emb := NewEmbedder(cfg)
		if kind == "pgvector" {
			idx, err = OpenPgVector(ctx, cfg.PostgresURL, emb, cfg.EmbeddingDim)
		} else {
			idx, err = OpenMilvus(ctx, cfg.MilvusAddr, cfg.MilvusCollection, emb, cfg.EmbeddingDim)
		}
	default:
		err = fmt.Errorf("unknown store %q", cfg.Store)
	}
	if err != nil {
		logger.Warn("slide index unavailable, falling back to memory store", "store", kind, "error", err)
		return NewMemoryIndex()
	}
	logger.Info("slide index ready", "store", kind)
	return idx
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// embedText 词频向量，L2归一化
func embedText(text string) map[string]float64 {
	m := map[string]float64{}
	for _, t := range tokenize(text) {
		m[t] += 1
	}
	var sum float64
	for _, v := range m {
		sum += v * v
	}
	if sum == 0 {
		return m
	}
	norm := math.Sqrt(sum)
	for k, v := range m {
		m[k] = v / norm
	}
	return m
}

func cosine(a, b map[string]float64) float64 {
	var dot float64
	for k, va := range a {
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	return dot
}

// rankByTerms 对记录打分排序，得分为0的不返回
func rankByTerms(records []core.SlideRecord, query string, topK int) []core.Hit {
	if topK <= 0 {
		topK = defaultTopK
	}
	qv := embedText(query)
	hits := make([]core.Hit, 0, len(records))
	for _, r := range records {
		score := cosine(qv, embedText(r.Transcript))
		if score <= 0 {
			continue
		}
		hits = append(hits, hitFrom(r, score))
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func hitFrom(r core.SlideRecord, score float64) core.Hit {
	return core.Hit{
		VideoID:    r.VideoID,
		Index:      r.Index,
		Page:       r.Page,
		Score:      score,
		Start:      r.Start,
		End:        r.End,
		Transcript: r.Transcript,
		PDFPath:    r.PDFPath,
	}
}

// indexable 只有非空转录才值得写入向量库
func indexable(slides []core.SlideRecord) []core.SlideRecord {
	out := make([]core.SlideRecord, 0, len(slides))
	for _, s := range slides {
		if strings.TrimSpace(s.Transcript) != "" {
			out = append(out, s)
		}
	}
	return out
}
