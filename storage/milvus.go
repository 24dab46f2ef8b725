package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"videoSlides/core"
)

// MilvusIndex HNSW + COSINE
type MilvusIndex struct {
	mc   client.Client
	coll string
	dim  int
	emb  Embedder
}

// OpenMilvus 连接并确保集合、索引已加载
func OpenMilvus(ctx context.Context, addr, coll string, emb Embedder, dim int) (*MilvusIndex, error) {
	if addr == "" {
		addr = "localhost:19530"
	}
	if coll == "" {
		coll = "lecture_slides"
	}
	if dim <= 0 {
		dim = 1536
	}
	mc, err := client.NewClient(ctx, client.Config{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	s := &MilvusIndex{mc: mc, coll: coll, dim: dim, emb: emb}
	if err := s.ensureSchemaAndIndex(ctx); err != nil {
		mc.Close()
		return nil, err
	}
	return s, nil
}

func (s *MilvusIndex) ensureSchemaAndIndex(ctx context.Context) error {
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema().WithName(s.coll).WithDescription("lecture slide transcripts")
		schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
		schema.WithField(entity.NewField().WithName("slide_index").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("page").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("start").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("end").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("transcript").WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192))
		schema.WithField(entity.NewField().WithName("pdf_path").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func videoFilter(videoID string) string {
	return fmt.Sprintf("video_id == \"%s\"", strings.ReplaceAll(videoID, "\"", "\\\""))
}

func (s *MilvusIndex) Upsert(ctx context.Context, videoID string, slides []core.SlideRecord) (int, error) {
	if err := s.mc.Delete(ctx, s.coll, "", videoFilter(videoID)); err != nil {
		return 0, fmt.Errorf("clear slides: %w", err)
	}
	var (
		videoIDs    []string
		indexes     []int64
		pages       []int64
		starts      []float64
		ends        []float64
		transcripts []string
		pdfPaths    []string
		vectors     [][]float32
	)
	for _, sl := range indexable(slides) {
		v, err := s.emb.Embed(ctx, strings.ToLower(sl.Transcript))
		if err != nil {
			continue
		}
		videoIDs = append(videoIDs, videoID)
		indexes = append(indexes, int64(sl.Index))
		pages = append(pages, int64(sl.Page))
		starts = append(starts, sl.Start)
		ends = append(ends, sl.End)
		transcripts = append(transcripts, sl.Transcript)
		pdfPaths = append(pdfPaths, sl.PDFPath)
		vectors = append(vectors, v)
	}
	if len(vectors) == 0 {
		return 0, nil
	}
	_, err := s.mc.Insert(ctx, s.coll, "",
		entity.NewColumnVarChar("video_id", videoIDs),
		entity.NewColumnInt64("slide_index", indexes),
		entity.NewColumnInt64("page", pages),
		entity.NewColumnDouble("start", starts),
		entity.NewColumnDouble("end", ends),
		entity.NewColumnVarChar("transcript", transcripts),
		entity.NewColumnVarChar("pdf_path", pdfPaths),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	)
	if err != nil {
		return 0, fmt.Errorf("insert slides: %w", err)
	}
	return len(vectors), nil
}

func (s *MilvusIndex) Search(ctx context.Context, videoID, query string, topK int) ([]core.Hit, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	v, err := s.emb.Embed(ctx, strings.ToLower(query))
	if err != nil {
		return nil, err
	}
	sp, err := entity.NewIndexHNSWSearchParam(74)
	if err != nil {
		return nil, err
	}
	filter := ""
	if videoID != "" {
		filter = videoFilter(videoID)
	}
	res, err := s.mc.Search(ctx, s.coll, []string{}, filter,
		[]string{"video_id", "slide_index", "page", "start", "end", "transcript", "pdf_path"},
		[]entity.Vector{entity.FloatVector(v)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search slides: %w", err)
	}

	var hits []core.Hit
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			h := core.Hit{Score: float64(r.Scores[i])}
			h.VideoID = varcharAt(cols["video_id"], i)
			h.Transcript = varcharAt(cols["transcript"], i)
			h.PDFPath = varcharAt(cols["pdf_path"], i)
			h.Index = int(int64At(cols["slide_index"], i))
			h.Page = int(int64At(cols["page"], i))
			h.Start = doubleAt(cols["start"], i)
			h.End = doubleAt(cols["end"], i)
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func varcharAt(c entity.Column, i int) string {
	if col, ok := c.(*entity.ColumnVarChar); ok {
		if data := col.Data(); i < len(data) {
			return data[i]
		}
	}
	return ""
}

func int64At(c entity.Column, i int) int64 {
	if col, ok := c.(*entity.ColumnInt64); ok {
		if data := col.Data(); i < len(data) {
			return data[i]
		}
	}
	return 0
}

func doubleAt(c entity.Column, i int) float64 {
	if col, ok := c.(*entity.ColumnDouble); ok {
		if data := col.Data(); i < len(data) {
			return data[i]
		}
	}
	return 0
}

func (s *MilvusIndex) Close() error { return s.mc.Close() }
