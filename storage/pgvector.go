package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"videoSlides/core"
)

// PgVectorIndex PostgreSQL + pgvector，按余弦距离检索
type PgVectorIndex struct {
	mu   sync.Mutex
	conn *pgx.Conn
	emb  Embedder
	dim  int
}

// OpenPgVector 连接数据库并确保扩展和表存在
func OpenPgVector(ctx context.Context, dbURL string, emb Embedder, dim int) (*PgVectorIndex, error) {
	if dim <= 0 {
		dim = 1536
	}
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PgVectorIndex{conn: conn, emb: emb, dim: dim}
	if err := s.ensureTable(ctx); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *PgVectorIndex) ensureTable(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS lecture_slides (
			id SERIAL PRIMARY KEY,
			video_id VARCHAR(255) NOT NULL,
			slide_index INT NOT NULL,
			page INT NOT NULL,
			start_time FLOAT NOT NULL,
			end_time FLOAT NOT NULL,
			transcript TEXT NOT NULL,
			pdf_path VARCHAR(1000),
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(video_id, slide_index)
		)`, s.dim)
	if _, err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create lecture_slides table: %w", err)
	}
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_lecture_slides_video_id ON lecture_slides(video_id)",
		"CREATE INDEX IF NOT EXISTS idx_lecture_slides_embedding ON lecture_slides USING hnsw (embedding vector_cosine_ops)",
	}
	for _, q := range indexes {
		if _, err := s.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Upsert 先删除该视频旧记录；单条向量化失败只跳过该条
func (s *PgVectorIndex) Upsert(ctx context.Context, videoID string, slides []core.SlideRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM lecture_slides WHERE video_id = $1", videoID); err != nil {
		return 0, fmt.Errorf("clear slides: %w", err)
	}
	count := 0
	for _, sl := range indexable(slides) {
		embedding, err := s.emb.Embed(ctx, strings.ToLower(sl.Transcript))
		if err != nil {
			continue
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO lecture_slides (video_id, slide_index, page, start_time, end_time, transcript, pdf_path, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			videoID, sl.Index, sl.Page, sl.Start, sl.End, sl.Transcript, sl.PDFPath, pgvector.NewVector(embedding))
		if err != nil {
			return count, fmt.Errorf("insert slide %d: %w", sl.Index, err)
		}
		count++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PgVectorIndex) Search(ctx context.Context, videoID, query string, topK int) ([]core.Hit, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	queryEmbedding, err := s.emb.Embed(ctx, strings.ToLower(query))
	if err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(queryEmbedding)

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.conn.Query(ctx, `
		SELECT video_id, slide_index, page, start_time, end_time, transcript, COALESCE(pdf_path, ''),
		       1 - (embedding <=> $1) AS similarity
		FROM lecture_slides
		WHERE $2 = '' OR video_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3`, vec, videoID, topK)
	if err != nil {
		return nil, fmt.Errorf("search slides: %w", err)
	}
	defer rows.Close()

	var hits []core.Hit
	for rows.Next() {
		var h core.Hit
		if err := rows.Scan(&h.VideoID, &h.Index, &h.Page, &h.Start, &h.End, &h.Transcript, &h.PDFPath, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PgVectorIndex) Close() error {
	return s.conn.Close(context.Background())
}
