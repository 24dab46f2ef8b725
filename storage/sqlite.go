package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"videoSlides/core"
)

const slidesSchema = `
CREATE TABLE IF NOT EXISTS slides (
	video_id   TEXT    NOT NULL,
	idx        INTEGER NOT NULL,
	page       INTEGER NOT NULL,
	start_time REAL    NOT NULL,
	end_time   REAL    NOT NULL,
	transcript TEXT    NOT NULL DEFAULT '',
	pdf_path   TEXT    NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (video_id, idx)
);
CREATE INDEX IF NOT EXISTS idx_slides_video ON slides(video_id);
`

// SQLiteIndex 单文件持久化，检索在读出的行上做词频余弦
type SQLiteIndex struct {
	db *sql.DB
}

// OpenSQLite 打开（必要时创建）数据库并建表
func OpenSQLite(ctx context.Context, path string) (*SQLiteIndex, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, slidesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create slides table: %w", err)
	}
	return &SQLiteIndex{db: db}, nil
}

func (s *SQLiteIndex) Upsert(ctx context.Context, videoID string, slides []core.SlideRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM slides WHERE video_id = ?", videoID); err != nil {
		return 0, fmt.Errorf("clear slides: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO slides (video_id, idx, page, start_time, end_time, transcript, pdf_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, sl := range slides {
		if _, err := stmt.ExecContext(ctx, videoID, sl.Index, sl.Page, sl.Start, sl.End, sl.Transcript, sl.PDFPath); err != nil {
			return 0, fmt.Errorf("insert slide %d: %w", sl.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(slides), nil
}

func (s *SQLiteIndex) Search(ctx context.Context, videoID, query string, topK int) ([]core.Hit, error) {
	q := "SELECT video_id, idx, page, start_time, end_time, transcript, pdf_path FROM slides"
	var args []any
	if videoID != "" {
		q += " WHERE video_id = ?"
		args = append(args, videoID)
	}
	q += " ORDER BY video_id, idx"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query slides: %w", err)
	}
	defer rows.Close()

	var records []core.SlideRecord
	for rows.Next() {
		var r core.SlideRecord
		if err := rows.Scan(&r.VideoID, &r.Index, &r.Page, &r.Start, &r.End, &r.Transcript, &r.PDFPath); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rankByTerms(records, query, topK), nil
}

// Count 某个视频的记录数
func (s *SQLiteIndex) Count(ctx context.Context, videoID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM slides WHERE video_id = ?", videoID).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) Close() error { return s.db.Close() }
