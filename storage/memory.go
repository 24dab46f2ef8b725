package storage

import (
	"context"
	"sync"

	"videoSlides/core"
)

// MemoryIndex 进程内索引，同时作为其它后端的兜底
type MemoryIndex struct {
	mu     sync.RWMutex
	slides map[string][]core.SlideRecord // videoID -> slides
	order  []string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{slides: map[string][]core.SlideRecord{}}
}

func (m *MemoryIndex) Upsert(ctx context.Context, videoID string, slides []core.SlideRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slides[videoID]; !ok {
		m.order = append(m.order, videoID)
	}
	cp := make([]core.SlideRecord, len(slides))
	for i, s := range slides {
		s.VideoID = videoID
		cp[i] = s
	}
	m.slides[videoID] = cp
	return len(cp), nil
}

func (m *MemoryIndex) Search(ctx context.Context, videoID, query string, topK int) ([]core.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []core.SlideRecord
	if videoID != "" {
		records = m.slides[videoID]
	} else {
		for _, id := range m.order {
			records = append(records, m.slides[id]...)
		}
	}
	return rankByTerms(records, query, topK), nil
}

func (m *MemoryIndex) Close() error { return nil }
