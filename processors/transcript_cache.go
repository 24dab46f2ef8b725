package processors

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"videoSlides/core"
)

// TranscriptCache 以文件形式缓存转录结果，超过容量时淘汰最久未访问的条目
type TranscriptCache struct {
	dir     string
	maxSize int64

	mu      sync.Mutex
	entries map[string]*cacheEntry
	size    int64
	loaded  bool

	hits, misses, evictions int64
}

type cacheEntry struct {
	path       string
	size       int64
	lastAccess time.Time
}

type cachedTranscript struct {
	Text      string    `json:"text"`
	Origin    string    `json:"origin"`
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheStats 命中统计
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
	Size      int64 `json:"size"`
}

func NewTranscriptCache(dir string, maxSize int64) *TranscriptCache {
	return &TranscriptCache{dir: dir, maxSize: maxSize, entries: map[string]*cacheEntry{}}
}

// load 首次使用时扫描目录重建索引
func (c *TranscriptCache) load() {
	if c.loaded {
		return
	}
	c.loaded = true
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(f.Name(), ".json")
		c.entries[key] = &cacheEntry{path: filepath.Join(c.dir, f.Name()), size: info.Size(), lastAccess: info.ModTime()}
		c.size += info.Size()
	}
}

// Key 视频文件身份（路径、大小、修改时间）+ 片段范围 + 语言；源不可识别时返回false
func (c *TranscriptCache) Key(clip core.AudioClip, language string) (string, bool) {
	if clip.Origin == "" {
		return "", false
	}
	abs, err := filepath.Abs(clip.Origin)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", false
	}
	h := md5.New()
	fmt.Fprintf(h, "%s|%d|%d|%.3f|%.3f|%s", abs, info.Size(), info.ModTime().UnixNano(), clip.Start, clip.End, language)
	return fmt.Sprintf("%x", h.Sum(nil)), true
}

// Get 命中时返回文本
func (c *TranscriptCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}
	data, err := os.ReadFile(entry.path)
	var ct cachedTranscript
	if err == nil {
		err = json.Unmarshal(data, &ct)
	}
	if err != nil {
		c.removeLocked(key)
		c.misses++
		return "", false
	}
	entry.lastAccess = time.Now()
	c.hits++
	return ct.Text, true
}

// Set 写入一条结果
func (c *TranscriptCache) Set(key string, clip core.AudioClip, language, text string) error {
	data, err := json.Marshal(cachedTranscript{
		Text:      text,
		Origin:    clip.Origin,
		Start:     clip.Start,
		End:       clip.End,
		Language:  language,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()
	if c.maxSize > 0 && size > c.maxSize {
		return fmt.Errorf("transcript larger than cache limit")
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if _, ok := c.entries[key]; ok {
		c.removeLocked(key)
	}
	c.ensureSpaceLocked(size)

	path := filepath.Join(c.dir, key+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	c.entries[key] = &cacheEntry{path: path, size: size, lastAccess: time.Now()}
	c.size += size
	return nil
}

// ensureSpaceLocked 按最近访问时间淘汰
func (c *TranscriptCache) ensureSpaceLocked(required int64) {
	if c.maxSize <= 0 || c.size+required <= c.maxSize {
		return
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].lastAccess.Before(c.entries[keys[j]].lastAccess)
	})
	for _, k := range keys {
		if c.size+required <= c.maxSize {
			break
		}
		c.removeLocked(k)
		c.evictions++
	}
}

func (c *TranscriptCache) removeLocked(key string) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	os.Remove(entry.path)
	c.size -= entry.size
	delete(c.entries, key)
}

// Stats 当前统计
func (c *TranscriptCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions, Entries: len(c.entries), Size: c.size}
}

// CachingTranscriber 先查缓存，只缓存成功的结果，失败的片段下次运行会重试
type CachingTranscriber struct {
	Inner  core.Transcriber
	Cache  *TranscriptCache
	Logger *slog.Logger
}

func (t *CachingTranscriber) Transcribe(ctx context.Context, clip core.AudioClip, language string) (string, error) {
	key, ok := t.Cache.Key(clip, language)
	if !ok {
		return t.Inner.Transcribe(ctx, clip, language)
	}
	if text, hit := t.Cache.Get(key); hit {
		return text, nil
	}
	text, err := t.Inner.Transcribe(ctx, clip, language)
	if err != nil {
		return "", err
	}
	if err := t.Cache.Set(key, clip, language, text); err != nil && t.Logger != nil {
		t.Logger.Warn("failed to cache transcript", "error", err)
	}
	return text, nil
}
