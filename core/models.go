package core

import (
	"time"
)

// ========== 视频与幻灯片记录 ==========

// VideoInfo ffprobe 探测到的基本信息
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	HasAudio bool    `json:"has_audio"`
}

// SlideRecord 渲染后的一页幻灯片，写入清单和检索索引
type SlideRecord struct {
	VideoID    string  `json:"video_id"`
	Index      int     `json:"index"`
	Page       int     `json:"page"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Transcript string  `json:"transcript"`
	PDFPath    string  `json:"pdf_path,omitempty"`
}

// Hit 检索命中
type Hit struct {
	VideoID    string  `json:"video_id"`
	Index      int     `json:"index"`
	Page       int     `json:"page"`
	Score      float64 `json:"score"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Transcript string  `json:"transcript"`
	PDFPath    string  `json:"pdf_path,omitempty"`
}

// ========== 处理结果 ==========

// DocumentResult 单个视频处理结果
type DocumentResult struct {
	JobID     string        `json:"job_id"`
	VideoPath string        `json:"video_path"`
	VideoID   string        `json:"video_id"`
	PDFPath   string        `json:"pdf_path,omitempty"`
	Manifest  string        `json:"manifest_path,omitempty"`
	Slides    []SlideRecord `json:"slides"`
	Elapsed   time.Duration `json:"elapsed"`
}

// FileFailure 批处理中失败的文件，不影响其它文件
type FileFailure struct {
	VideoPath string `json:"video_path"`
	Error     string `json:"error"`
}

// BatchReport 目录批处理结果
type BatchReport struct {
	Dir        string           `json:"dir"`
	Documents  []DocumentResult `json:"documents"`
	Failures   []FileFailure    `json:"failures,omitempty"`
	Empty      []string         `json:"empty,omitempty"` // 没有任何幻灯片的视频，不参与合并
	MergedPath string           `json:"merged_path,omitempty"`
	MergeOrder []string         `json:"merge_order,omitempty"`
	StartTime  time.Time        `json:"start_time"`
	EndTime    time.Time        `json:"end_time"`
}
