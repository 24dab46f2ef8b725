package core

import "errors"

// 错误分类
var (
	// ErrIncompatibleShape 两帧尺寸不一致，无法比较
	ErrIncompatibleShape = errors.New("incompatible image shape")
	// ErrTranscription 语音识别失败（只在内部使用，解析时被吞掉）
	ErrTranscription = errors.New("transcription failed")
	// ErrSourceRead 视频/音频源中途无法读取，按流结束处理
	ErrSourceRead = errors.New("source read failed")
	// ErrSinkWrite 文档无法写出，当前文件处理失败
	ErrSinkWrite = errors.New("document write failed")
	// ErrPageSealed 页面已封闭，不再接受绘制
	ErrPageSealed = errors.New("page already sealed")
)
