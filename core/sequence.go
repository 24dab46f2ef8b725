package core

// SegmentSequence 按时间顺序追加的片段序列，只与最后一个片段去重
type SegmentSequence struct {
	threshold float64
	segments  []*Segment
}

// NewSegmentSequence 阈值<=0时使用默认值
func NewSegmentSequence(threshold float64) *SegmentSequence {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &SegmentSequence{threshold: threshold}
}

// Threshold 去重阈值
func (q *SegmentSequence) Threshold() float64 { return q.threshold }

// Len 片段数量
func (q *SegmentSequence) Len() int { return len(q.segments) }

// At 按下标取片段，负数从末尾计数
func (q *SegmentSequence) At(i int) (*Segment, bool) {
	if i < 0 {
		i += len(q.segments)
	}
	if i < 0 || i >= len(q.segments) {
		return nil, false
	}
	return q.segments[i], true
}

// Last 最后一个片段
func (q *SegmentSequence) Last() (*Segment, bool) { return q.At(-1) }

// MatchesLast 序列为空时返回false
func (q *SegmentSequence) MatchesLast(img *Image) (bool, error) {
	last, ok := q.Last()
	if !ok {
		return false, nil
	}
	return last.HasImage(img, q.threshold)
}

// Append 与最后一个片段相同则不追加并返回false
func (q *SegmentSequence) Append(img *Image) (bool, error) {
	same, err := q.MatchesLast(img)
	if err != nil {
		return false, err
	}
	if same {
		return false, nil
	}
	q.segments = append(q.segments, NewSegment(img))
	return true, nil
}

// Segments 返回片段切片的副本
func (q *SegmentSequence) Segments() []*Segment {
	out := make([]*Segment, len(q.segments))
	copy(out, q.segments)
	return out
}
