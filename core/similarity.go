package core

import "fmt"

// DefaultSimilarityThreshold 归一化MSE低于该值视为同一张幻灯片
const DefaultSimilarityThreshold = 0.1

// Dissimilarity 计算两帧的均方误差，像素值先归一化到[0,1]
func Dissimilarity(a, b *Image) (float64, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("%w: nil image", ErrIncompatibleShape)
	}
	if !a.SameShape(b) || len(a.Pix) != len(b.Pix) {
		return 0, fmt.Errorf("%w: %dx%dx%d vs %dx%dx%d", ErrIncompatibleShape,
			a.Width, a.Height, a.Channels, b.Width, b.Height, b.Channels)
	}
	if len(a.Pix) == 0 {
		return 0, nil
	}
	var sum float64
	for i := range a.Pix {
		d := (float64(a.Pix[i]) - float64(b.Pix[i])) / 255.0
		sum += d * d
	}
	return sum / float64(len(a.Pix)), nil
}

// IsSame 严格小于阈值才算匹配，等于阈值不算
func IsSame(a, b *Image, threshold float64) (bool, error) {
	d, err := Dissimilarity(a, b)
	if err != nil {
		return false, err
	}
	return d < threshold, nil
}
