package core

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Image 固定尺寸的RGB栅格帧，按行优先交错存储
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewImage 创建全零图像
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Channels: 3, Pix: make([]uint8, width*height*3)}
}

// FromImage 将任意 image.Image 转为RGB帧
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	rgba, ok := src.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}
	rb := rgba.Bounds()
	i := 0
	for y := 0; y < out.Height; y++ {
		row := rgba.Pix[rgba.PixOffset(rb.Min.X, rb.Min.Y+y):]
		for x := 0; x < out.Width; x++ {
			o := x * 4
			out.Pix[i] = row[o]
			out.Pix[i+1] = row[o+1]
			out.Pix[i+2] = row[o+2]
			i += 3
		}
	}
	return out
}

// ToRGBA 转回 image.RGBA，用于编码和绘制
func (im *Image) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, im.Width, im.Height))
	i := 0
	for y := 0; y < im.Height; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < im.Width; x++ {
			o := x * 4
			row[o] = im.Pix[i]
			row[o+1] = im.Pix[i+1]
			row[o+2] = im.Pix[i+2]
			row[o+3] = 0xff
			i += 3
		}
	}
	return dst
}

// Resize 缩放到指定尺寸；尺寸相同时返回副本
func (im *Image) Resize(width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	if width == im.Width && height == im.Height {
		return im.Clone(), nil
	}
	src := im.ToRGBA()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return FromImage(dst), nil
}

// Clone 深拷贝
func (im *Image) Clone() *Image {
	pix := make([]uint8, len(im.Pix))
	copy(pix, im.Pix)
	return &Image{Width: im.Width, Height: im.Height, Channels: im.Channels, Pix: pix}
}

// SameShape 判断两帧尺寸和通道数是否一致
func (im *Image) SameShape(other *Image) bool {
	return im.Width == other.Width && im.Height == other.Height && im.Channels == other.Channels
}
