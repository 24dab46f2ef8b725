package document

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"videoSlides/core"
)

// Merger 按给定顺序拼接多个文档
type Merger interface {
	Merge(inputs []string, out string) error
}

// PDFMerger 使用 pdfcpu 合并
type PDFMerger struct{}

func (PDFMerger) Merge(inputs []string, out string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("merge: no input documents")
	}
	conf := model.NewDefaultConfiguration()
	if err := api.MergeCreateFile(inputs, out, false, conf); err != nil {
		return fmt.Errorf("%w: merge into %s: %v", core.ErrSinkWrite, out, err)
	}
	return nil
}

// PageCount 文档页数
func PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}
