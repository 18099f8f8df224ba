// Package pdfdoc wraps the pdfcpu calls the portal needs for uploaded papers.
package pdfdoc

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Cloud Functions have a read-only home directory.
	api.DisableConfigDir()
}

// Config returns the relaxed pdfcpu configuration used for uploads.
func Config() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// Inspect validates data as a PDF and returns its page count.
func Inspect(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty file")
	}
	cfg := Config()
	if err := api.Validate(bytes.NewReader(data), cfg); err != nil {
		return 0, fmt.Errorf("not a valid PDF: %w", err)
	}
	pageCount, err := api.PageCount(bytes.NewReader(data), cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if pageCount == 0 {
		return 0, fmt.Errorf("PDF has no pages")
	}
	return pageCount, nil
}
