package pipeline

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"autovideo/internal/domain"
)

// Describe renders a stage failure as "{category}: {detail}".
func Describe(err error) string {
	if err == nil {
		return ""
	}
	detail := strings.TrimSpace(err.Error())
	if detail == "" {
		detail = "unknown error"
	}
	return Category(err) + ": " + detail
}

// Category classifies a stage failure.
func Category(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.CategoryTimeout
	}
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) && stageErr.Category != "" {
		return stageErr.Category
	}
	if errors.Is(err, context.Canceled) {
		return domain.CategoryCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.CategoryTimeout
		}
		return domain.CategoryNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return domain.CategoryNetwork
	}
	return domain.CategoryGeneric
}
