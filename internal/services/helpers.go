package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/charlesng35/gatekeep/pkg/errors"
	"github.com/charlesng35/gatekeep/pkg/logger"
	"github.com/charlesng35/gatekeep/pkg/validator"
)

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// validateInput runs the struct rules and converts failures to ErrValidation.
func validateInput(input any) error {
	err := validator.ValidateStruct(input)
	if err == nil {
		return nil
	}

	var failures validator.ValidationErrors
	if !errors.As(err, &failures) {
		return apperrors.ErrValidation.WithInternal(err)
	}

	fields := make([]apperrors.FieldError, 0, len(failures))
	for _, failure := range failures {
		fields = append(fields, apperrors.FieldError{Field: failure.Field, Message: failure.Message})
	}
	return apperrors.ErrValidation.WithMessage(failures.Error()).WithFields(fields)
}

// DateRange restricts a timestamp column to whole calendar days (UTC), both ends inclusive.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (r DateRange) bounds() (from, to *time.Time) {
	if r.From != nil {
		start := startOfDay(*r.From)
		from = &start
	}
	if r.To != nil {
		end := startOfDay(*r.To).AddDate(0, 0, 1)
		to = &end
	}
	return from, to
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// bestEffort logs a failed side effect that must not fail the caller.
func bestEffort(module, action string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	logger.WithModule(module).Warn(action+" failed", append(fields, zap.Error(err))...)
}

// firstNonBlank returns the first value that is not blank after trimming.
func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
