package handlers

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/charlesng35/gatekeep/internal/services"
	appErrors "github.com/charlesng35/gatekeep/pkg/errors"
	"github.com/charlesng35/gatekeep/pkg/response"
	appValidator "github.com/charlesng35/gatekeep/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if !bindJSON(c, dest) {
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, validationError(err))
		return false
	}

	return true
}

// bindJSON decodes the body without running validation; services validate their own inputs.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		if errors.Is(err, io.EOF) {
			response.Error(c, appErrors.NewBadRequest("Request body is required"))
			return false
		}
		response.Error(c, appErrors.NewBadRequest("Invalid JSON payload"))
		return false
	}
	return true
}

// bindBody accepts JSON or form encodings. Multipart bodies are bound from their form fields.
func bindBody[T any](c *gin.Context, dest *T) bool {
	if !isMultipart(c) && c.ContentType() != binding.MIMEPOSTForm {
		return bindJSON(c, dest)
	}
	if err := c.ShouldBind(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("Invalid form payload"))
		return false
	}
	return true
}

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == binding.MIMEMultipartPOSTForm
}

func validationError(err error) *appErrors.AppError {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return appErrors.ErrValidation.WithInternal(err)
	}

	fields := make([]appErrors.FieldError, 0, len(failures))
	for _, failure := range failures {
		fields = append(fields, appErrors.FieldError{Field: failure.Field, Message: failure.Message})
	}
	return appErrors.ErrValidation.WithMessage(failures.Error()).WithFields(fields)
}

func parseBoolQuery(c *gin.Context, key string) (*bool, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, appErrors.NewValidation(key, key+" must be true or false")
	}
	return &parsed, nil
}

// parseDateRange reads <key>From and <key>To as RFC 3339 timestamps or YYYY-MM-DD dates.
func parseDateRange(c *gin.Context, key string) (services.DateRange, error) {
	var r services.DateRange
	for suffix, dest := range map[string]**time.Time{"From": &r.From, "To": &r.To} {
		name := key + suffix
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		parsed, err := parseDate(raw)
		if err != nil {
			return r, appErrors.NewValidation(name, name+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		}
		*dest = &parsed
	}
	return r, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}
