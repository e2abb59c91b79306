package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 8 << 20

var (
	validateOnce sync.Once           //nolint:gochecknoglobals // shared validator
	validate     *validator.Validate //nolint:gochecknoglobals // shared validator
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// formatValidationError turns validator errors into per-field messages.
func formatValidationError(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": "invalid request"}
	}
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			out[e.Field()] = "required"
		case "min":
			out[e.Field()] = fmt.Sprintf("must be at least %s", e.Param())
		case "max":
			out[e.Field()] = fmt.Sprintf("must be at most %s", e.Param())
		default:
			out[e.Field()] = "invalid value"
		}
	}
	return out
}

// decodeAndValidate decodes a JSON body into req and validates it. On
// failure the 400 response has been written and false is returned.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return false
	}
	if err := getValidator().Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "validation_failed",
			Message: ErrValidation.Error(),
			Fields:  formatValidationError(err),
		})
		return false
	}
	return true
}
