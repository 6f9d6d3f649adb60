package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/sbu-ledger/ledger"
)

// newValidator returns a validator with the ledger-specific tags registered:
//
//	ymd:      a YYYY-MM-DD calendar date
//	category: one of the four expense categories
func newValidator() *validator.Validate {
	v := validator.New()

	// Report the JSON name in errors, not the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		_, err := ledger.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return ledger.Category(fl.Field().String()).Valid()
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// Both failures wrap ledger.ErrValidation.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", ledger.ErrValidation, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return &fieldErrors{fields: describeValidation(err)}
	}
	return nil
}

// fieldErrors is a validation failure with per-field messages.
type fieldErrors struct {
	fields map[string]string
}

func (e *fieldErrors) Error() string {
	parts := make([]string, 0, len(e.fields))
	for f, msg := range e.fields {
		parts = append(parts, f+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *fieldErrors) Unwrap() error { return ledger.ErrValidation }

func describeValidation(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["body"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = describeTag(fe)
	}
	return out
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "ymd":
		return "must be a date in YYYY-MM-DD format"
	case "category":
		names := make([]string, 0, 4)
		for _, c := range ledger.Categories() {
			names = append(names, string(c))
		}
		return "must be one of " + strings.Join(names, ", ")
	}
	return "failed " + fe.Tag() + " check"
}
