package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// messages maps "<jsonField>.<tag>" to the text returned to the client.
var messages = map[string]string{
	"title.notblank":       "Title is required",
	"title.max":            "Title must be at most 255 characters",
	"genre.notblank":       "Genre is required",
	"genre.max":            "Genre must be at most 100 characters",
	"duration.required":    "Duration is required",
	"duration.min":         "Duration cannot be negative",
	"duration.max":         "Duration is too large",
	"rating.min":           "Rating must be between 0 and 10",
	"rating.max":           "Rating must be between 0 and 10",
	"releaseYear.required": "Release year is required",
	"releaseYear.min":      "Release year cannot be negative",
	"releaseYear.max":      "Release year is too large",
	"movieId.required":     "Movie ID is required",
	"theater.notblank":     "Theater is required",
	"theater.max":          "Theater must be at most 255 characters",
	"startTime.required":   "Start time is required",
	"endTime.required":     "End time is required",
	"price.required":       "Price is required",
	"price.gt":             "Price must be greater than 0",
	"price.lte":            "Price must be at most 99999999.99",
	"showtimeId.required":  "Showtime ID is required",
	"seatNumber.required":  "Seat number is required",
	"seatNumber.gt":        "Seat number must be positive",
	"seatNumber.max":       "Seat number is too large",
	"userId.notblank":      "User ID is required",
	"userId.max":           "User ID must be at most 255 characters",
}

// FieldErrors is a failed request validation keyed by JSON field name.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+": "+v)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator adapts go-playground/validator to echo.Validator and reports
// failures as FieldErrors.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator that names fields after their JSON tags
// and understands the "notblank" tag.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

// Validate checks the struct tags of i. Tag failures come back as FieldErrors
// holding the first failure per field; any other error is returned as is.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		msg, ok := messages[field+"."+fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		out[field] = msg
	}
	return out
}
