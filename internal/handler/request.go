package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// createConcertRequest is the body of POST /concerts.
type createConcertRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	TotalSeats  int    `json:"totalSeats" validate:"min=1,max=50000"`
}

func (r *createConcertRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

// reserveSeatRequest is the body of the reserve and cancel endpoints.
type reserveSeatRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (r *reserveSeatRequest) normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
}

type normalizer interface {
	normalize()
}

// bindAndValidate decodes the JSON body strictly (unknown fields are
// rejected), trims string fields and runs struct validation.  It returns
// the list of client-facing messages; an empty list means the request is
// valid.
func bindAndValidate(c echo.Context, dst normalizer) []string {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return []string{decodeMessage(err)}
	}
	dst.normalize()
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []string{err.Error()}
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return msgs
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " should not be empty"
	case "min":
		return fmt.Sprintf("%s must not be less than %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must not be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		switch typeErr.Type.Kind() {
		case reflect.Int:
			return typeErr.Field + " must be an integer number"
		case reflect.String:
			return typeErr.Field + " must be a string"
		}
		return typeErr.Field + " has an invalid type"
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return fmt.Sprintf("property %s should not exist", strings.Trim(field, `"`))
	}
	return "invalid request body"
}
