package handlers

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/evergogreen/evergogreen/internal/validation"
)

// BindJSON binds and validates a flat JSON request body. On failure it
// responds 400 with every violated field reported once and returns false.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		RespondFieldErrors(ctx, bindErrors(err, out))

		return false
	}

	return true
}

func bindErrors(err error, out interface{}) []FieldError {
	rootType := baseStructType(out)

	var validatorErrs validator.ValidationErrors

	if errors.As(err, &validatorErrs) {
		fields := make([]FieldError, 0, len(validatorErrs))
		seen := make(map[string]bool, len(validatorErrs))

		for _, fieldErr := range validatorErrs {
			field := jsonName(rootType, fieldErr.StructField())

			// one message per field; tags run in declaration order, so the
			// first violation is the most fundamental one
			if seen[field] {
				continue
			}

			seen[field] = true
			fields = append(fields, FieldError{
				Field:   field,
				Message: validation.Message(field, fieldErr.Tag()),
			})
		}

		return fields
	}

	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &typeErr) {
		return []FieldError{
			{Field: typeErr.Field, Message: validation.Message(typeErr.Field, "type")},
		}
	}

	// bad JSON syntax, empty body, oversized body, ...
	return []FieldError{
		{Field: "body", Message: "Invalid request body"},
	}
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// jsonName resolves a Go struct field to its json tag name. Request
// bodies in this API are flat, so no path walking is needed.
func jsonName(t reflect.Type, goField string) string {
	if t == nil {
		return goField
	}

	sf, ok := t.FieldByName(goField)

	if !ok {
		return goField
	}

	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")

	if name == "" || name == "-" {
		return goField
	}

	return name
}
