// Package serializers turns request bodies into validated payloads, applies them
// to models and renders models back into response views.
package serializers

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// NonFieldErrors is the key for errors not tied to one field.
const NonFieldErrors = "non_field_errors"

// FieldErrors maps a JSON field path, like "tags[0].name", to its message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator. Field names in errors are JSON names.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// notblank rejects whitespace-only strings.
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		// urlorempty accepts "" or a URL.
		_ = validate.RegisterValidation("urlorempty", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || validate.Var(s, "url") == nil
		})
	})
	return validate
}

// ValidateStruct returns FieldErrors, or nil when s is valid.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe)] = translateError(fe)
	}
	return out
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

var errorMessages = map[string]string{
	"required":   "This field is required.",
	"notblank":   "This field may not be blank.",
	"email":      "Enter a valid email address.",
	"url":        "Enter a valid URL.",
	"urlorempty": "Enter a valid URL.",
}

var errorMessagesWithParam = map[string]string{
	"gte": "Ensure this value is greater than or equal to %s.",
	"gt":  "Ensure this value is greater than %s.",
	"lte": "Ensure this value is less than or equal to %s.",
	"lt":  "Ensure this value is less than %s.",
}

func translateError(fe validator.FieldError) string {
	if msg, ok := errorMessages[fe.Tag()]; ok {
		return msg
	}
	if tmpl, ok := errorMessagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Param())
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "max":
		if isString {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "min":
		if isString {
			return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed %s validation.", fe.Tag())
	}
}
