package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Validator checks `validate` struct tags.  It satisfies echo.Validator so
// handlers can call c.Validate, and backs ValidateStruct for the services.
//
// Besides the built-in tags it registers:
//
//	username – starts with a letter; letters, digits and underscores only
//	password – the strength rules of ValidatePassword
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a Validator with the custom account rules.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldLabel)
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidatePassword(fl.Field().String()) == nil
	})
	return &Validator{v: v}
}

var defaultValidator = NewValidator()

// ValidateStruct checks s with the shared Validator.
func ValidateStruct(s any) error {
	return defaultValidator.Validate(s)
}

// ValidateVar checks a single value against tag with the shared Validator.
// name labels the value in the returned message.
func ValidateVar(name string, value any, tag string) error {
	err := defaultValidator.v.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return errors.New(describe(name, verrs[0]))
	}
	return err
}

// Validate reports the first failing field as a readable error.
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return errors.New(describe(verrs[0].Field(), verrs[0]))
	}
	return err
}

func describe(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " is not a valid address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be less than %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must not be greater than %s", name, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s does not match", name)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "username":
		return name + " must start with a letter and contain only letters, digits and underscores"
	case "password":
		if s, ok := fe.Value().(string); ok {
			if err := ValidatePassword(s); err != nil {
				return err.Error()
			}
		}
		return name + " is too weak"
	}
	return fmt.Sprintf("%s failed the %q check", name, fe.Tag())
}

// fieldLabel names a field by its json key, or by its Go name in
// snake_case for structs without json tags.
func fieldLabel(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	var b strings.Builder
	for i, r := range f.Name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
