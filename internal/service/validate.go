package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/model"
)

var (
	cpfPattern      = regexp.MustCompile(`^\d{3}\.\d{3}\.\d{3}-\d{2}$`)
	phonePattern    = regexp.MustCompile(`^\(\d{2}\) \d{4,5}-\d{4}$`)
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
)

// validate checks form structs. Field errors are reported under the form
// tag so handlers can attach them to inputs.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "cpf", func(fl validator.FieldLevel) bool {
		return cpfPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "usertype", func(fl validator.FieldLevel) bool {
		return model.UserType(fl.Field().String()).IsValid()
	})
	mustRegister(v, "permission", func(fl validator.FieldLevel) bool {
		return model.PermissionLevel(fl.Field().String()).IsValid()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// checkStruct runs the validator and turns its errors into an apperr
// validation failure.
func checkStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}
	return apperr.Invalid(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid e-mail address"
	case "min":
		return fmt.Sprintf("must have at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s characters", fe.Param())
	case "eqfield":
		return "the two password fields didn't match"
	case "eq":
		return "you must accept the terms of use"
	case "cpf":
		return "CPF must be in the format 000.000.000-00"
	case "phone":
		return "phone must be in the format (00) 00000-0000"
	case "username":
		return "use only letters, digits and @ . + - _"
	case "usertype":
		return "select a valid user type"
	case "permission":
		return "select a valid permission level"
	}
	return "invalid value"
}

// duplicateField extracts the field name stores put in front of ErrDuplicate
func duplicateField(err error) string {
	field, _, ok := strings.Cut(err.Error(), ":")
	if !ok {
		return "record"
	}
	return field
}
