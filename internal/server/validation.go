package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxTextBytes bounds one annotation's text.
const maxTextBytes = 64 * 1024

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxTextBytes
	})
}

// validateRequest checks the struct tags of a decoded request body and
// reports the first failing field.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return badRequest(err)
	}

	fe := fieldErrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		return badRequestCode(fmt.Errorf("%s is required", field), ErrCodeMissingRequired)
	case "min":
		msg = fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "maxbytes":
		msg = fmt.Sprintf("%s is too long", field)
	case "nefield":
		msg = fmt.Sprintf("%s must differ from %s", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return badRequestCode(errors.New(msg), fieldErrorCode(field))
}

func fieldErrorCode(field string) int {
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	switch field {
	case "path", "old_path", "new_path":
		return ErrCodeInvalidPath
	case "line", "lines":
		return ErrCodeInvalidLine
	case "text":
		return ErrCodeInvalidText
	case "changes", "edit":
		return ErrCodeInvalidEdit
	case "patch":
		return ErrCodeInvalidPatch
	default:
		return ErrCodeInvalidArgument
	}
}
