package appointment

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/clinic-booking/internal/errs"
)

// Ten digit mobile number starting 6-9.
var phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

var phoneReplacer = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// NormalizePhone strips separators and a +91 or 0 prefix.
func NormalizePhone(p string) string {
	p = phoneReplacer.Replace(strings.TrimSpace(p))
	p = strings.TrimPrefix(p, "+91")
	if len(p) == 11 && p[0] == '0' {
		p = p[1:]
	}
	return p
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("reason", func(fl validator.FieldLevel) bool {
		return Reason(fl.Field().String()).Valid()
	})
	return v
}

// toValidationError reports the first failing field.
func toValidationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return errs.Validation("", err.Error())
	}

	fe := ve[0]
	return errs.Validation(fe.Field(), messageFor(fe))
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "phone":
		return "enter a valid 10-digit mobile number"
	case "reason":
		return "unknown appointment reason"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}
