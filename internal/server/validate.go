package server

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
)

type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

var loadValidator = sync.OnceValue(func() *requestValidator {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	// Registration only fails on a nil validator or translator.
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: validate, translator: trans}
})

// validateStruct returns one field violation per failed rule, in field order.
func validateStruct(v any) []*errdetails.BadRequest_FieldViolation {
	rv := loadValidator()
	err := rv.validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []*errdetails.BadRequest_FieldViolation{{Description: err.Error()}}
	}
	violations := make([]*errdetails.BadRequest_FieldViolation, 0, len(validationErrors))
	for _, e := range validationErrors {
		violations = append(violations, &errdetails.BadRequest_FieldViolation{
			Field:       e.Field(),
			Description: e.Translate(rv.translator),
		})
	}
	return violations
}
