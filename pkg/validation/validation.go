// Package validation builds the shared validator with English error messages.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
)

// Validator wraps validator.Validate with a translator for field messages.
type Validator struct {
	*validator.Validate
	translator ut.Translator
}

// New returns a validator that reports fields by their json tag.
func New() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}
	return &Validator{Validate: validate, translator: trans}, nil
}

// MustNew is New for process start-up.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Fields translates validation errors to a field -> message map. It returns
// nil for errors that are not validator.ValidationErrors.
func (v *Validator) Fields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe)] = fe.Translate(v.translator)
	}
	return out
}

// Check validates s and converts failures into a VALIDATION_ERROR with the
// given message, carrying the translated field messages as details.
func (v *Validator) Check(s interface{}, message string) error {
	if err := v.Validate.Struct(s); err != nil {
		appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
		if fields := v.Fields(err); fields != nil {
			appErr.Details = fields
		}
		return appErr
	}
	return nil
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.IndexByte(ns, '.'); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}
