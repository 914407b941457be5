// Package validation wraps a process-wide validator with English messages
// and the domain tags used by requests and settings.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"dailytales/internal/catalog"
)

// Error is the first failing field of a struct.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Svc

	timeOfDay = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)
	digits    = regexp.MustCompile(`^\d+$`)
)

// Get returns the singleton, initializing it on first use.
func Get() *Svc {
	once.Do(func() {
		loc := en.New()
		uni := ut.New(loc, loc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if i := strings.Index(tag, ","); i >= 0 {
				tag = tag[:i]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		register(v, trans, "voice", "{0} must be one of male_arabic, female_arabic", func(fl validator.FieldLevel) bool {
			return catalog.ValidVoice(fl.Field().String())
		})
		register(v, trans, "duration", "{0} must be 15, 30 or 60", func(fl validator.FieldLevel) bool {
			return catalog.ValidDuration(int(fl.Field().Int()))
		})
		register(v, trans, "timeofday", "{0} must be HH:MM or HH:MM:SS", func(fl validator.FieldLevel) bool {
			return ValidTimeOfDay(fl.Field().String())
		})
		register(v, trans, "digits", "{0} must contain only digits", func(fl validator.FieldLevel) bool {
			return digits.MatchString(fl.Field().String())
		})
		shortMessage(v, trans, "min", "{0} must be at least {1}")
		shortMessage(v, trans, "max", "{0} must be at most {1}")

		svc = &Svc{Validator: v, Translator: trans}
	})
	return svc
}

func register(v *validator.Validate, trans ut.Translator, tag, text string, fn validator.Func) {
	_ = v.RegisterValidation(tag, fn)
	shortMessage(v, trans, tag, text)
}

func shortMessage(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(u ut.Translator) error { return u.Add(tag, text, true) },
		func(u ut.Translator, fe validator.FieldError) string {
			msg, _ := u.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

// Struct validates s and returns *Error for the first failing field.
func Struct(s any) error {
	err := Get().Validator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &Error{Field: fe.Field(), Message: fe.Translate(Get().Translator)}
	}
	return &Error{Message: err.Error()}
}

// ValidTimeOfDay accepts HH:MM or HH:MM:SS with in-range components.
func ValidTimeOfDay(s string) bool {
	if !timeOfDay.MatchString(s) {
		return false
	}
	parts := strings.Split(s, ":")
	limits := []int{23, 59, 59}
	for i, p := range parts {
		n := int(p[0]-'0')*10 + int(p[1]-'0')
		if n > limits[i] {
			return false
		}
	}
	return true
}
