package validation

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		switch name {
		case "", "-":
			return snakeCase(f.Name)
		default:
			return name
		}
	})
	_ = v.RegisterValidation("nonul", func(fl validator.FieldLevel) bool {
		return strings.IndexByte(fl.Field().String(), 0) < 0
	})
	return v
})

// messages renders validator tags; %s is replaced by the tag parameter.
var messages = map[string]string{
	"required":    "is required",
	"required_if": "is required",
	"dir":         "must be an existing directory",
	"nonul":       "must not contain NUL bytes",
	"min":         "must be at least %s",
	"max":         "must be at most %s",
	"gte":         "must be greater than or equal to %s",
	"lte":         "must be less than or equal to %s",
	"oneof":       "must be one of: %s",
}

// Validate checks s against its `validate` struct tags. Fields are named
// by their mapstructure key, as they appear in config files.
func Validate(s any) error {
	err := structValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return New().Add("", err.Error()).Err()
	}
	c := New()
	for _, fe := range verrs {
		c.Add(fieldPath(fe), message(fe))
	}
	return c.Err()
}

// fieldPath drops the root struct name: "Command.program" becomes "program".
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	m, ok := messages[fe.Tag()]
	if !ok {
		return "is invalid"
	}
	if strings.Contains(m, "%s") {
		return strings.Replace(m, "%s", fe.Param(), 1)
	}
	return m
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
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
