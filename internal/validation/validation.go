package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/go-playground/validator/v10"
)

// notSpaceOrAt excludes the ECMAScript whitespace set, which is wider than
// RE2's ASCII-only \s, along with '@'.
const notSpaceOrAt = `[^\t\n\v\f\r \x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}@]`

// emailPattern accepts local@domain.tld with no whitespace and no extra @.
var emailPattern = regexp.MustCompile(`^` + notSpaceOrAt + `+@` + notSpaceOrAt + `+\.` + notSpaceOrAt + `+$`)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// report json names so handlers can match on the wire field
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("loose_email", validateLooseEmail)
	validate.RegisterValidation("utf16min", validateUTF16Min)
}

func validateLooseEmail(fl validator.FieldLevel) bool {
	return IsEmail(fl.Field().String())
}

// validateUTF16Min measures length in UTF-16 code units, the way browser
// clients count characters, so a 3-emoji password has length 6.
func validateUTF16Min(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return UTF16Len(fl.Field().String()) >= limit
}

func UTF16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

type FieldError struct {
	Field string
	Tag   string
	Param string
}

// Struct validates a request DTO. The returned error, if any, wraps
// validator.ValidationErrors.
func Struct(v any) error {
	return validate.Struct(v)
}

// Failures flattens a validation error into field/tag pairs in declaration
// order. A nil or non-validation error yields nil.
func Failures(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// Failed reports whether field failed the given tag.
func Failed(err error, field, tag string) bool {
	for _, fe := range Failures(err) {
		if fe.Field == field && fe.Tag == tag {
			return true
		}
	}
	return false
}
