// Package validation wires go-playground/validator with the account rules
// and turns its errors into per-field messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	customErrors "github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/errors"
	"github.com/go-playground/validator/v10"
)

var (
	usernameCharset = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	onlyDigits      = regexp.MustCompile(`^\d+$`)
	specialChars    = regexp.MustCompile(`[@$!%*?&]`)
	upper           = regexp.MustCompile(`[A-Z]`)
	lower           = regexp.MustCompile(`[a-z]`)
	digit           = regexp.MustCompile(`[0-9]`)
)

var labels = map[string]string{
	"name":             "Name",
	"username":         "Username",
	"email":            "Email",
	"password":         "Password",
	"confirm_password": "Password confirmation",
}

// New returns a validator that reports fields by their json names and knows
// the "username" and "strongpwd" tags.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return len(UsernameProblems(fl.Field().String())) == 0
	})
	_ = v.RegisterValidation("strongpwd", func(fl validator.FieldLevel) bool {
		return len(PasswordProblems(fl.Field().String())) == 0
	})
	return v
}

// UsernameProblems lists every rule the username breaks.
func UsernameProblems(s string) []string {
	var out []string
	n := utf8.RuneCountInString(s)
	if n < 6 {
		out = append(out, "Username must be at least 6 characters long")
	}
	if n > 20 {
		out = append(out, "Username must not exceed 20 characters")
	}
	if !usernameCharset.MatchString(s) {
		out = append(out, "Username can only contain letters, numbers, hyphens, and underscores")
	}
	if onlyDigits.MatchString(s) {
		out = append(out, "Username cannot be only numbers")
	}
	if specialChars.MatchString(s) {
		out = append(out, "Username cannot contain special characters like @$!%*?&")
	}
	return out
}

// PasswordProblems lists every rule the password breaks.
func PasswordProblems(s string) []string {
	var out []string
	if utf8.RuneCountInString(s) < 8 {
		out = append(out, "Password must be at least 8 characters long")
	}
	if !upper.MatchString(s) {
		out = append(out, "Password must include at least one uppercase letter")
	}
	if !lower.MatchString(s) {
		out = append(out, "Password must include at least one lowercase letter")
	}
	if !digit.MatchString(s) {
		out = append(out, "Password must include at least one number")
	}
	if !specialChars.MatchString(s) {
		out = append(out, "Password must include at least one special character")
	}
	return out
}

// Struct validates s and returns a *errors.ValidationError on failure.
func Struct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return customErrors.NewInvalidArgument(err.Error())
	}

	out := &customErrors.ValidationError{}
	for _, fe := range fieldErrs {
		for _, msg := range messages(fe) {
			out.Add(fe.Field(), msg)
		}
	}
	return out
}

func messages(fe validator.FieldError) []string {
	label, ok := labels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return []string{label + " is required"}
	case "min":
		return []string{fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())}
	case "email":
		return []string{"Invalid email format"}
	case "eqfield":
		return []string{"Passwords do not match"}
	case "username":
		return UsernameProblems(fmt.Sprint(fe.Value()))
	case "strongpwd":
		return PasswordProblems(fmt.Sprint(fe.Value()))
	default:
		return []string{label + " is invalid"}
	}
}
