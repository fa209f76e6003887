// Package validation checks registration input shape with
// go-playground/validator struct tags.
package validation

import (
	"errors"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidUsername is returned for usernames outside 3-30 characters of
	// letters, digits and underscore.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidEmail is returned for addresses the email rule rejects.
	ErrInvalidEmail = errors.New("invalid email")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var (
	once     sync.Once
	validate *validator.Validate
)

type usernameInput struct {
	Username string `validate:"required,min=3,max=30,username"`
}

type emailInput struct {
	Email string `validate:"required,max=254,email"`
}

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Username validates a trimmed username.
func Username(username string) error {
	if err := instance().Struct(usernameInput{Username: username}); err != nil {
		return ErrInvalidUsername
	}
	return nil
}

// Email validates a normalized email address.
func Email(email string) error {
	if err := instance().Struct(emailInput{Email: email}); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// FieldError names one failed rule of a struct validated by Struct.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Struct validates any tagged struct, typically a decoded request body, and
// lists every failed rule. A nil result means the value passed.
func Struct(v any) []FieldError {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Tag: "invalid"}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{Field: e.Field(), Tag: e.Tag(), Param: e.Param()})
	}
	return out
}
