package service

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const resetSubject = "Password Reset Request"

//go:embed templates/password_reset.html
var resetTemplateSrc string

var resetTemplate = template.Must(template.New("password_reset").Parse(resetTemplateSrc))

type resetEmail struct {
	Email    string
	ResetURL string
	ValidFor string
}

func renderResetEmail(clientURL, email, token string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	err := resetTemplate.Execute(&buf, resetEmail{
		Email:    email,
		ResetURL: clientURL + "/reset-password?token=" + url.QueryEscape(token),
		ValidFor: humanDuration(ttl),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d.Hours()))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	default:
		return d.String()
	}
}

var fieldMessages = map[string]string{
	"Username":       "Username must be 3 to 30 characters and contain only letters, numbers, and underscores",
	"Email":          "Please enter a valid email",
	"Token":          "Reset token is required",
	"Bio":            "Bio must be at most 500 characters",
	"ProfilePicture": "Profile picture must be a valid URL",
}

// describe turns validator output into the messages shown to clients.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Field() == "Password" {
		if fe.Tag() == "required" {
			return "Password is required"
		}
		return "Password must be at least 6 characters long and contain at least one letter and one number"
	}
	if m, ok := fieldMessages[fe.Field()]; ok {
		return m
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
