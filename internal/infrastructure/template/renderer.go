package template

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/go-account-api/internal/domain"
)

//go:embed templates/*.html
var files embed.FS

// templateFor maps each message kind to its template file. The switch is
// exhaustive over MessageKind; an unknown kind is a programming error.
func templateFor(kind domain.MessageKind) (string, error) {
	switch kind {
	case domain.MessageKindActiveCode:
		return "activation.html", nil
	case domain.MessageKindLoginCode:
		return "login2fa.html", nil
	case domain.MessageKindForgotPasswordCode:
		return "forgot_password.html", nil
	}
	return "", fmt.Errorf("no template for message kind %q", kind)
}

type params struct {
	Username string
	UserID   string
	Code     string
}

// Renderer renders notification bodies from embedded HTML templates.
type Renderer struct {
	t *template.Template
}

func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}
	return &Renderer{t: t}, nil
}

// Render produces the email body for a message: the kind picks the template,
// the user and code fill it in.
func (r *Renderer) Render(kind domain.MessageKind, user *domain.User, code string) (string, error) {
	name, err := templateFor(kind)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = r.t.ExecuteTemplate(&buf, name, params{
		Username: user.Username,
		UserID:   user.ID.String(),
		Code:     code,
	})
	if err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
