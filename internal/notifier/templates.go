package notifier

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/revline/identity-engine/internal/model"
)

// EmailTemplate is a renderable subject/body pair. Bodies are Go templates
// executed with TemplateData.
type EmailTemplate struct {
	Subject string
	HTML    string
	Text    string
}

// TemplateData is what templates render with.
type TemplateData struct {
	Code        string
	Username    string
	Email       string
	ProjectName string
	RedirectURI string
}

// TemplateStore looks up a per-project, per-locale template override for an
// operation. Template management itself lives outside the engine; a nil
// return falls back to the built-in default for the operation.
type TemplateStore interface {
	Lookup(ctx context.Context, projectID uint64, locale string, op model.Operation) (*EmailTemplate, error)
}

// NoTemplates is the TemplateStore used when no override source is wired;
// every lookup falls through to the defaults.
type NoTemplates struct{}

func (NoTemplates) Lookup(context.Context, uint64, string, model.Operation) (*EmailTemplate, error) {
	return nil, nil
}

// defaultTemplates are the built-in messages per operation.
var defaultTemplates = map[model.Operation]EmailTemplate{
	model.OpCompleteSignUp: {
		Subject: "Verify your email",
		HTML:    `<p>Hello {{.Username}},</p><p>Use the code <b>{{.Code}}</b> to verify your email address for {{.ProjectName}}.</p>`,
		Text:    "Hello {{.Username}}, use the code {{.Code}} to verify your email address for {{.ProjectName}}.",
	},
	model.OpCompleteInvite: {
		Subject: "You have been invited",
		HTML:    `<p>Hello,</p><p>You have been invited to {{.ProjectName}}. Use the code <b>{{.Code}}</b> to complete your registration.</p>`,
		Text:    "You have been invited to {{.ProjectName}}. Use the code {{.Code}} to complete your registration.",
	},
	model.OpCompleteForgotPassword: {
		Subject: "Reset your password",
		HTML:    `<p>Hello {{.Username}},</p><p>Use the code <b>{{.Code}}</b> to set a new password for {{.ProjectName}}.</p>`,
		Text:    "Hello {{.Username}}, use the code {{.Code}} to set a new password for {{.ProjectName}}.",
	},
}

// Render resolves the template for (project, locale, operation) and executes
// it with data. Overrides win over the built-in defaults.
func Render(ctx context.Context, store TemplateStore, projectID uint64, locale string, op model.Operation, data TemplateData) (subject, html, text string, err error) {
	tmpl, err := store.Lookup(ctx, projectID, locale, op)
	if err != nil {
		return "", "", "", err
	}
	if tmpl == nil {
		def, ok := defaultTemplates[op]
		if !ok {
			return "", "", "", fmt.Errorf("no template for operation %q", op)
		}
		tmpl = &def
	}
	if html, err = execute("html", tmpl.HTML, data); err != nil {
		return "", "", "", err
	}
	if text, err = execute("text", tmpl.Text, data); err != nil {
		return "", "", "", err
	}
	return tmpl.Subject, html, text, nil
}

func execute(name, body string, data TemplateData) (string, error) {
	if body == "" {
		return "", nil
	}
	t, err := template.New(name).Parse(body)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
