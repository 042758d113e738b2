package notifier

import (
	"context"
	"strings"
	"testing"

	"github.com/revline/identity-engine/internal/model"
)

type overrideStore struct {
	tmpl *EmailTemplate
}

func (s overrideStore) Lookup(context.Context, uint64, string, model.Operation) (*EmailTemplate, error) {
	return s.tmpl, nil
}

func TestRenderDefaults(t *testing.T) {
	data := TemplateData{Code: "123456-ff", Username: "jane", ProjectName: "Acme"}

	subject, html, text, err := Render(context.Background(), NoTemplates{}, 3, "en", model.OpCompleteSignUp, data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject == "" {
		t.Fatal("empty subject")
	}
	for _, body := range []string{html, text} {
		if !strings.Contains(body, "123456-ff") {
			t.Fatalf("code missing from body %q", body)
		}
		if !strings.Contains(body, "Acme") {
			t.Fatalf("project name missing from body %q", body)
		}
	}
}

func TestRenderEveryOperationHasDefault(t *testing.T) {
	ops := []model.Operation{model.OpCompleteSignUp, model.OpCompleteInvite, model.OpCompleteForgotPassword}
	for _, op := range ops {
		if _, _, _, err := Render(context.Background(), NoTemplates{}, 1, "en", op, TemplateData{Code: "c"}); err != nil {
			t.Fatalf("operation %q has no default: %v", op, err)
		}
	}

	if _, _, _, err := Render(context.Background(), NoTemplates{}, 1, "en", model.Operation("bogus"), TemplateData{}); err == nil {
		t.Fatal("unknown operation must fail")
	}
}

func TestRenderOverrideWins(t *testing.T) {
	store := overrideStore{tmpl: &EmailTemplate{
		Subject: "Willkommen",
		Text:    "Dein Code ist {{.Code}}",
	}}
	subject, html, text, err := Render(context.Background(), store, 3, "de", model.OpCompleteSignUp, TemplateData{Code: "777"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Willkommen" {
		t.Fatalf("subject = %q", subject)
	}
	if html != "" {
		t.Fatalf("html = %q, want empty for a text-only override", html)
	}
	if text != "Dein Code ist 777" {
		t.Fatalf("text = %q", text)
	}
}
