package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/revline/identity-engine/internal/model"
)

func TestOptionalString(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		set  bool
		val  *string
		bad  bool
	}{
		{name: "absent", raw: "", set: false},
		{name: "null", raw: "null", set: true, val: nil},
		{name: "value", raw: `"ru"`, set: true, val: strPtr("ru")},
		{name: "empty string", raw: `""`, set: true, val: strPtr("")},
		{name: "wrong type", raw: "42", bad: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set, val, err := optionalString(json.RawMessage(tc.raw))
			if tc.bad {
				if err == nil {
					t.Fatal("expected a type error")
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if set != tc.set {
				t.Fatalf("set = %v, want %v", set, tc.set)
			}
			switch {
			case tc.val == nil && val != nil:
				t.Fatalf("val = %q, want nil", *val)
			case tc.val != nil && (val == nil || *val != *tc.val):
				t.Fatalf("val = %v, want %q", val, *tc.val)
			}
		})
	}
}

func TestUserViewTimezoneRendering(t *testing.T) {
	verified := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := &model.User{
		ID:              1,
		Email:           "a@b.c",
		Username:        "a",
		PasswordHash:    "must-not-appear",
		Roles:           model.NewRoleSet(model.RoleUser),
		EmailVerifiedAt: &verified,
		CreatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	v := newUserView(u, berlin)
	if v.EmailVerifiedAt == nil || *v.EmailVerifiedAt != "2026-03-01T13:00:00+01:00" {
		t.Fatalf("emailVerifiedAt = %v", v.EmailVerifiedAt)
	}
	if v.CreatedAt != "2026-01-01T01:00:00+01:00" {
		t.Fatalf("createdAt = %q", v.CreatedAt)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for k, val := range body {
		if s, ok := val.(string); ok && s == "must-not-appear" {
			t.Fatalf("password hash leaked under %q", k)
		}
	}
}

func strPtr(s string) *string { return &s }
