package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := UserNotFound().WithMeta("email", "a@b.c")
	if !errors.Is(err, UserNotFound()) {
		t.Fatal("two instances of the same code must match")
	}
	if errors.Is(err, WrongPassword()) {
		t.Fatal("different codes must not match")
	}

	wrapped := fmt.Errorf("looking up account: %w", err)
	if !errors.Is(wrapped, UserNotFound()) {
		t.Fatal("match must survive wrapping")
	}
	if got := CodeOf(wrapped); got != "USER_NOT_FOUND" {
		t.Fatalf("CodeOf = %q", got)
	}
}

func TestConstructorsReturnFreshInstances(t *testing.T) {
	a := Forbidden().WithMeta("k", "v")
	b := Forbidden()
	if len(b.Metadata) != 0 {
		t.Fatal("metadata leaked between instances")
	}
	if a == b {
		t.Fatal("constructors must not share instances")
	}
}

func TestSerializedShape(t *testing.T) {
	raw, err := json.Marshal(AccessTokenExpired().WithMeta("expiredAt", "2026-01-01T00:00:00Z"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["code"] != "ACCESS_TOKEN_EXPIRED" {
		t.Fatalf("code = %v", body["code"])
	}
	if _, leaked := body["HTTPStatus"]; leaked {
		t.Fatal("http status must not serialize")
	}
	if _, ok := body["metadata"]; !ok {
		t.Fatal("metadata missing from body")
	}
}

func TestStatusMapping(t *testing.T) {
	if AccessTokenExpired().HTTPStatus != http.StatusUnauthorized {
		t.Fatal("expired access tokens answer 401")
	}
	if Forbidden().HTTPStatus != http.StatusForbidden {
		t.Fatal("forbidden answers 403")
	}
	for _, e := range []*Error{UserNotFound(), WrongPassword(), SessionExpired(), BadAccessToken()} {
		if e.HTTPStatus != http.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", e.Code, e.HTTPStatus)
		}
	}
}

func TestCauseStaysInternal(t *testing.T) {
	cause := errors.New("sql: connection reset")
	e := UserNotFound().WithCause(cause)
	if !errors.Is(e, cause) {
		t.Fatal("cause must unwrap")
	}
	raw, _ := json.Marshal(e)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	for _, v := range body {
		if s, ok := v.(string); ok && s == cause.Error() {
			t.Fatal("cause leaked into the serialized body")
		}
	}
}
