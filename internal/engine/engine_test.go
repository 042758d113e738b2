package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/notifier"
	"github.com/revline/identity-engine/internal/repository"
	"github.com/revline/identity-engine/internal/twofactor"
	"github.com/revline/identity-engine/internal/utils"
)

type memUsers struct {
	byID   map[uint64]*model.User
	nextID uint64
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]*model.User{}, nextID: 1} }

func (m *memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, projectID uint64, email string) (*model.User, error) {
	for _, u := range m.byID {
		if u.ProjectID == projectID && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	u.ID = m.nextID
	m.nextID++
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) Update(_ context.Context, u *model.User) error {
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

// stubBridge hands out one fixed code per generate call and validates
// against what it handed out.
type stubBridge struct {
	code      string
	userID    uint64
	projectID uint64
	op        model.Operation
	genErr    error
}

func (b *stubBridge) GenerateCode(_ context.Context, u *model.User, op model.Operation) (string, error) {
	if b.genErr != nil {
		return "", b.genErr
	}
	b.code = "123456-abc"
	b.userID = u.ID
	b.projectID = u.ProjectID
	b.op = op
	return b.code, nil
}

func (b *stubBridge) ValidateCode(_ context.Context, code string, projectID uint64, op model.Operation) (uint64, error) {
	if code != b.code || b.code == "" || projectID != b.projectID || op != b.op {
		return 0, apperr.VerificationCodeNotFound()
	}
	b.code = ""
	return b.userID, nil
}

type stubSender struct {
	sent      []notifier.Notification
	attempted bool
	err       error
}

func (s *stubSender) Send(_ context.Context, n notifier.Notification) (*notifier.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if !s.attempted {
		return nil, nil
	}
	s.sent = append(s.sent, n)
	return &notifier.Result{MessageID: "msg-1"}, nil
}

const testBcryptCost = 4

func testProject() *model.Project {
	return &model.Project{ID: 3, Name: "Acme", ClientID: "acme"}
}

func newTestEngine(users repository.UserStore, bridge *stubBridge, sender notifier.Sender, verify bool) *Engine {
	// A nil *stubBridge must stay a nil interface, otherwise the engine
	// would see a channel where there is none.
	var tf twofactor.Bridge
	if bridge != nil {
		tf = bridge
	}
	return New(users, nil, nil, tf, sender, nil, testBcryptCost, verify, "en", zerolog.Nop())
}

func mustSignUp(t *testing.T, e *Engine, args SignUpArgs) *model.User {
	t.Helper()
	u, err := e.SignUp(context.Background(), testProject(), args, model.OpCompleteSignUp)
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	return u
}

func TestSignUpWithoutChannelAutoVerifies(t *testing.T) {
	users := newMemUsers()
	e := newTestEngine(users, nil, nil, true)

	u := mustSignUp(t, e, SignUpArgs{Email: "Jane@Example.com ", Password: "hunter22"})
	if !u.Verified() {
		t.Fatal("user must be auto-verified without a verification channel")
	}
	if u.Email != "jane@example.com" {
		t.Fatalf("email = %q, want normalized", u.Email)
	}
	if u.Username != "jane" {
		t.Fatalf("username = %q, want email local part", u.Username)
	}
	if !u.Roles.Has(model.RoleUser) {
		t.Fatal("new users start with the user role")
	}
}

func TestSignUpDispatchesVerificationCode(t *testing.T) {
	users := newMemUsers()
	bridge := &stubBridge{}
	sender := &stubSender{attempted: true}
	e := newTestEngine(users, bridge, sender, true)

	u := mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "hunter22"})
	if u.Verified() {
		t.Fatal("user must start unverified when a channel exists")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d notifications, want 1", len(sender.sent))
	}
	if sender.sent[0].Operation != model.OpCompleteSignUp {
		t.Fatalf("operation = %q", sender.sent[0].Operation)
	}

	done, err := e.CompleteSignUp(context.Background(), 3, bridge.code)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done == nil || !done.Verified() {
		t.Fatal("completion must stamp the verification time")
	}

	// The code is single-use.
	again, err := e.CompleteSignUp(context.Background(), 3, "123456-abc")
	if err != nil || again != nil {
		t.Fatalf("reused code: user=%v err=%v, want nil/nil", again, err)
	}
}

func TestSignUpAutoVerifiesWhenDispatchFails(t *testing.T) {
	users := newMemUsers()
	bridge := &stubBridge{}
	sender := &stubSender{err: errors.New("broker down")}
	e := newTestEngine(users, bridge, sender, true)

	u := mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "hunter22"})
	if !u.Verified() {
		t.Fatal("failed dispatch must auto-verify instead of stranding the account")
	}
}

func TestSignUpAutoVerifiesWhenDeliveryNotAttempted(t *testing.T) {
	users := newMemUsers()
	bridge := &stubBridge{}
	sender := &stubSender{attempted: false}
	e := newTestEngine(users, bridge, sender, true)

	u := mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "hunter22"})
	if !u.Verified() {
		t.Fatal("unattempted delivery counts as a failed dispatch")
	}
}

func TestSignIn(t *testing.T) {
	users := newMemUsers()
	e := newTestEngine(users, nil, nil, true)
	mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "hunter22"})
	ctx := context.Background()

	if _, err := e.SignIn(ctx, 3, "a@b.c", "hunter22"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, err := e.SignIn(ctx, 3, "a@b.c", "wrong"); !errors.Is(err, apperr.WrongPassword()) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := e.SignIn(ctx, 3, "nobody@b.c", "hunter22"); !errors.Is(err, apperr.UserNotFound()) {
		t.Fatalf("unknown user err = %v", err)
	}
	// Same email, different tenant: no user there.
	if _, err := e.SignIn(ctx, 99, "a@b.c", "hunter22"); !errors.Is(err, apperr.UserNotFound()) {
		t.Fatalf("cross-tenant err = %v", err)
	}
}

func TestSignInRejectsUnverified(t *testing.T) {
	users := newMemUsers()
	bridge := &stubBridge{}
	sender := &stubSender{attempted: true}
	e := newTestEngine(users, bridge, sender, true)
	mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "hunter22"})

	_, err := e.SignIn(context.Background(), 3, "a@b.c", "hunter22")
	if !errors.Is(err, apperr.EmailNotVerified()) {
		t.Fatalf("unverified err = %v", err)
	}
}

func TestForgotPasswordFlow(t *testing.T) {
	users := newMemUsers()
	bridge := &stubBridge{}
	sender := &stubSender{attempted: true}
	e := newTestEngine(users, bridge, sender, false)
	mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "oldpass1"})
	ctx := context.Background()

	if err := e.ForgotPassword(ctx, testProject(), "a@b.c", "https://app/reset"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	got, err := e.CompleteForgotPassword(ctx, 3, bridge.code, "newpass1")
	if err != nil {
		t.Fatalf("complete forgot: %v", err)
	}
	if got == nil {
		t.Fatal("valid code must return the user")
	}
	if _, err := e.SignIn(ctx, 3, "a@b.c", "newpass1"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
	if _, err := e.SignIn(ctx, 3, "a@b.c", "oldpass1"); !errors.Is(err, apperr.WrongPassword()) {
		t.Fatalf("old password err = %v", err)
	}
}

func TestForgotPasswordWithoutChannel(t *testing.T) {
	users := newMemUsers()
	e := newTestEngine(users, nil, nil, true)
	mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "hunter22"})

	err := e.ForgotPassword(context.Background(), testProject(), "a@b.c", "")
	if !errors.Is(err, apperr.VerificationCodeNotFound()) {
		t.Fatalf("err = %v, want VERIFICATION_CODE_NOT_FOUND", err)
	}
}

func TestCompleteForgotPasswordBadCode(t *testing.T) {
	users := newMemUsers()
	bridge := &stubBridge{}
	sender := &stubSender{attempted: true}
	e := newTestEngine(users, bridge, sender, false)
	mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "oldpass1"})

	u, err := e.CompleteForgotPassword(context.Background(), 3, "bogus", "newpass1")
	if err != nil || u != nil {
		t.Fatalf("bad code: user=%v err=%v, want nil/nil", u, err)
	}
}

func TestUpdateProfilePassword(t *testing.T) {
	users := newMemUsers()
	e := newTestEngine(users, nil, nil, true)
	u := mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "oldpass1"})
	ctx := context.Background()

	// Wrong old password is rejected.
	_, err := e.UpdateProfile(ctx, u.ID, UpdateProfileArgs{NewPassword: "newpass1", OldPassword: "wrong"})
	if !errors.Is(err, apperr.WrongOldPassword()) {
		t.Fatalf("err = %v, want WRONG_OLD_PASSWORD", err)
	}

	// Re-submitting the current password does not re-hash.
	before := users.byID[u.ID].PasswordHash
	if _, err := e.UpdateProfile(ctx, u.ID, UpdateProfileArgs{NewPassword: "oldpass1", OldPassword: "oldpass1"}); err != nil {
		t.Fatalf("idempotent update: %v", err)
	}
	if users.byID[u.ID].PasswordHash != before {
		t.Fatal("unchanged password was re-hashed")
	}

	// A real change replaces the hash.
	if _, err := e.UpdateProfile(ctx, u.ID, UpdateProfileArgs{NewPassword: "newpass1", OldPassword: "oldpass1"}); err != nil {
		t.Fatalf("password change: %v", err)
	}
	if !utils.ComparePasswordWithHash("newpass1", users.byID[u.ID].PasswordHash) {
		t.Fatal("new password does not verify")
	}
}

func TestUpdateProfileTriStateFields(t *testing.T) {
	users := newMemUsers()
	e := newTestEngine(users, nil, nil, true)
	u := mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "hunter22", Lang: "ru"})
	ctx := context.Background()

	// Untouched when the field is not submitted.
	got, err := e.UpdateProfile(ctx, u.ID, UpdateProfileArgs{})
	if err != nil {
		t.Fatalf("noop update: %v", err)
	}
	if got.Lang == nil || *got.Lang != "ru" {
		t.Fatal("lang changed by a no-op update")
	}

	// Explicit null clears.
	got, err = e.UpdateProfile(ctx, u.ID, UpdateProfileArgs{SetLang: true, Lang: nil})
	if err != nil {
		t.Fatalf("clear lang: %v", err)
	}
	if got.Lang != nil {
		t.Fatal("explicit null did not clear lang")
	}

	tz := "Europe/Berlin"
	got, err = e.UpdateProfile(ctx, u.ID, UpdateProfileArgs{SetTimezone: true, Timezone: &tz})
	if err != nil {
		t.Fatalf("set timezone: %v", err)
	}
	if got.Timezone == nil || *got.Timezone != tz {
		t.Fatal("timezone not applied")
	}
}
