// Package twofactor defines the code generate/validate bridge used by email
// verification and password recovery, plus a Redis-backed default
// implementation. Despite the name this is not TOTP: a "code" here is a
// single-use opaque string delivered out of band and bound to one operation.
package twofactor

import (
	"context"

	"github.com/revline/identity-engine/internal/model"
)

// Bridge generates and validates single-use codes. Implementations must
// bind each code to the user's project and the operation it was generated
// for; validation against a different project or operation fails.
type Bridge interface {
	// GenerateCode creates a code for the user and operation.
	GenerateCode(ctx context.Context, user *model.User, op model.Operation) (string, error)
	// ValidateCode resolves a code back to the user id it was issued for.
	// A missing, expired, cross-project or cross-operation code fails with
	// apperr.VerificationCodeNotFound.
	ValidateCode(ctx context.Context, code string, projectID uint64, op model.Operation) (uint64, error)
}
