package model

// Operation names the flow a verification code or notification belongs to.
// Codes are bound to the operation they were generated for, so a
// password-reset code can never complete a sign-up.
type Operation string

const (
	OpCompleteSignUp         Operation = "complete-sign-up"
	OpCompleteInvite         Operation = "complete-invite"
	OpCompleteForgotPassword Operation = "complete-forgot-password"
)
