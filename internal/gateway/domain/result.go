package domain

// Result is the settled outcome of a session operation. Operations never
// propagate errors past the session manager; failures are folded into
// Success=false with a user-facing message.
type Result struct {
	Success bool
	Message string

	// Requires2FA is set when a login answered with a second-factor
	// challenge instead of a session.
	Requires2FA bool

	// RequiresEmailVerification is set on registration when the account
	// still needs email confirmation. Callers branch on it for UX only;
	// the session is already established.
	RequiresEmailVerification bool
}

// OK is a successful result with no message.
func OK() Result { return Result{Success: true} }

// Fail is a failed result carrying a user-facing message.
func Fail(message string) Result { return Result{Success: false, Message: message} }
