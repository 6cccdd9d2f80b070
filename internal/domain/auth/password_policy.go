package auth

import "strings"

// passwordSpecials is the punctuation set accepted by RequireSpecialChars.
const passwordSpecials = "!@#$%^&*()_+-=[]{}|;:'\",.<>/?`~"

// PasswordPolicy describes the rules a password must satisfy before the
// identity provider is ever contacted.
type PasswordPolicy struct {
	MinLength           int
	RequireUppercase    bool
	RequireLowercase    bool
	RequireNumbers      bool
	RequireSpecialChars bool
}

// DefaultPasswordPolicy returns the policy applied when none is configured.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumbers:   true,
	}
}

// ValidatePassword reports whether the password satisfies the policy.
// Rules are checked in order and the first failure short-circuits; callers
// that need itemized feedback must re-check each rule themselves.
func ValidatePassword(password string, policy PasswordPolicy) bool {
	if len(password) < policy.MinLength {
		return false
	}
	if policy.RequireUppercase && !strings.ContainsFunc(password, isUpper) {
		return false
	}
	if policy.RequireLowercase && !strings.ContainsFunc(password, isLower) {
		return false
	}
	if policy.RequireNumbers && !strings.ContainsFunc(password, isDigit) {
		return false
	}
	if policy.RequireSpecialChars && !strings.ContainsAny(password, passwordSpecials) {
		return false
	}
	return true
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }
