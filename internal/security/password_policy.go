package security

import (
	"errors"
	"strings"
	"unicode"
)

// PasswordPolicy defines the requirements for an admin password
type PasswordPolicy struct {
	MinLength         int  // Minimum password length
	RequireLetter     bool // Require at least one letter
	RequireDigit      bool // Require at least one digit
	RequireMixedCase  bool // Require upper and lower case letters
	MaxRepeatedChars  int  // Maximum run of the same character, 0 disables
	DisallowEmail     bool // Disallow the email local part in the password
	DisallowSequences bool // Disallow common sequences like "123456" or "qwerty"
}

// AdminPasswordPolicy is the policy applied when admins register
func AdminPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:         10,
		RequireLetter:     true,
		RequireDigit:      true,
		MaxRepeatedChars:  4,
		DisallowEmail:     true,
		DisallowSequences: true,
	}
}

var commonSequences = []string{
	"123456", "password", "qwerty", "abc123", "letmein", "welcome",
	"passw0rd", "iloveyou", "trustno1", "654321", "qazwsx",
}

// Validate checks a password against the policy
func (p *PasswordPolicy) Validate(password, email string) error {
	if len(password) < p.MinLength {
		return errors.New("password is too short")
	}

	var hasLetter, hasDigit, hasUpper, hasLower bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
			hasUpper = hasUpper || unicode.IsUpper(r)
			hasLower = hasLower || unicode.IsLower(r)
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if p.RequireLetter && !hasLetter {
		return errors.New("password must contain at least one letter")
	}
	if p.RequireDigit && !hasDigit {
		return errors.New("password must contain at least one digit")
	}
	if p.RequireMixedCase && !(hasUpper && hasLower) {
		return errors.New("password must contain upper and lower case letters")
	}

	if p.MaxRepeatedChars > 0 && hasRun(password, p.MaxRepeatedChars) {
		return errors.New("password contains too many repeated characters")
	}

	lower := strings.ToLower(password)

	if p.DisallowEmail && email != "" {
		local := strings.ToLower(strings.SplitN(email, "@", 2)[0])
		if len(local) > 2 && strings.Contains(lower, local) {
			return errors.New("password cannot contain your email address")
		}
	}

	if p.DisallowSequences {
		for _, seq := range commonSequences {
			if strings.Contains(lower, seq) {
				return errors.New("password contains a common sequence")
			}
		}
	}

	return nil
}

// hasRun reports whether s holds n or more consecutive identical bytes
func hasRun(s string, n int) bool {
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
