package identity

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// DefaultAllowedUserNameCharacters is the character set accepted in usernames.
const DefaultAllowedUserNameCharacters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._@+"

// PasswordPolicy describes the password rules enforced at creation time.
type PasswordPolicy struct {
	RequiredLength         int
	RequiredUniqueChars    int
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireNonAlphanumeric bool
}

// DefaultPasswordPolicy returns the policy used when none is configured.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		RequiredLength:      6,
		RequiredUniqueChars: 1,
		RequireDigit:        true,
		RequireLowercase:    true,
		RequireUppercase:    true,
	}
}

// Check returns every rule the password breaks, in a fixed order.
func (p PasswordPolicy) Check(password string) []Error {
	var errs []Error

	if utf8.RuneCountInString(password) < p.RequiredLength {
		errs = append(errs, Error{
			Code:        CodePasswordTooShort,
			Description: fmt.Sprintf("Passwords must be at least %d characters.", p.RequiredLength),
		})
	}

	var hasDigit, hasLower, hasUpper, hasOther bool
	unique := make(map[rune]struct{})
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		default:
			hasOther = true
		}
		unique[r] = struct{}{}
	}

	if p.RequireNonAlphanumeric && !hasOther {
		errs = append(errs, Error{
			Code:        CodePasswordRequiresNonAlphanumeric,
			Description: "Passwords must have at least one non alphanumeric character.",
		})
	}
	if p.RequireDigit && !hasDigit {
		errs = append(errs, Error{
			Code:        CodePasswordRequiresDigit,
			Description: "Passwords must have at least one digit ('0'-'9').",
		})
	}
	if p.RequireLowercase && !hasLower {
		errs = append(errs, Error{
			Code:        CodePasswordRequiresLower,
			Description: "Passwords must have at least one lowercase ('a'-'z').",
		})
	}
	if p.RequireUppercase && !hasUpper {
		errs = append(errs, Error{
			Code:        CodePasswordRequiresUpper,
			Description: "Passwords must have at least one uppercase ('A'-'Z').",
		})
	}
	if p.RequiredUniqueChars >= 1 && len(unique) < p.RequiredUniqueChars {
		errs = append(errs, Error{
			Code:        CodePasswordRequiresUniqueChars,
			Description: fmt.Sprintf("Passwords must use at least %d different characters.", p.RequiredUniqueChars),
		})
	}
	return errs
}

// UserPolicy describes the account rules enforced at creation time.
type UserPolicy struct {
	AllowedUserNameCharacters string
}

// DefaultUserPolicy returns the policy used when none is configured.
func DefaultUserPolicy() UserPolicy {
	return UserPolicy{AllowedUserNameCharacters: DefaultAllowedUserNameCharacters}
}

var emailValidator = validator.New()

// Check returns every rule the username and email break.
func (p UserPolicy) Check(username, email string) []Error {
	var errs []Error

	if strings.TrimSpace(username) == "" || !p.allowed(username) {
		errs = append(errs, invalidUserName(username))
	}
	if emailValidator.Var(email, "required,email") != nil {
		errs = append(errs, invalidEmail(email))
	}
	return errs
}

func (p UserPolicy) allowed(username string) bool {
	if p.AllowedUserNameCharacters == "" {
		return true
	}
	for _, r := range username {
		if !strings.ContainsRune(p.AllowedUserNameCharacters, r) {
			return false
		}
	}
	return true
}

// Normalize returns the lookup key for a username or email.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
