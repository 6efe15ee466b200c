package identity

import "fmt"

// Code identifies a directory-side rejection. Codes are stable across
// releases; descriptions are for people.
type Code string

const (
	CodeDuplicateUserName               Code = "DuplicateUserName"
	CodeInvalidUserName                 Code = "InvalidUserName"
	CodeInvalidEmail                    Code = "InvalidEmail"
	CodePasswordTooShort                Code = "PasswordTooShort"
	CodePasswordRequiresDigit           Code = "PasswordRequiresDigit"
	CodePasswordRequiresLower           Code = "PasswordRequiresLower"
	CodePasswordRequiresUpper           Code = "PasswordRequiresUpper"
	CodePasswordRequiresNonAlphanumeric Code = "PasswordRequiresNonAlphanumeric"
	CodePasswordRequiresUniqueChars     Code = "PasswordRequiresUniqueChars"
)

// Field returns the request field a code concerns, or "" when it has none.
func (c Code) Field() string {
	switch c {
	case CodeDuplicateUserName, CodeInvalidUserName:
		return "username"
	case CodeInvalidEmail:
		return "email"
	case CodePasswordTooShort, CodePasswordRequiresDigit, CodePasswordRequiresLower,
		CodePasswordRequiresUpper, CodePasswordRequiresNonAlphanumeric, CodePasswordRequiresUniqueChars:
		return "password"
	default:
		return ""
	}
}

// Error is one reason the directory refused to create an account.
type Error struct {
	Code        Code   `json:"code"`
	Description string `json:"description"`
}

// Result reports the outcome of CreateAccount.
type Result struct {
	Succeeded bool
	Errors    []Error
}

// Success is the result of a created account.
func Success() Result {
	return Result{Succeeded: true}
}

// Failed builds a failed result carrying errs.
func Failed(errs ...Error) Result {
	return Result{Succeeded: false, Errors: errs}
}

func duplicateUserName(username string) Error {
	return Error{
		Code:        CodeDuplicateUserName,
		Description: fmt.Sprintf("Username '%s' is already taken.", username),
	}
}

func invalidUserName(username string) Error {
	return Error{
		Code:        CodeInvalidUserName,
		Description: fmt.Sprintf("Username '%s' is invalid, can only contain letters or digits.", username),
	}
}

func invalidEmail(email string) Error {
	return Error{
		Code:        CodeInvalidEmail,
		Description: fmt.Sprintf("Email '%s' is invalid.", email),
	}
}
