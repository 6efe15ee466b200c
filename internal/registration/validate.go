package registration

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ayush/registration-service/internal/models"
)

// Finding is one reason a request was rejected.
type Finding struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks req without touching the directory. Findings come back in
// struct field order, so the same request always yields the same findings.
func Validate(req models.RegistrationRequest) []Finding {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Finding{{Rule: "invalid", Message: err.Error()}}
	}

	findings := make([]Finding, 0, len(verrs))
	for _, fe := range verrs {
		findings = append(findings, Finding{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return findings
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", fe.StructField())
	case "email":
		return fmt.Sprintf("The %s field is not a valid e-mail address.", fe.StructField())
	case "min", "max":
		if fe.StructField() != "Password" {
			return fmt.Sprintf("The field %s must be a string with a maximum length of %s.", fe.StructField(), fe.Param())
		}
		return fmt.Sprintf("The %s must be at least %d and at max %d characters long.",
			fe.StructField(), minPasswordLength, maxPasswordLength)
	case "eqfield":
		return "The password and confirmation password do not match."
	default:
		return fmt.Sprintf("The %s field is invalid.", fe.StructField())
	}
}

const (
	minPasswordLength = 6
	maxPasswordLength = 100
)
