package contextutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidUsername checks that a username is 3-64 characters of letters,
// digits, underscores or hyphens.
func IsValidUsername(username string) bool {
	return validate.Var(username, "required,min=3,max=64,excludesall= ,printascii") == nil
}

// IsValidPassword checks the minimum password length shared by the HTTP
// signup flow and the admin CLI.
func IsValidPassword(password string) bool {
	return validate.Var(password, "required,min=8") == nil
}
