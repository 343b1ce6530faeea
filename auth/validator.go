package auth

import (
	"chat-relay/errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateUsername accepts printable names of at most 64 characters.
func ValidateUsername(name string) error {
	if err := validate.Var(strings.TrimSpace(name), "required,max=64,printascii|alphaunicode"); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrUnknownIdentity, err)
	}
	return nil
}
