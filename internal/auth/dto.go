// AngelaMos | 2026
// dto.go

package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,notblank,max=100"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Mobile   Mobile `json:"mobile"   validate:"required,number,min=7,max=15"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// Mobile is a phone number sent either as a JSON string or a JSON number.
// Both forms decode to the literal digits; validation rejects anything else.
type Mobile string

func (m *Mobile) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}

	switch t := v.(type) {
	case string:
		*m = Mobile(strings.TrimSpace(t))
	case json.Number:
		*m = Mobile(t.String())
	case nil:
		*m = ""
	default:
		return fmt.Errorf("mobile must be a string or a number, got %T", v)
	}

	return nil
}

type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	Message   string    `json:"msg"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type RegisterResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
