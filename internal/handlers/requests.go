package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// PostMessageRequest is accepted as a form or JSON body. The message length
// limit is configurable and enforced by the chat service.
type PostMessageRequest struct {
	Room    string `json:"room" form:"room" validate:"required,max=100"`
	Message string `json:"message" form:"message"`
}

// RoomRequest is the body of POST /heartbeat and POST /rooms.
type RoomRequest struct {
	Room string `json:"room" form:"room" validate:"required,max=100"`
}

// validationMessage turns the first validator failure into a client-facing
// message such as "room is required".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request."
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
