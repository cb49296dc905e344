package handlers

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation"
)

// verifyPinRequest defines the request body for PIN verification.
type verifyPinRequest struct {
	Pin      string `json:"pin"`
	DeviceID string `json:"device_id"`
}

// Validate checks the device identifier. PIN shape is left to the guard so
// malformed PINs answer NotFound like unknown ones.
func (req *verifyPinRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.DeviceID, validation.Required, validation.Length(1, 255)),
	)
}

// createGiftRequest defines the request body for gift creation.
type createGiftRequest struct {
	RequestedPin string          `json:"requested_pin"`
	ContentRef   string          `json:"content_ref"`
	Metadata     json.RawMessage `json:"metadata"`
}

func (req *createGiftRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.RequestedPin, validation.Length(0, 32)),
		validation.Field(&req.ContentRef, validation.Required, validation.Length(1, 512)),
		validation.Field(&req.Metadata, validation.Length(0, 16*1024)),
	)
}
