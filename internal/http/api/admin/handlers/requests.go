package handlers

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// loginRequest defines the request body for operator login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (req *loginRequest) Validate() error {
	req.Username = strings.TrimSpace(req.Username)
	return validation.ValidateStruct(req,
		validation.Field(&req.Username, validation.Required, validation.Length(1, 64)),
		validation.Field(&req.Password, validation.Required),
	)
}

// createShopRequest defines the request body for shop creation.
type createShopRequest struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

func (req *createShopRequest) Validate() error {
	req.Name = strings.TrimSpace(req.Name)
	return validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&req.Balance, validation.Min(0)),
	)
}

// creditShopRequest defines the request body for a top-up.
type creditShopRequest struct {
	Amount int64 `json:"amount"`
}

func (req *creditShopRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Amount, validation.Required, validation.Min(1)),
	)
}
