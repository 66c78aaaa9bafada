package models

import "github.com/google/uuid"

// User представляет покупателя магазина
type User struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	PassHash []byte    `json:"-"` // bcrypt-хэш, наружу не отдаётся
	Phone    int64     `json:"phone"`
	Country  string    `json:"country"`
	Address  string    `json:"address"`
	City     string    `json:"city"`
	IsAdmin  bool      `json:"-"`
}
