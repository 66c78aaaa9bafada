package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product представляет товар каталога
type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"` // уникальное
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"` // numeric(10,2)
	Stock       int             `json:"stock"`
	ImgURL      string          `json:"imgUrl"`
	Category    *Category       `json:"category,omitempty"`
}

// CategoryID возвращает идентификатор категории товара или uuid.Nil.
func (p *Product) CategoryID() uuid.UUID {
	if p.Category == nil {
		return uuid.Nil
	}
	return p.Category.ID
}

// MarshalJSON отдаёт цену строкой с двумя знаками: "10.50", а не "10.5".
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		Price string `json:"price"`
	}{plain: plain(p), Price: Money(p.Price)})
}
