package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order представляет заказ покупателя
type Order struct {
	ID     uuid.UUID    `json:"id"`
	UserID uuid.UUID    `json:"userId"`
	Date   time.Time    `json:"date"`
	Lines  []*OrderLine `json:"orderDetails"`
}

// OrderLine — позиция заказа (order detail). Price фиксируется в момент оформления
// и не пересчитывается при изменении цен товаров.
type OrderLine struct {
	ID       uuid.UUID       `json:"id"`
	OrderID  uuid.UUID       `json:"-"`
	Price    decimal.Decimal `json:"price"`
	Products []*Product      `json:"products"`
}

// MoneyScale — число знаков после точки у денежных сумм (numeric(10,2)).
const MoneyScale = 2

// Money форматирует сумму для ответа API с фиксированным числом знаков.
func Money(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

func (l OrderLine) MarshalJSON() ([]byte, error) {
	type plain OrderLine
	return json.Marshal(struct {
		plain
		Price string `json:"price"`
	}{plain: plain(l), Price: Money(l.Price)})
}

// SumPrices складывает цены товаров в порядке следования.
func SumPrices(products []*Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}
	return total
}
