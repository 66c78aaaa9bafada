package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/linemk/ecommerce-api/internal/domain/models"
)

const (
	TypeOrderPlaced = "order.placed"

	publishTimeout = 3 * time.Second
)

// OrderPlaced — тело события о закоммиченном заказе.
type OrderPlaced struct {
	Type       string          `json:"type"`
	OrderID    uuid.UUID       `json:"orderId"`
	UserID     uuid.UUID       `json:"userId"`
	Date       time.Time       `json:"date"`
	Total      decimal.Decimal `json:"total"`
	ProductIDs []uuid.UUID     `json:"productIds"`
}

func (e OrderPlaced) MarshalJSON() ([]byte, error) {
	type plain OrderPlaced
	return json.Marshal(struct {
		plain
		Total string `json:"total"`
	}{plain: plain(e), Total: models.Money(e.Total)})
}

// MessageWriter — часть kafka.Writer, нужная издателю.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher публикует доменные события заказов в Kafka.
type Publisher struct {
	log    *slog.Logger
	writer MessageWriter
	closed atomic.Bool
}

// NewKafkaPublisher создаёт издателя поверх синхронного kafka.Writer.
func NewKafkaPublisher(log *slog.Logger, brokers []string, topic string) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		Async:        false,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error(fmt.Sprintf("kafka writer: "+msg, args...))
		}),
	}
	return NewPublisher(log, writer)
}

func NewPublisher(log *slog.Logger, writer MessageWriter) *Publisher {
	return &Publisher{log: log, writer: writer}
}

// OrderPlaced публикует событие с ключом = id заказа, чтобы события одного заказа шли в одну партицию.
// Отмена запроса не прерывает публикацию: заказ к этому моменту уже закоммичен.
func (p *Publisher) OrderPlaced(ctx context.Context, order *models.Order) error {
	const op = "events.Publisher.OrderPlaced"

	if p.closed.Load() {
		return fmt.Errorf("%s: publisher is closed", op)
	}

	event := OrderPlaced{
		Type:       TypeOrderPlaced,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Date:       order.Date,
		Total:      decimal.Zero,
		ProductIDs: []uuid.UUID{},
	}
	for _, line := range order.Lines {
		event.Total = event.Total.Add(line.Price)
		for _, product := range line.Products {
			event.ProductIDs = append(event.ProductIDs, product.ID)
		}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal event: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(order.ID.String()),
		Value:   body,
		Headers: []kafka.Header{{Key: "type", Value: []byte(TypeOrderPlaced)}},
		Time:    order.Date,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to write message: %w", op, err)
	}

	p.log.Debug("event published", slog.String("op", op), slog.String("orderID", order.ID.String()))
	return nil
}

func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
