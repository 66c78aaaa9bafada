package service

import (
	"errors"
	"fmt"
)

// Виды ошибок сервисного слоя. Обработчики переводят их в HTTP-статусы.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
)

// Error — ошибка с сообщением для клиента. errors.Is(err, ErrNotFound) и т.п. определяет вид.
type Error struct {
	kind error
	msg  string
}

func NewError(kind error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// Message возвращает текст, безопасный для ответа клиенту.
func (e *Error) Message() string { return e.msg }

func notFound(format string, args ...any) error {
	return NewError(ErrNotFound, format, args...)
}

func invalidArgument(format string, args ...any) error {
	return NewError(ErrInvalidArgument, format, args...)
}

func conflict(format string, args ...any) error {
	return NewError(ErrConflict, format, args...)
}
