package handler

import "errors"

// Ошибки обработчиков.
var (
	// ErrUnknownHandler — в Router нет обработчика с таким именем.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrMissingHandlers — маршруты ссылаются на незарегистрированные обработчики.
	ErrMissingHandlers = errors.New("routes reference unregistered handlers")

	// ErrInvalidParams — параметры work package вне допустимого диапазона.
	ErrInvalidParams = errors.New("invalid work package params")
)
