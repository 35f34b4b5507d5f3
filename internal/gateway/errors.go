package gateway

import (
	"errors"
	"fmt"
)

// Ошибки gateway.
var (
	// ErrRegistration — регистрация не удалась (сеть, авторизация, валидация).
	// Лечится повтором после backoff.
	ErrRegistration = errors.New("registration failed")

	// ErrHeartbeat — heartbeat не прошёл. Сессия считается мёртвой.
	ErrHeartbeat = errors.New("heartbeat failed")

	// ErrDeregistration — дерегистрация не удалась.
	ErrDeregistration = errors.New("deregistration failed")

	// ErrInvalidResponse — ответ gateway не содержит обязательных полей.
	ErrInvalidResponse = errors.New("invalid gateway response")
)

// APIError — неуспешный ответ gateway.
type APIError struct {
	// Status — HTTP статус.
	Status int

	// Code — код из конверта ответа (может отличаться от Status).
	Code int

	// Message — сообщение gateway.
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway error: HTTP %d, code %d", e.Status, e.Code)
	}
	return fmt.Sprintf("gateway error: HTTP %d, code %d: %s", e.Status, e.Code, e.Message)
}
