package service

import "errors"

// Ошибки жизненного цикла.
var (
	// ErrAlreadyRunning — Run уже выполняется.
	ErrAlreadyRunning = errors.New("lifecycle already running")

	// ErrShutdown — Run вызван после Shutdown.
	ErrShutdown = errors.New("lifecycle is shut down")
)
