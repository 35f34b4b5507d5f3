package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/shaiso/gateway-worker/internal/domain"
)

// Handler — обработчик одного типа work package.
type Handler interface {
	Handle(ctx context.Context, pkg domain.WorkPackage, session domain.Session, logger *slog.Logger) (any, error)
}

// Func — адаптер функции к Handler.
type Func func(ctx context.Context, pkg domain.WorkPackage, session domain.Session, logger *slog.Logger) (any, error)

// Handle вызывает f.
func (f Func) Handle(ctx context.Context, pkg domain.WorkPackage, session domain.Session, logger *slog.Logger) (any, error) {
	return f(ctx, pkg, session, logger)
}

// Router — реестр обработчиков по handler_name. Потокобезопасен.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter создаёт пустой Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// DefaultRouter создаёт Router со встроенными обработчиками.
func DefaultRouter() *Router {
	r := NewRouter()
	r.Register("echo", &EchoHandler{})
	r.Register("delay", &DelayHandler{})
	return r
}

// Register добавляет обработчик. Существующий с тем же именем перезаписывается.
func (r *Router) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Get возвращает обработчик по имени.
func (r *Router) Get(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, name)
	}
	return h, nil
}

// Names возвращает отсортированный список зарегистрированных имён.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle выбирает обработчик по handler_name и вызывает его.
func (r *Router) Handle(ctx context.Context, pkg domain.WorkPackage, session domain.Session, logger *slog.Logger) (any, error) {
	name := pkg.HandlerName()

	h, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	return h.Handle(ctx, pkg, session, logger.With("handler", name))
}

// Validate проверяет, что каждый маршрут ссылается на зарегистрированный обработчик.
func (r *Router) Validate(routes []domain.Route) error {
	var missing []string
	seen := make(map[string]bool)

	for _, route := range routes {
		if seen[route.HandlerName] {
			continue
		}
		seen[route.HandlerName] = true

		if _, err := r.Get(route.HandlerName); err != nil {
			missing = append(missing, route.HandlerName)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingHandlers, strings.Join(missing, ", "))
	}
	return nil
}
