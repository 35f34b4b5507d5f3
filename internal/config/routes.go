package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/gateway-worker/internal/domain"
)

// ErrInvalidRoutes — файл маршрутов не разбирается или маршрут неполный.
var ErrInvalidRoutes = errors.New("invalid routes file")

// routesFile — формат файла маршрутов.
//
//	routes:
//	  - method: GET
//	    path: /location
//	    description: Send a mail to receiver
//	    handler_name: sendMail
//	    auth_user: true
//	    query_validation:
//	      type: object
//	    invoicing:
//	      - {sku: "1", name: Test, price_net: 1.0, tax_percent: 19, quantity: 1}
type routesFile struct {
	Routes []domain.Route `yaml:"routes"`
}

// LoadRoutes читает таблицу маршрутов из YAML-файла.
//
// Ошибка os.ErrNotExist пробрасывается как есть (через %w),
// чтобы вызывающий мог отличить отсутствующий файл от битого.
func LoadRoutes(path string) ([]domain.Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}
	return ParseRoutes(data)
}

// ParseRoutes разбирает таблицу маршрутов.
func ParseRoutes(data []byte) ([]domain.Route, error) {
	var f routesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoutes, err)
	}

	for i, r := range f.Routes {
		if r.Method == "" || r.Path == "" || r.HandlerName == "" {
			return nil, fmt.Errorf("%w: route %d: method, path and handler_name are required", ErrInvalidRoutes, i)
		}
		// Пустые схемы отправляются как {}, а не null
		if r.QueryValidation == nil {
			f.Routes[i].QueryValidation = map[string]any{}
		}
		if r.BodyValidation == nil {
			f.Routes[i].BodyValidation = map[string]any{}
		}
	}

	return f.Routes, nil
}
