package domain

// ServiceIdentity — неизменяемое описание сервиса.
//
// Создаётся один раз при старте процесса и не меняется:
// отправляется в gateway при каждой регистрации.
type ServiceIdentity struct {
	// ServiceID — идентификатор сервиса в gateway.
	ServiceID string `json:"service_id"`

	// MachineID — идентификатор экземпляра (машины), на котором запущен процесс.
	MachineID string `json:"service_process"`

	// Routes — таблица маршрутов, которые сервис обслуживает.
	Routes []Route `json:"routing_table"`
}

// Route — операция, которую сервис публикует через gateway.
type Route struct {
	Method      string `json:"method" yaml:"method"`
	Path        string `json:"path" yaml:"path"`
	Description string `json:"description" yaml:"description"`

	// HandlerName — имя обработчика, который вызывается для work package.
	HandlerName string `json:"handler_name" yaml:"handler_name"`

	// Флаги авторизации, проверяются gateway до постановки в очередь.
	AuthUser     bool   `json:"auth_user" yaml:"auth_user"`
	AuthResource string `json:"auth_resource,omitempty" yaml:"auth_resource"`
	AuthAction   string `json:"auth_action,omitempty" yaml:"auth_action"`

	// JSON Schema для query и body.
	QueryValidation map[string]any `json:"query_validation" yaml:"query_validation"`
	BodyValidation  map[string]any `json:"body_validation" yaml:"body_validation"`

	// Invoicing — метаданные биллинга.
	Invoicing []InvoiceItem `json:"invoicing,omitempty" yaml:"invoicing"`
}

// InvoiceItem — позиция биллинга для маршрута.
type InvoiceItem struct {
	SKU        string  `json:"sku" yaml:"sku"`
	Name       string  `json:"name" yaml:"name"`
	PriceNet   float64 `json:"price_net" yaml:"price_net"`
	TaxPercent float64 `json:"tax_percent" yaml:"tax_percent"`
	Quantity   int     `json:"quantity" yaml:"quantity"`
}

// HandlerNames возвращает имена обработчиков из таблицы маршрутов.
func (id ServiceIdentity) HandlerNames() []string {
	names := make([]string, 0, len(id.Routes))
	seen := make(map[string]bool, len(id.Routes))
	for _, r := range id.Routes {
		if r.HandlerName == "" || seen[r.HandlerName] {
			continue
		}
		seen[r.HandlerName] = true
		names = append(names, r.HandlerName)
	}
	return names
}
