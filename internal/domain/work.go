package domain

// WorkPackage — распарсенное тело входящего сообщения.
//
// Структура определяется gateway; ядро читает только поле handler_name,
// остальное передаётся обработчику как есть.
type WorkPackage map[string]any

// HandlerName возвращает имя обработчика из work package.
func (p WorkPackage) HandlerName() string {
	if name, ok := p["handler_name"].(string); ok {
		return name
	}
	return ""
}

// FailureResult — ответ, который публикуется вместо результата,
// если обработчик завершился ошибкой.
type FailureResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// NewFailureResult создаёт FailureResult из ошибки.
func NewFailureResult(err error) FailureResult {
	return FailureResult{OK: false, Error: err.Error()}
}
