// Package cli содержит вспомогательные команды gateway-worker.
//
// Команды создаются фабричными функциями, принимающими outputFn —
// замыкание для ленивого создания Output после парсинга PersistentFlags:
//   - routes: таблица маршрутов из SERVICE_ROUTES_FILE и наличие обработчиков
//   - version: версия сборки и идентификатор экземпляра
//
// Output поддерживает таблицы (text/tabwriter) и JSON (флаг --json).
// Данные выводятся в stdout, предупреждения — в stderr.
package cli
