// Package handler — подключаемая бизнес-логика сервиса.
//
// Router выбирает обработчик по полю handler_name work package.
// Имена совпадают с handler_name в таблице маршрутов, которую сервис
// отправляет в gateway при регистрации.
//
// Встроенные обработчики:
//   - echo  — возвращает work package без изменений
//   - delay — ждёт duration_sec секунд (учитывает отмену context)
//
// Ошибки обработчиков не выходят за пределы Worker: он превращает их
// в FailureResult и всё равно отвечает и подтверждает сообщение.
package handler
