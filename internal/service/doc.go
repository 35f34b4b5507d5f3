// Package service связывает gateway, брокер и обработчики в один цикл жизни процесса.
//
// Lifecycle проходит состояния:
//
//	unregistered → registering → active → (сбой heartbeat) → unregistered → ...
//	                                    → shutting_down → terminated
//
// В active держится ровно одна сессия. Heartbeat идёт последовательно:
// следующий вызов планируется только после завершения предыдущего,
// а новый токен используется уже в следующем вызове. При сбое heartbeat
// брокер останавливается до того, как начнётся новая регистрация.
package service
