// Package sysinfo собирает метрики хоста для регистрации и heartbeat.
//
// Probe читает /proc через prometheus/procfs:
//   - meminfo — доля свободной памяти
//   - stat    — загрузка CPU за окно измерения
//   - self    — время старта процесса (uptime)
//
// На платформах без /proc отдельные поля остаются нулевыми,
// а Snapshot возвращает частичный результат вместе с ошибкой.
package sysinfo
