package sysinfo

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// machineIDPaths — стандартные расположения machine-id.
var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// MachineID возвращает идентификатор машины.
//
// Читает первый доступный machine-id; если ни одного нет —
// генерирует случайный UUID (идентификатор живёт до конца процесса).
func MachineID(paths ...string) string {
	if len(paths) == 0 {
		paths = machineIDPaths
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		raw := strings.TrimSpace(string(data))
		if raw == "" {
			continue
		}
		// machine-id — 32 hex символа; приводим к виду UUID, если возможно
		if id, err := uuid.Parse(raw); err == nil {
			return id.String()
		}
		return raw
	}

	return uuid.New().String()
}
