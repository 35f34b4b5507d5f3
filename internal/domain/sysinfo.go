package domain

// SystemInfo — снимок метрик хоста, отправляется при регистрации и heartbeat.
type SystemInfo struct {
	Platform       string  `json:"platform"`
	FreeMemPercent float64 `json:"free_mem_percent"`

	// ServiceUptime — время жизни процесса в секундах.
	ServiceUptime float64 `json:"service_uptime"`

	// CPUUsage — доля занятого CPU (0..1) за окно измерения.
	CPUUsage float64 `json:"cpu_usage"`
}
