package gateway

import (
	"encoding/json"

	"github.com/shaiso/gateway-worker/internal/domain"
)

// --- Request types ---

type registerRequest struct {
	ServiceID         string            `json:"service_id"`
	ServiceProcess    string            `json:"service_process"`
	SystemInformation domain.SystemInfo `json:"system_information"`
	RoutingTable      []domain.Route    `json:"routing_table"`
}

type heartbeatRequest struct {
	ServiceToken      string            `json:"service_token"`
	SystemInformation domain.SystemInfo `json:"system_information"`
}

type deregisterRequest struct {
	ServiceToken string `json:"service_token"`
	ExitCause    string `json:"exit_cause"`
}

// --- Response types ---

// envelope — общий конверт ответов gateway.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type registerData struct {
	Service struct {
		Token string `json:"token"`
	} `json:"service"`
	Gateway struct {
		// Heartbeat — интервал в миллисекундах.
		Heartbeat int64 `json:"heartbeat"`
	} `json:"gateway"`
	AMQP domain.BrokerParams `json:"amqp"`
}

type heartbeatData struct {
	ServiceToken string `json:"service_token"`
}
