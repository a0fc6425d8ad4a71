package http

import (
	"github.com/nats-io/nats.go"

	"github.com/lukagarbi/doorstep/internal/adapters/postgres"
	"github.com/lukagarbi/doorstep/internal/adapters/valkey"
	"github.com/lukagarbi/doorstep/internal/core/usecases"
)

// Dependencies holds everything the HTTP handlers need. Territories and
// Detector must be set; NATS, DB, and Cache may be nil, which degrades the
// websocket relay, the stats endpoint, and the readiness probe.
type Dependencies struct {
	Territories *usecases.TerritoryService
	Detector    *usecases.DetectionService
	NATS        *nats.Conn
	DB          *postgres.DB
	Cache       *valkey.Cache
}
