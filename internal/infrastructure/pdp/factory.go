package pdp

import (
	"fmt"

	"github.com/facturio/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewConnector builds the connector selected by configuration.
func NewConnector(cfg config.PDPConfig, logger *zap.Logger) (Connector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Connector {
	case "", "noop":
		return NewNoopConnector(cfg.PlatformID), nil
	case "simulated":
		return NewSimulatedConnector(cfg.PlatformID, WithSimulatedLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown pdp connector %q (supported: noop, simulated)", cfg.Connector)
	}
}
