// File: internal/service/components.go
package service

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/chat"
	"github.com/xkilldash9x/websec-cli/internal/engine"
	"github.com/xkilldash9x/websec-cli/internal/events"
	"github.com/xkilldash9x/websec-cli/internal/history"
	"github.com/xkilldash9x/websec-cli/internal/orchestrator"
)

// Components holds every service a command needs, wired against one
// configuration. The same set backs the CLI commands and the API server.
type Components struct {
	LLM          schemas.LLMClient
	History      *history.Store
	Engine       *engine.Engine
	Bus          *events.Bus
	Orchestrator *orchestrator.Orchestrator
	Chat         *chat.Session
	DBPool       *pgxpool.Pool

	logger *zap.Logger
}

// Shutdown releases the components in reverse dependency order. It is safe
// to call on a partially initialized set.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	// Background scans must settle before the bus closes their subscribers.
	if c.Orchestrator != nil {
		c.Orchestrator.Wait()
		logger.Debug("Background scans settled.")
	}

	if c.Bus != nil {
		c.Bus.Shutdown()
		logger.Debug("Event bus shut down.", zap.Int64("dropped_events", c.Bus.Dropped()))
	}

	if c.LLM != nil {
		if err := c.LLM.Close(); err != nil {
			logger.Warn("Error closing LLM client.", zap.Error(err))
		}
	}

	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Debug("All components shut down.")
}
