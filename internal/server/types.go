// File: internal/server/types.go
package server

import (
	"context"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/events"
	"github.com/xkilldash9x/websec-cli/internal/orchestrator"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Status string      `json:"status"` // "success", "error", "accepted"
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ScanService is the scan lifecycle as seen by the API (satisfied by *orchestrator.Orchestrator).
type ScanService interface {
	Start(ctx context.Context, req schemas.ScanRequest) (<-chan struct{}, error)
	Snapshot() orchestrator.Snapshot
	Dismiss() error
	Load(result schemas.ScanResult) error
	Subscribe() (<-chan events.Message, func())
}

// HistoryService is the saved-report store (satisfied by *history.Store).
type HistoryService interface {
	List(ctx context.Context) []schemas.ScanResult
	Get(ctx context.Context, timestamp string) (schemas.ScanResult, bool)
	Remove(ctx context.Context, timestamp string) bool
	Clear(ctx context.Context)
}

// ChatService is the assistant conversation (satisfied by *chat.Session).
type ChatService interface {
	Send(ctx context.Context, text string) (*schemas.ChatMessage, error)
	Transcript() []schemas.ChatMessage
}
