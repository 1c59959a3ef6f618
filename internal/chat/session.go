// Package chat implements the Sentinel assistant conversation.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrRequestPending = errors.New("a reply is still pending")
)

const (
	GreetingID = "init"
	Greeting   = "Greetings! I am Sentinel, your security guide. I can help you understand vulnerabilities, interpret scan results, or navigate the WebSec platform. How can I assist?"

	emptyReplyFallback = "I'm experiencing a momentary uplink error. Please retry."
	errorReplyFallback = "I'm having trouble connecting to the mainframe. Please try again."
)

const sentinelPrompt = `You are 'Sentinel', the AI Security Guide for the 'WebSec-AI' platform.

YOUR ROLE:
1. Guide users on how to use WebSec-AI (features: Scanner, Intelligence, Live Monitor).
2. Educate users about cybersecurity concepts (SQLi, XSS, OWASP Top 10) in simple terms.
3. Explain findings if they paste a vulnerability description.

PLATFORM KNOWLEDGE:
- 'Scanner': Performs DAST (URL) and SAST (Source Code) analysis.
- 'Intelligence': Shows real-world verified CVEs.
- 'Live Monitor': Shows local client telemetry (ping, FPS, connection).
- 'History': Stores past scans locally.

TONE: Professional, encouraging, slightly 'cyber-themed' but very accessible to beginners.
Keep answers concise (max 3 sentences unless asked for detail).`

// SystemPrompt returns the Sentinel persona instructions.
func SystemPrompt() string { return sentinelPrompt }

// Session holds one append-only transcript. Only one request may be in
// flight at a time.
type Session struct {
	llm    schemas.LLMClient
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	transcript []schemas.ChatMessage
	pending    bool
}

// NewSession starts a transcript seeded with the Sentinel greeting.
func NewSession(llm schemas.LLMClient, logger *zap.Logger) *Session {
	s := &Session{
		llm:    llm,
		logger: logger.Named("chat"),
		now:    time.Now,
	}
	s.transcript = []schemas.ChatMessage{{
		ID:        GreetingID,
		Role:      schemas.RoleAI,
		Content:   Greeting,
		Timestamp: s.now(),
	}}
	return s
}

// Send appends the user's message, asks the assistant and appends its reply.
// Generation failures are replaced with a fixed apology and never returned.
func (s *Session) Send(ctx context.Context, text string) (*schemas.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return nil, ErrRequestPending
	}
	prior := make([]schemas.ChatMessage, len(s.transcript))
	copy(prior, s.transcript)
	s.transcript = append(s.transcript, schemas.ChatMessage{
		ID:        uuid.NewString(),
		Role:      schemas.RoleUser,
		Content:   text,
		Timestamp: s.now(),
	})
	s.pending = true
	s.mu.Unlock()

	reply := s.ask(ctx, prior, text)

	msg := schemas.ChatMessage{
		ID:        uuid.NewString(),
		Role:      schemas.RoleAI,
		Content:   reply,
		Timestamp: s.now(),
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, msg)
	s.pending = false
	s.mu.Unlock()

	return &msg, nil
}

func (s *Session) ask(ctx context.Context, prior []schemas.ChatMessage, text string) string {
	req := schemas.GenerationRequest{
		SystemPrompt: sentinelPrompt,
		UserPrompt:   FlattenPrompt(prior, text),
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{Temperature: 0.7},
	}

	reply, err := s.llm.Generate(ctx, req)
	if err != nil {
		s.logger.Error("Assistant request failed", zap.Error(err))
		return errorReplyFallback
	}
	if strings.TrimSpace(reply) == "" {
		s.logger.Warn("Assistant returned an empty reply")
		return emptyReplyFallback
	}
	return strings.TrimSpace(reply)
}

// FlattenPrompt renders the prior transcript and the new message as a single
// conversational prompt ending with the assistant's turn.
func FlattenPrompt(prior []schemas.ChatMessage, text string) string {
	var b strings.Builder
	b.WriteString("Conversation History:\n")
	for _, m := range prior {
		if m.Role == schemas.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Sentinel: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(text)
	b.WriteString("\nSentinel:")
	return b.String()
}

// Transcript returns a copy of every message so far.
func (s *Session) Transcript() []schemas.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Pending reports whether a reply is outstanding.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
