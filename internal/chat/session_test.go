package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/chat"
	"github.com/xkilldash9x/websec-cli/internal/mocks"
)

func newSession(t *testing.T, llm schemas.LLMClient) (*chat.Session, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return chat.NewSession(llm, zap.New(core)), logs
}

func TestNewSession_Greeting(t *testing.T) {
	s, _ := newSession(t, new(mocks.MockLLMClient))

	transcript := s.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, chat.GreetingID, transcript[0].ID)
	assert.Equal(t, schemas.RoleAI, transcript[0].Role)
	assert.Equal(t, chat.Greeting, transcript[0].Content)
	assert.False(t, s.Pending())
}

func TestSend_Reply(t *testing.T) {
	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Tier == schemas.TierFast &&
			req.SystemPrompt == chat.SystemPrompt() &&
			strings.HasPrefix(req.UserPrompt, "Conversation History:\nSentinel: Greetings!") &&
			strings.HasSuffix(req.UserPrompt, "User: What is XSS?\nSentinel:")
	})).Return("  Cross-site scripting injects script into pages.  ", nil).Once()

	s, _ := newSession(t, llm)
	reply, err := s.Send(context.Background(), "What is XSS?")
	require.NoError(t, err)
	assert.Equal(t, "Cross-site scripting injects script into pages.", reply.Content)
	assert.Equal(t, schemas.RoleAI, reply.Role)

	transcript := s.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, schemas.RoleUser, transcript[1].Role)
	assert.Equal(t, "What is XSS?", transcript[1].Content)
	assert.NotEqual(t, transcript[1].ID, transcript[2].ID)
	assert.Equal(t, reply.ID, transcript[2].ID)
	assert.False(t, s.Pending())
	llm.AssertExpectations(t)
}

func TestSend_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		want    string
		wantLog string
	}{
		{"empty reply", "   ", nil, "I'm experiencing a momentary uplink error. Please retry.", "Assistant returned an empty reply"},
		{"generation error", "", errors.New("status 503"), "I'm having trouble connecting to the mainframe. Please try again.", "Assistant request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := new(mocks.MockLLMClient)
			llm.On("Generate", mock.Anything, mock.Anything).Return(tt.reply, tt.err)

			s, logs := newSession(t, llm)
			reply, err := s.Send(context.Background(), "hello")
			require.NoError(t, err, "generation failures are never returned")
			assert.Equal(t, tt.want, reply.Content)
			assert.Equal(t, 1, logs.FilterMessage(tt.wantLog).Len())

			for _, m := range s.Transcript() {
				assert.NotContains(t, m.Content, "503")
			}
		})
	}
}

func TestSend_RejectsEmptyMessage(t *testing.T) {
	llm := new(mocks.MockLLMClient)
	s, _ := newSession(t, llm)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := s.Send(context.Background(), text)
		assert.ErrorIs(t, err, chat.ErrEmptyMessage)
	}
	assert.Len(t, s.Transcript(), 1)
	llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestSend_RejectsWhilePending(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	started := make(chan struct{})
	llm := new(mocks.MockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return("ok", nil).Once()

	s, _ := newSession(t, llm)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Send(context.Background(), "first")
		assert.NoError(t, err)
	}()

	<-started
	assert.True(t, s.Pending())
	_, err := s.Send(context.Background(), "second")
	assert.ErrorIs(t, err, chat.ErrRequestPending)
	assert.Len(t, s.Transcript(), 2, "rejected message is not appended")

	close(release)
	wg.Wait()
	assert.False(t, s.Pending())
	assert.Len(t, s.Transcript(), 3)
}

func TestFlattenPrompt(t *testing.T) {
	prior := []schemas.ChatMessage{
		{Role: schemas.RoleAI, Content: "hi"},
		{Role: schemas.RoleUser, Content: "what is SQLi?"},
		{Role: schemas.RoleAI, Content: "an injection flaw"},
	}
	got := chat.FlattenPrompt(prior, "thanks")
	assert.Equal(t, "Conversation History:\nSentinel: hi\nUser: what is SQLi?\nSentinel: an injection flaw\nUser: thanks\nSentinel:", got)
}
