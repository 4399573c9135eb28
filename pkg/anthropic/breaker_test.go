package anthropic

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hirelens/hirelens/internal/resilience"
)

func TestBreakerClient_RejectsWhenOpen(t *testing.T) {
	mc := new(MockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(eris.New("overloaded_error"), 529)).
		Times(2)

	client := NewBreakerClient(mc, resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 2,
		ShouldTrip:       resilience.IsTransient,
		Service:          "anthropic",
	}))

	req := MessageRequest{Model: "claude-sonnet-4-5-20250929", MaxTokens: 64}
	for i := 0; i < 2; i++ {
		_, err := client.CreateMessage(context.Background(), req)
		require.Error(t, err)
	}

	// Times(2) above would fail the test if this call reached the inner client.
	_, err := client.CreateMessage(context.Background(), req)
	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	mc.AssertExpectations(t)
}

func TestBreakerClient_PassesThroughWhenClosed(t *testing.T) {
	mc := new(MockClient)
	expected := &MessageResponse{ID: "msg_1", Content: []ContentBlock{{Type: "text", Text: "{}"}}}
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(expected, nil)

	client := NewBreakerClient(mc, resilience.NewBreaker(resilience.DefaultBreakerConfig("anthropic")))

	resp, err := client.CreateMessage(context.Background(), MessageRequest{MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, expected, resp)
}
