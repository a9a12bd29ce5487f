package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roofing-insights/internal/model"
	"github.com/sells-group/roofing-insights/internal/resilience"
	"github.com/sells-group/roofing-insights/pkg/anthropic"
	"github.com/sells-group/roofing-insights/pkg/openai"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Completion), args.Error(1)
}

func textCompletion(text string) *Completion {
	return &Completion{Provider: "anthropic", Model: "claude-haiku-4-5-20251001", Text: text, InputTokens: 900, OutputTokens: 120}
}

const proseWrapped = "Here you go:\n" +
	`{"summary":"One job is over budget.","insights":[{"kind":"opportunity","title":"Referral push","body":"Ask Alder Court for a review."},{"kind":"risk","title":"Birch Lane over budget","body":"Actual cost exceeds budget by $500."}]}` +
	"\nHope that helps!"

func newTestAI(c Completer, cfg AIConfig) *AI {
	return NewAI(c, nil, nil, cfg)
}

func TestSummarize_ProseWrappedJSON(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.MatchedBy(func(req CompletionRequest) bool {
		return req.MaxTokens == 1024 && req.System != "" && req.User != ""
	})).Return(textCompletion(proseWrapped), nil)

	ai := newTestAI(c, AIConfig{})
	resp, err := ai.Summarize(context.Background(), orgCtx(3, 1, 0, "26.7"), sampleJobs(), model.LocaleEN)
	require.NoError(t, err)

	assert.Equal(t, model.SourceAI, resp.Source)
	assert.Equal(t, "One job is over budget.", resp.Summary)
	require.Len(t, resp.Insights, 2)
	assert.Equal(t, model.InsightRisk, resp.Insights[0].Kind)
	assert.Equal(t, model.InsightOpportunity, resp.Insights[1].Kind)
	c.AssertExpectations(t)
}

func TestSummarize_MissingInsightsIsFailure(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).Return(textCompletion(`{"summary":"Looks fine"}`), nil)

	_, err := newTestAI(c, AIConfig{}).Summarize(context.Background(), orgCtx(1, 0, 0, "5"), nil, model.LocaleEN)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAIFailure)
	assert.Contains(t, err.Error(), "no insights")
}

func TestSummarize_NoCompleter(t *testing.T) {
	ai := newTestAI(nil, AIConfig{})
	assert.False(t, ai.Enabled())

	_, err := ai.Summarize(context.Background(), orgCtx(1, 0, 0, "5"), nil, model.LocaleEN)
	assert.ErrorIs(t, err, ErrAIFailure)
}

func TestSummarize_UpstreamError(t *testing.T) {
	upstream := &resilience.UpstreamError{Provider: "anthropic", StatusCode: 500, Err: errors.New("boom")}
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).Return(nil, upstream)

	_, err := newTestAI(c, AIConfig{}).Summarize(context.Background(), orgCtx(1, 0, 0, "5"), nil, model.LocaleEN)
	assert.ErrorIs(t, err, ErrAIFailure)
	assert.ErrorIs(t, err, upstream)

	var fe *FailureError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, upstream, fe.Cause)
}

func TestSummarize_Timeout(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return(nil, context.DeadlineExceeded)

	start := time.Now()
	_, err := newTestAI(c, AIConfig{Timeout: 50 * time.Millisecond}).
		Summarize(context.Background(), orgCtx(1, 0, 0, "5"), nil, model.LocaleEN)
	assert.ErrorIs(t, err, ErrAIFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSummarize_GlobalThrottle(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).Return(textCompletion(proseWrapped), nil).Once()

	ai := newTestAI(c, AIConfig{GlobalRPM: 1})
	_, err := ai.Summarize(context.Background(), orgCtx(1, 0, 0, "5"), nil, model.LocaleEN)
	require.NoError(t, err)

	_, err = ai.Summarize(context.Background(), orgCtx(1, 0, 0, "5"), nil, model.LocaleEN)
	assert.ErrorIs(t, err, ErrAIFailure)
	assert.Contains(t, err.Error(), "throttle")
	c.AssertNumberOfCalls(t, "Complete", 1)
}

func TestSummarize_CircuitOpens(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).
		Return(nil, &resilience.UpstreamError{Provider: "openai", StatusCode: 503, Err: errors.New("unavailable")})

	ai := newTestAI(c, AIConfig{Breaker: resilience.Config{FailureThreshold: 2, ResetTimeout: time.Hour}})
	for i := 0; i < 2; i++ {
		_, err := ai.Summarize(context.Background(), orgCtx(1, 0, 0, "5"), nil, model.LocaleEN)
		require.ErrorIs(t, err, ErrAIFailure)
	}
	assert.Equal(t, resilience.Open, ai.CircuitState())

	_, err := ai.Summarize(context.Background(), orgCtx(1, 0, 0, "5"), nil, model.LocaleEN)
	assert.ErrorIs(t, err, resilience.ErrOpen)
	c.AssertNumberOfCalls(t, "Complete", 2)
}

func TestSummarize_MalformedOutputDoesNotTrip(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).Return(textCompletion("no json here"), nil)

	ai := newTestAI(c, AIConfig{Breaker: resilience.Config{FailureThreshold: 1}})
	for i := 0; i < 3; i++ {
		_, err := ai.Summarize(context.Background(), orgCtx(1, 0, 0, "5"), nil, model.LocaleEN)
		require.ErrorIs(t, err, ErrAIFailure)
	}
	assert.Equal(t, resilience.Closed, ai.CircuitState())
}

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func TestAnthropicCompleter(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 512 &&
			len(req.System) == 1 && req.System[0].Text == "sys" &&
			len(req.Messages) == 1 && req.Messages[0].Content == "usr"
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "{}"}},
		Usage:   anthropic.TokenUsage{InputTokens: 10, OutputTokens: 2},
	}, nil)

	c := NewAnthropicCompleter(client, "claude-haiku-4-5-20251001")
	out, err := c.Complete(context.Background(), CompletionRequest{System: "sys", User: "usr", MaxTokens: 512})
	require.NoError(t, err)
	assert.Equal(t, "{}", out.Text)
	assert.Equal(t, "anthropic", out.Provider)
	assert.Equal(t, 10, out.InputTokens)
	client.AssertExpectations(t)
}

func TestAnthropicCompleter_StatusError(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, &anthropic.APIError{StatusCode: 529, Err: errors.New("overloaded")})

	_, err := NewAnthropicCompleter(client, "m").Complete(context.Background(), CompletionRequest{})
	var ue *resilience.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 529, ue.StatusCode)
	assert.True(t, resilience.IsUpstreamFailure(err))
}

type mockOpenAI struct {
	mock.Mock
}

func (m *mockOpenAI) CreateChat(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.ChatResponse), args.Error(1)
}

func TestOpenAICompleter(t *testing.T) {
	client := &mockOpenAI{}
	client.On("CreateChat", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		return req.Model == "gpt-4o-mini" && req.JSONMode && req.System == "sys" && req.User == "usr"
	})).Return(&openai.ChatResponse{Content: `{"summary":"x"}`, InputTokens: 7, OutputTokens: 3}, nil)

	out, err := NewOpenAICompleter(client, "gpt-4o-mini").Complete(context.Background(), CompletionRequest{System: "sys", User: "usr"})
	require.NoError(t, err)
	assert.Equal(t, "openai", out.Provider)
	assert.Equal(t, `{"summary":"x"}`, out.Text)
	assert.Equal(t, 3, out.OutputTokens)
}

func TestOpenAICompleter_CallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &mockOpenAI{}
	client.On("CreateChat", mock.Anything, mock.Anything).Return(nil, errors.New("openai: create chat: context canceled"))

	_, err := NewOpenAICompleter(client, "m").Complete(ctx, CompletionRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, resilience.IsUpstreamFailure(err))
}
