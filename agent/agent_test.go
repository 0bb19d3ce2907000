package agent_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/habiliai/supportagent/agent"
	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/internal/mylog"
	"github.com/habiliai/supportagent/internal/mytesting"
	"github.com/habiliai/supportagent/model/modeltest"
	"github.com/habiliai/supportagent/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
		// started at init by glog, which the embedding cache imports
		goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"),
	)
}

type echoArgs struct {
	Text string `json:"text"`
}

type AgentTestSuite struct {
	mytesting.Suite

	model        *modeltest.Model
	checkpointer *agent.InMemoryCheckpointer
	executor     *tool.Executor
	now          time.Time
}

func (s *AgentTestSuite) SetupTest() {
	s.Suite.SetupTest()

	s.model = &modeltest.Model{}
	s.checkpointer = agent.NewInMemoryCheckpointer()
	s.now = time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)

	registry, err := tool.NewRegistry(
		tool.New("echo", "Echoes the text back.", echoArgs{}, func(_ context.Context, input string) (string, error) {
			return "echo: " + input, nil
		}),
		tool.New("explode", "Always fails.", nil, func(context.Context, string) (string, error) {
			return "", errors.New("boom")
		}),
	)
	s.Require().NoError(err)
	s.executor = tool.NewExecutor(registry, time.Second, mylog.Discard())
}

func (s *AgentTestSuite) newAgent(opts ...agent.Option) *agent.Agent {
	opts = append([]agent.Option{
		agent.WithClock(func() time.Time { return s.now }),
	}, opts...)
	a, err := agent.New(s.model, s.executor, s.checkpointer, opts...)
	s.Require().NoError(err)
	return a
}

func (s *AgentTestSuite) onInvoke(out string) {
	s.model.On("Invoke", mock.Anything, mock.Anything).Return(out, nil).Once()
}

func (s *AgentTestSuite) TestProseTurnEndsWithOneAssistantTurn() {
	s.onInvoke("Hello! Our store is open Monday to Saturday, 9 AM to 7 PM.")

	res, err := s.newAgent().Run(s, agent.Request{ThreadID: "customer_a", UserID: "alice", Message: "When are you open?"})
	s.Require().NoError(err)

	s.Equal("Hello! Our store is open Monday to Saturday, 9 AM to 7 PM.", res.Answer)
	s.Equal(0, res.ToolRounds)
	s.False(res.Streamed)

	state, err := s.checkpointer.Load(s, "customer_a")
	s.Require().NoError(err)
	s.Require().Len(state.Messages, 2)
	s.Equal(agent.RoleUser, state.Messages[0].Role)
	s.Equal(agent.RoleAssistant, state.Messages[1].Role)
	s.Empty(state.NextAction)
	s.Empty(state.PendingActions)
	s.model.AssertNumberOfCalls(s.T(), "Invoke", 1)
}

func (s *AgentTestSuite) TestFinalAnswerIsCleaned() {
	s.onInvoke("Thought: Do I need to use a tool? No\nFinal Answer: Returns are accepted within 30 days.")

	res, err := s.newAgent().Run(s, agent.Request{ThreadID: "customer_a", Message: "Return policy?"})
	s.Require().NoError(err)
	s.Equal("Returns are accepted within 30 days.", res.Answer)
}

func (s *AgentTestSuite) TestToolRoundFeedsObservationBack() {
	s.onInvoke("Thought: Do I need to use a tool? Yes\nAction: echo\nAction Input: {\"text\": \"hi\"}")
	s.onInvoke("Thought: Do I need to use a tool? No\nFinal Answer: The tool said hi.")

	res, err := s.newAgent().Run(s, agent.Request{ThreadID: "customer_a", UserID: "alice", Message: "say hi"})
	s.Require().NoError(err)
	s.Equal("The tool said hi.", res.Answer)
	s.Equal(1, res.ToolRounds)

	state, err := s.checkpointer.Load(s, "customer_a")
	s.Require().NoError(err)
	s.Require().Len(state.Messages, 4)
	s.Equal(agent.RoleAssistant, state.Messages[1].Role)
	s.Contains(state.Messages[1].Content, "Action: echo")
	s.Equal(agent.RoleTool, state.Messages[2].Role)
	s.Equal("echo", state.Messages[2].ToolCallID)
	s.Equal(`echo: {"text": "hi"}`, state.Messages[2].Content)
	s.Equal("The tool said hi.", state.Messages[3].Content)

	prompts := s.model.Invokes()
	s.Require().Len(prompts, 2)
	s.NotContains(prompts[0].User, "Observation: echo")
	s.Contains(prompts[1].User, "Action: echo")
	s.Contains(prompts[1].User, `Observation: echo: {"text": "hi"}`)
	s.Contains(prompts[1].User, "Current question: say hi")
	s.Contains(prompts[1].User, "Current user id: alice")
}

func (s *AgentTestSuite) TestToolErrorsBecomeObservations() {
	s.onInvoke("Action: nope\nAction Input: {}")
	s.onInvoke("Action: explode\nAction Input: now")
	s.onInvoke("Action: echo\nAction Input:   ")
	s.onInvoke("Final Answer: sorry")

	res, err := s.newAgent().Run(s, agent.Request{ThreadID: "customer_a", Message: "break things"})
	s.Require().NoError(err)
	s.Equal("sorry", res.Answer)
	s.Equal(3, res.ToolRounds)

	state, err := s.checkpointer.Load(s, "customer_a")
	s.Require().NoError(err)

	var observations []string
	for _, msg := range state.Messages {
		if msg.Role == agent.RoleTool {
			observations = append(observations, msg.Content)
		}
	}
	s.Equal([]string{
		"Error: Failed to execute tool nope: tool 'nope' not found in registry",
		"Error: Failed to execute tool explode: boom",
		agent.MalformedToolCallMessage,
	}, observations)
}

func (s *AgentTestSuite) TestToolRoundLimitEndsWithFallback() {
	s.model.On("Invoke", mock.Anything, mock.Anything).Return("Action: echo\nAction Input: again", nil)

	conf := config.NewAgentConfig()
	conf.MaxToolRounds = 2
	conf.FallbackAnswer = "Please contact support."

	res, err := s.newAgent(agent.WithConfig(conf)).Run(s, agent.Request{ThreadID: "customer_a", Message: "loop forever"})
	s.Require().NoError(err)
	s.Equal("Please contact support.", res.Answer)
	s.Equal(2, res.ToolRounds)
	s.model.AssertNumberOfCalls(s.T(), "Invoke", 3)

	state, err := s.checkpointer.Load(s, "customer_a")
	s.Require().NoError(err)
	last := state.Messages[len(state.Messages)-1]
	s.Equal(agent.RoleAssistant, last.Role)
	s.Equal("Please contact support.", last.Content)
	s.Empty(state.PendingActions)
}

func (s *AgentTestSuite) TestStreamBuildsAnswerFromChunks() {
	s.onInvoke("Final Answer: draft answer")
	s.model.On("Stream", mock.Anything, mock.Anything).
		Return([]string{"Thought: Do I need to use a tool? No\n", "Final Answer: ", "Free shipping ", "over $50."}, nil).Once()

	var chunks []string
	res, err := s.newAgent().Stream(s, agent.Request{ThreadID: "customer_a", Message: "Shipping?"}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	s.Require().NoError(err)
	s.True(res.Streamed)
	s.Equal("Free shipping over $50.", res.Answer)
	s.Len(chunks, 4)

	msgs, err := s.newAgent().Messages(s, "customer_a")
	s.Require().NoError(err)
	s.Equal("Free shipping over $50.", msgs[len(msgs)-1].Content)
}

func (s *AgentTestSuite) TestStreamFailureFallsBackToFullAnswer() {
	s.onInvoke("Final Answer: draft answer")
	s.model.On("Stream", mock.Anything, mock.Anything).
		Return([]string{"Final Ans"}, errors.New("connection reset")).Once()

	res, err := s.newAgent().Stream(s, agent.Request{ThreadID: "customer_a", Message: "Shipping?"}, func(string) error {
		return nil
	})
	s.Require().NoError(err)
	s.False(res.Streamed)
	s.Equal("draft answer", res.Answer)
}

func (s *AgentTestSuite) TestStreamCancelledByCallerFallsBack() {
	s.onInvoke("Final Answer: draft answer")
	s.model.On("Stream", mock.Anything, mock.Anything).
		Return([]string{"Final ", "Answer: x"}, nil).Once()

	res, err := s.newAgent().Stream(s, agent.Request{ThreadID: "customer_a", Message: "Shipping?"}, func(string) error {
		return context.Canceled
	})
	s.Require().NoError(err)
	s.False(res.Streamed)
	s.Equal("draft answer", res.Answer)
}

func (s *AgentTestSuite) TestToolRoundsAreNotStreamed() {
	s.onInvoke("Action: echo\nAction Input: x")
	s.onInvoke("Final Answer: done")
	s.model.On("Stream", mock.Anything, mock.Anything).Return([]string{"done"}, nil).Once()

	var chunks []string
	res, err := s.newAgent().Stream(s, agent.Request{ThreadID: "customer_a", Message: "go"}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	s.Require().NoError(err)
	s.Equal("done", res.Answer)
	s.Equal([]string{"done"}, chunks)
	s.model.AssertNumberOfCalls(s.T(), "Stream", 1)
}

func (s *AgentTestSuite) TestModelFailureEndsTurnWithError() {
	s.model.On("Invoke", mock.Anything, mock.Anything).Return("", errors.New("backend unreachable")).Once()

	_, err := s.newAgent().Run(s, agent.Request{ThreadID: "customer_a", Message: "hello"})
	s.Require().Error(err)
	s.Contains(err.Error(), "backend unreachable")
}

func (s *AgentTestSuite) TestConversationResumesFromCheckpoint() {
	s.onInvoke("Final Answer: Nice to meet you, Alice.")
	s.onInvoke("Final Answer: You told me your name is Alice.")

	a := s.newAgent()
	_, err := a.Run(s, agent.Request{ThreadID: "customer_a", Message: "I am Alice"})
	s.Require().NoError(err)
	_, err = a.Run(s, agent.Request{ThreadID: "customer_a", Message: "What is my name?"})
	s.Require().NoError(err)

	prompts := s.model.Invokes()
	s.Require().Len(prompts, 2)
	s.Contains(prompts[1].User, "Human: I am Alice")
	s.Contains(prompts[1].User, "AI: Nice to meet you, Alice.")
	s.Contains(prompts[1].User, "Current question: What is my name?")

	msgs, err := a.Messages(s, "customer_a")
	s.Require().NoError(err)
	s.Len(msgs, 4)

	_, err = a.Messages(s, "customer_other")
	s.ErrorIs(err, errors.ErrNotFound)
}

func (s *AgentTestSuite) TestHistoryIsCappedInPrompt() {
	for i := 0; i < 3; i++ {
		s.onInvoke("Final Answer: ok " + strings.Repeat("!", i+1))
	}

	conf := config.NewAgentConfig()
	conf.MaxHistory = 2
	a := s.newAgent(agent.WithConfig(conf))
	for _, msg := range []string{"first", "second", "third"} {
		_, err := a.Run(s, agent.Request{ThreadID: "customer_a", Message: msg})
		s.Require().NoError(err)
	}

	prompts := s.model.Invokes()
	s.Require().Len(prompts, 3)
	s.NotContains(prompts[2].User, "Human: first")
	s.Contains(prompts[2].User, "Human: second")
	s.Contains(prompts[2].User, "AI: ok !!")

	msgs, err := a.Messages(s, "customer_a")
	s.Require().NoError(err)
	s.Len(msgs, 6)
}

func (s *AgentTestSuite) TestNodeSpans() {
	s.onInvoke("Action: echo\nAction Input: x")
	s.onInvoke("Final Answer: done")

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() {
		s.NoError(tp.Shutdown(context.Background()))
	}()

	_, err := s.newAgent(agent.WithTracerProvider(tp)).Run(s, agent.Request{ThreadID: "customer_a", Message: "go"})
	s.Require().NoError(err)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	s.Equal([]string{"agent.decide", "agent.tools", "agent.decide", "agent.respond"}, names)
}

func (s *AgentTestSuite) TestRequestValidation() {
	a := s.newAgent()

	_, err := a.Run(s, agent.Request{Message: "hi"})
	s.ErrorIs(err, errors.ErrInvalidParams)

	_, err = a.Run(s, agent.Request{ThreadID: "customer_a"})
	s.ErrorIs(err, errors.ErrInvalidParams)
}

func (s *AgentTestSuite) TestUnknownPromptIsRejected() {
	_, err := agent.New(s.model, s.executor, s.checkpointer, agent.WithPrompt("pirate"))
	s.ErrorIs(err, errors.ErrInvalidConfig)
}

func TestAgent(t *testing.T) {
	suite.Run(t, new(AgentTestSuite))
}
