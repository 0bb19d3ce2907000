package supportagent_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/habiliai/supportagent"
	"github.com/habiliai/supportagent/agent"
	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/internal/mylog"
	"github.com/habiliai/supportagent/internal/mytesting"
	"github.com/habiliai/supportagent/model/modeltest"
	"github.com/habiliai/supportagent/tool"
)

type staticSearcher string

func (s staticSearcher) Search(context.Context, string) (string, error) {
	return string(s), nil
}

type SupportAgentTestSuite struct {
	mytesting.Suite

	conf  *config.Config
	model *modeltest.Model
	sa    *supportagent.SupportAgent
}

func offlineConfig(t *testing.T) *config.Config {
	conf := config.NewConfig()
	conf.Embedding.Provider = config.EmbeddingProviderLexical
	conf.Embedding.CacheMaxCost = 0
	conf.Memory.Store = config.MemoryStoreMemory
	conf.Agent.Checkpointer = config.CheckpointerMemory
	conf.Tools.Timezone = "UTC"
	conf.Database.Path = t.TempDir() + "/support.db"
	return conf
}

func (s *SupportAgentTestSuite) SetupTest() {
	s.Suite.SetupTest()

	s.conf = offlineConfig(s.T())
	s.model = &modeltest.Model{}
	s.sa = s.newSupportAgent()
}

func (s *SupportAgentTestSuite) TearDownTest() {
	s.sa.Close()
	s.Suite.TearDownTest()
}

func (s *SupportAgentTestSuite) newSupportAgent(opts ...supportagent.Option) *supportagent.SupportAgent {
	opts = append([]supportagent.Option{
		supportagent.WithLogger(mylog.Discard()),
		supportagent.WithModel(s.model),
		supportagent.WithClock(func() time.Time {
			return time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
		}),
	}, opts...)
	sa, err := supportagent.New(s, s.conf, opts...)
	s.Require().NoError(err)
	return sa
}

func (s *SupportAgentTestSuite) onInvoke(out string) {
	s.model.On("Invoke", mock.Anything, mock.Anything).Return(out, nil).Once()
}

func (s *SupportAgentTestSuite) TestDefaultTools() {
	s.Equal([]string{
		tool.StoreMemoryToolName,
		tool.RetrieveMemoryToolName,
		tool.UpdateMemoryToolName,
		tool.WebSearchToolName,
		tool.DateTimeToolName,
	}, s.sa.Registry().Names())
}

func (s *SupportAgentTestSuite) TestOptionalToolsFollowConfig() {
	s.conf.Tools.Weather.APIKey = "weather-key"
	s.conf.Tools.Feeds = []string{"https://shop.example.com/news.xml"}

	sa := s.newSupportAgent(supportagent.WithTools(
		tool.New("order_status", "Looks up an order.", nil, func(context.Context, string) (string, error) {
			return "shipped", nil
		}),
	))
	defer sa.Close()

	names := sa.Registry().Names()
	s.Contains(names, tool.GetWeatherToolName)
	s.Contains(names, tool.AnnouncementsToolName)
	s.Equal("order_status", names[len(names)-1])
}

func (s *SupportAgentTestSuite) TestRememberAndRecallAcrossTurns() {
	thread, err := s.sa.NewThread(s, "u1")
	s.Require().NoError(err)
	s.True(strings.HasPrefix(thread.ID, "customer_"))

	s.onInvoke(`Thought: Do I need to use a tool? Yes
Action: store_memory
Action Input: {"content": "User prefers coffee over tea", "user_id": "u1", "importance": "high"}`)
	s.onInvoke("Final Answer: Noted, you prefer coffee.")
	s.onInvoke(`Action: retrieve_memory
Action Input: {"query": "coffee preference", "user_id": "u1", "similarity_threshold": 0.5}`)
	s.onInvoke("Final Answer: You prefer coffee over tea.")

	res, err := s.sa.Chat(s, thread.ID, "u1", "I like coffee more than tea")
	s.Require().NoError(err)
	s.Equal("Noted, you prefer coffee.", res.Answer)
	s.Equal(1, res.ToolRounds)

	res, err = s.sa.Chat(s, thread.ID, "u1", "What do I like to drink?")
	s.Require().NoError(err)
	s.Equal("You prefer coffee over tea.", res.Answer)

	msgs, err := s.sa.Messages(s, thread.ID)
	s.Require().NoError(err)
	s.Require().Len(msgs, 8)
	s.Equal(agent.RoleTool, msgs[2].Role)
	s.Equal("Memory stored successfully with ID 1. Content: 'User prefers coffee over tea...'", msgs[2].Content)
	s.Equal(agent.RoleTool, msgs[6].Role)
	s.Contains(msgs[6].Content, "Retrieved memories:")
	s.Contains(msgs[6].Content, "Content: User prefers coffee over tea")
	s.Contains(msgs[6].Content, "Similarity: 0.632")
	s.Contains(msgs[6].Content, "high importance")

	memories, err := s.sa.Memory().List(s, "u1")
	s.Require().NoError(err)
	s.Len(memories, 1)

	threads, err := s.sa.Threads().List(s, 10)
	s.Require().NoError(err)
	s.Require().Len(threads, 1)
	s.Equal(thread.ID, threads[0].ID)
}

func (s *SupportAgentTestSuite) TestWebSearchUsesSearcher() {
	sa := s.newSupportAgent(supportagent.WithSearcher(staticSearcher("Source: https://shop.example.com/returns\nReturns within 30 days.")))
	defer sa.Close()

	s.onInvoke("Action: web_search\nAction Input: return policy")
	s.onInvoke("Final Answer: You can return unused items within 30 days.")

	_, err := sa.Chat(s, "customer_websrch1", "u1", "What is your return policy?")
	s.Require().NoError(err)

	msgs, err := sa.Messages(s, "customer_websrch1")
	s.Require().NoError(err)
	s.Contains(msgs[2].Content, "Returns within 30 days.")
}

func (s *SupportAgentTestSuite) TestChatStream() {
	s.onInvoke("Final Answer: We are open 9 AM to 7 PM.")
	s.model.On("Stream", mock.Anything, mock.Anything).
		Return([]string{"Final Answer: We are open ", "9 AM to 7 PM."}, nil).Once()

	var chunks []string
	res, err := s.sa.ChatStream(s, "customer_stream01", "u1", "Hours?", func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	s.Require().NoError(err)
	s.True(res.Streamed)
	s.Equal("We are open 9 AM to 7 PM.", res.Answer)
	s.Equal([]string{"Final Answer: We are open ", "9 AM to 7 PM."}, chunks)
}

func (s *SupportAgentTestSuite) TestMessagesOfUnknownThread() {
	_, err := s.sa.Messages(s, "customer_nothere")
	s.ErrorIs(err, errors.ErrNotFound)

	thread, err := s.sa.NewThread(s, "u1")
	s.Require().NoError(err)
	msgs, err := s.sa.Messages(s, thread.ID)
	s.Require().NoError(err)
	s.Empty(msgs)
}

func (s *SupportAgentTestSuite) TestChatRequiresThreadID() {
	_, err := s.sa.Chat(s, "", "u1", "hello")
	s.ErrorIs(err, errors.ErrInvalidParams)
}

func TestSupportAgent(t *testing.T) {
	suite.Run(t, new(SupportAgentTestSuite))
}

func TestSqlitePersistenceSurvivesRestart(t *testing.T) {
	conf := offlineConfig(t)
	conf.Agent.Checkpointer = config.CheckpointerSqlite

	m := &modeltest.Model{}
	m.On("Invoke", mock.Anything, mock.Anything).Return("Final Answer: Hello!", nil).Once()

	ctx := context.Background()
	sa, err := supportagent.New(ctx, conf, supportagent.WithModel(m), supportagent.WithLogger(mylog.Discard()))
	require.NoError(t, err)
	_, err = sa.Chat(ctx, "customer_persist1", "u1", "hi")
	sa.Close()
	require.NoError(t, err)

	sa, err = supportagent.New(ctx, conf, supportagent.WithModel(m), supportagent.WithLogger(mylog.Discard()))
	require.NoError(t, err)
	defer sa.Close()

	msgs, err := sa.Messages(ctx, "customer_persist1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello!", msgs[1].Content)

	threads, err := sa.Threads().List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "u1", threads[0].UserID)
}
