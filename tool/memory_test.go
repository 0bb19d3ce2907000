package tool_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/habiliai/supportagent/embedding"
	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/internal/mytesting"
	"github.com/habiliai/supportagent/memory"
	"github.com/habiliai/supportagent/tool"
)

type MemoryToolsTestSuite struct {
	mytesting.Suite

	executor *tool.Executor
}

func (s *MemoryToolsTestSuite) SetupTest() {
	s.Suite.SetupTest()

	provider := embedding.NewProvider(embedding.NewLexicalEncoder(768), 768, 0, s.Logger)
	service := memory.NewService(memory.NewInMemoryStore(), provider, s.Logger)

	registry, err := tool.NewRegistry(tool.NewMemoryTools(service, 3, 0.7).Tools()...)
	s.Require().NoError(err)
	s.executor = tool.NewExecutor(registry, 5*time.Second, s.Logger)
}

func (s *MemoryToolsTestSuite) TestCoffeeScenario() {
	out := s.executor.Execute(s, "store_memory", `{"content": "User prefers coffee over tea", "user_id": "u1", "importance": "medium"}`)
	s.Equal("Memory stored successfully with ID 1. Content: 'User prefers coffee over tea...'", out)

	out = s.executor.Execute(s, "retrieve_memory", `{"query": "coffee preference", "user_id": "u1", "similarity_threshold": 0.5}`)
	s.True(strings.HasPrefix(out, "Retrieved memories:\n1. [ID: 1, Similarity: "), out)
	s.Contains(out, "medium importance]")
	s.Contains(out, "   Content: User prefers coffee over tea\n")
	s.Contains(out, "   Stored: "+time.Now().Format("2006-01-02"))

	out = s.executor.Execute(s, "retrieve_memory", `{"query": "coffee preference", "user_id": "u2", "similarity_threshold": 0.5}`)
	s.Equal("No relevant memories found for query: coffee preference", out)
}

func (s *MemoryToolsTestSuite) TestRetrieveAcceptsStringNumbers() {
	s.executor.Execute(s, "store_memory", `{"content": "User prefers coffee over tea", "user_id": "u1"}`)

	out := s.executor.Execute(s, "retrieve_memory", `{"query": "coffee preference", "user_id": "u1", "top_k": "2", "similarity_threshold": "0.5"}`)
	s.Contains(out, "[ID: 1,")
}

func (s *MemoryToolsTestSuite) TestRetrieveUsesDefaultThreshold() {
	s.executor.Execute(s, "store_memory", `{"content": "User prefers coffee over tea", "user_id": "u1"}`)

	// the lexical similarity of this pair stays under the 0.7 default
	out := s.executor.Execute(s, "retrieve_memory", `{"query": "coffee preference", "user_id": "u1"}`)
	s.Equal("No relevant memories found for query: coffee preference", out)
}

func (s *MemoryToolsTestSuite) TestStoreValidation() {
	cases := map[string]string{
		`not json`:          `ERROR: Invalid JSON format. Please provide input as: {"content": "your text", "user_id": "user_id", "importance": "medium"}`,
		`[1, 2]`:            `ERROR: Invalid JSON format. Please provide input as: {"content": "your text", "user_id": "user_id", "importance": "medium"}`,
		`{"user_id": "u1"}`: `ERROR: Missing required field 'content'. Please provide: {"content": "your text", "user_id": "user_id"}`,
		`{"content": "x"}`:  `ERROR: Missing required field 'user_id'. Please provide: {"content": "your text", "user_id": "user_id"}`,
		`{"content": "x", "user_id": "u1", "importance": "top"}`: `ERROR: Invalid importance level. Must be 'low', 'medium', or 'high'`,
		`{"content": "  ", "user_id": "u1"}`:                     `ERROR: Content cannot be empty`,
		`{"content": "x", "user_id": " "}`:                       `ERROR: User ID cannot be empty`,
	}
	for input, expected := range cases {
		s.Equal(expected, s.executor.Execute(s, "store_memory", input), input)
	}
}

func (s *MemoryToolsTestSuite) TestRetrieveValidation() {
	cases := map[string]string{
		`not json`:                        `ERROR: Invalid JSON format. Please provide input as: {"query": "search text", "user_id": "user_id"}`,
		`{"user_id": "u1"}`:               `ERROR: Missing required field 'query'. Please provide: {"query": "search text", "user_id": "user_id"}`,
		`{"query": "q"}`:                  `ERROR: Missing required field 'user_id'. Please provide: {"query": "search text", "user_id": "user_id"}`,
		`{"query": " ", "user_id": "u1"}`: `ERROR: Query cannot be empty`,
		`{"query": "q", "user_id": ""}`:   `ERROR: User ID cannot be empty`,
		`{"query": "q", "user_id": "u1", "top_k": "many"}`:                `ERROR: top_k must be a valid integer`,
		`{"query": "q", "user_id": "u1", "top_k": 0}`:                     `ERROR: top_k must be a positive integer`,
		`{"query": "q", "user_id": "u1", "similarity_threshold": "high"}`: `ERROR: similarity_threshold must be a valid number`,
		`{"query": "q", "user_id": "u1", "similarity_threshold": 1.5}`:    `ERROR: similarity_threshold must be between 0.0 and 1.0`,
		`{"query": "q", "user_id": "u1", "similarity_threshold": -0.1}`:   `ERROR: similarity_threshold must be between 0.0 and 1.0`,
		`{"query": "q", "user_id": "u1", "similarity_threshold": "NaN"}`:  `ERROR: similarity_threshold must be between 0.0 and 1.0`,
	}
	for input, expected := range cases {
		s.Equal(expected, s.executor.Execute(s, "retrieve_memory", input), input)
	}
}

func (s *MemoryToolsTestSuite) TestUpdateValidation() {
	cases := map[string]string{
		`not json`:                                                  `ERROR: Invalid JSON format. Please provide input as: {"memory_id": 123, "new_content": "text", "user_id": "user_id"}`,
		`{"new_content": "x", "user_id": "u1"}`:                     `ERROR: Missing required field 'memory_id'. Please provide: {"memory_id": 123, "new_content": "text", "user_id": "user_id"}`,
		`{"memory_id": 1, "user_id": "u1"}`:                         `ERROR: Missing required field 'new_content'. Please provide: {"memory_id": 123, "new_content": "text", "user_id": "user_id"}`,
		`{"memory_id": 1, "new_content": "x"}`:                      `ERROR: Missing required field 'user_id'. Please provide: {"memory_id": 123, "new_content": "text", "user_id": "user_id"}`,
		`{"memory_id": "one", "new_content": "x", "user_id": "u1"}`: `ERROR: memory_id must be a valid integer`,
		`{"memory_id": -3, "new_content": "x", "user_id": "u1"}`:    `ERROR: memory_id must be a positive integer`,
		`{"memory_id": 1, "new_content": " ", "user_id": "u1"}`:     `ERROR: New content cannot be empty`,
		`{"memory_id": 1, "new_content": "x", "user_id": " "}`:      `ERROR: User ID cannot be empty`,
	}
	for input, expected := range cases {
		s.Equal(expected, s.executor.Execute(s, "update_memory", input), input)
	}
}

func (s *MemoryToolsTestSuite) TestUpdateRequiresOwner() {
	s.executor.Execute(s, "store_memory", `{"content": "Lives in Seoul", "user_id": "u1"}`)

	out := s.executor.Execute(s, "update_memory", `{"memory_id": 1, "new_content": "Lives in Busan", "user_id": "u2"}`)
	s.Equal("Memory 1 not found or access denied", out)

	out = s.executor.Execute(s, "update_memory", `{"memory_id": "1", "new_content": "Lives in Busan", "user_id": "u1"}`)
	s.Equal("Memory 1 updated successfully with new content: 'Lives in Busan...'", out)
}

func (s *MemoryToolsTestSuite) TestStorePreviewIsTruncated() {
	long := strings.Repeat("a", 150)
	out := s.executor.Execute(s, "store_memory", `{"content": "`+long+`", "user_id": "u1"}`)
	s.Equal("Memory stored successfully with ID 1. Content: '"+strings.Repeat("a", 100)+"...'", out)
}

func TestMemoryTools(t *testing.T) {
	suite.Run(t, new(MemoryToolsTestSuite))
}

type mockMemoryService struct {
	mock.Mock
}

func (m *mockMemoryService) Store(ctx context.Context, userID, content string, importance memory.Importance) (*memory.Memory, error) {
	args := m.Called(ctx, userID, content, importance)
	mem, _ := args.Get(0).(*memory.Memory)
	return mem, args.Error(1)
}

func (m *mockMemoryService) Search(ctx context.Context, userID, query string, topK int, threshold float64) ([]memory.ScoredMemory, error) {
	args := m.Called(ctx, userID, query, topK, threshold)
	results, _ := args.Get(0).([]memory.ScoredMemory)
	return results, args.Error(1)
}

func (m *mockMemoryService) Update(ctx context.Context, id uint, userID, content string) error {
	return m.Called(ctx, id, userID, content).Error(0)
}

func TestMemoryToolsReportServiceFailures(t *testing.T) {
	service := new(mockMemoryService)
	service.On("Store", mock.Anything, "u1", "x", memory.ImportanceHigh).Return(nil, errors.New("disk full"))
	service.On("Search", mock.Anything, "u1", "q", 3, 0.7).Return(nil, errors.New("index offline"))
	service.On("Update", mock.Anything, uint(7), "u1", "y").Return(errors.New("locked"))

	tools := tool.NewMemoryTools(service, 3, 0.7)
	ctx := t.Context()

	out, err := tools.Store(ctx, `{"content": "x", "user_id": "u1", "importance": "high"}`)
	if err != nil || out != "Error storing memory: disk full" {
		t.Fatalf("unexpected store result %q, %v", out, err)
	}
	out, err = tools.Retrieve(ctx, `{"query": "q", "user_id": "u1"}`)
	if err != nil || out != "Error retrieving memories: index offline" {
		t.Fatalf("unexpected retrieve result %q, %v", out, err)
	}
	out, err = tools.Update(ctx, `{"memory_id": 7, "new_content": "y", "user_id": "u1"}`)
	if err != nil || out != "Error updating memory: locked" {
		t.Fatalf("unexpected update result %q, %v", out, err)
	}

	service.AssertExpectations(t)
}

func TestRetrieveFormatsResults(t *testing.T) {
	stored := time.Date(2025, 3, 4, 15, 6, 0, 0, time.Local)
	service := new(mockMemoryService)
	service.On("Search", mock.Anything, "u1", "shipping", 2, 0.8).Return([]memory.ScoredMemory{
		{Memory: &memory.Memory{ID: 4, Content: "Ships to Busan", Importance: memory.ImportanceHigh, CreatedAt: stored}, Score: 0.91234},
		{Memory: &memory.Memory{ID: 2, Content: "Prefers express", Importance: memory.ImportanceLow, CreatedAt: stored}, Score: 0.85},
	}, nil)

	out, err := tool.NewMemoryTools(service, 3, 0.7).Retrieve(t.Context(), `{"query": "shipping", "user_id": "u1", "top_k": 2, "similarity_threshold": 0.8}`)
	if err != nil {
		t.Fatal(err)
	}

	expected := "Retrieved memories:\n" +
		"1. [ID: 4, Similarity: 0.912, high importance]\n   Content: Ships to Busan\n   Stored: 2025-03-04 15:06\n\n" +
		"2. [ID: 2, Similarity: 0.850, low importance]\n   Content: Prefers express\n   Stored: 2025-03-04 15:06\n\n"
	if out != expected {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
