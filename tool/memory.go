package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/memory"
)

type (
	// MemoryService is satisfied by *memory.Service.
	MemoryService interface {
		Store(ctx context.Context, userID, content string, importance memory.Importance) (*memory.Memory, error)
		Search(ctx context.Context, userID, query string, topK int, threshold float64) ([]memory.ScoredMemory, error)
		Update(ctx context.Context, id uint, userID, content string) error
	}

	StoreMemoryArgs struct {
		Content    string `json:"content" jsonschema:"required,description=The important information to store"`
		UserID     string `json:"user_id" jsonschema:"required,description=User identifier"`
		Importance string `json:"importance,omitempty" jsonschema:"enum=low,enum=medium,enum=high,default=medium"`
	}

	RetrieveMemoryArgs struct {
		Query               string  `json:"query" jsonschema:"required,description=Search query to find relevant memories"`
		UserID              string  `json:"user_id" jsonschema:"required,description=User ID to search memories for"`
		TopK                int     `json:"top_k,omitempty" jsonschema:"description=Number of top results to return,default=3"`
		SimilarityThreshold float64 `json:"similarity_threshold,omitempty" jsonschema:"description=Minimum similarity threshold 0.0-1.0,default=0.7"`
	}

	UpdateMemoryArgs struct {
		MemoryID   uint   `json:"memory_id" jsonschema:"required,description=ID of the memory to update (get this from retrieve_memory results)"`
		NewContent string `json:"new_content" jsonschema:"required,description=New content to replace the existing memory"`
		UserID     string `json:"user_id" jsonschema:"required,description=User ID who owns this memory"`
	}

	MemoryTools struct {
		service MemoryService

		// defaults for retrieve_memory when the model omits them
		topK      int
		threshold float64
	}
)

const (
	StoreMemoryToolName    = "store_memory"
	RetrieveMemoryToolName = "retrieve_memory"
	UpdateMemoryToolName   = "update_memory"

	storeMemoryUsage    = `{"content": "your text", "user_id": "user_id", "importance": "medium"}`
	storeMemoryRequired = `{"content": "your text", "user_id": "user_id"}`
	retrieveMemoryUsage = `{"query": "search text", "user_id": "user_id"}`
	updateMemoryUsage   = `{"memory_id": 123, "new_content": "text", "user_id": "user_id"}`

	contentPreviewLength = 100
)

var (
	_ MemoryService = (*memory.Service)(nil)
)

func NewMemoryTools(service MemoryService, topK int, threshold float64) *MemoryTools {
	return &MemoryTools{
		service:   service,
		topK:      topK,
		threshold: threshold,
	}
}

func (m *MemoryTools) Tools() []Tool {
	return []Tool{
		New(StoreMemoryToolName, `Store important information in long-term semantic memory.

Input format: Provide a JSON string with these fields:
{
    "content": "The important information to store",
    "user_id": "User identifier",
    "importance": "low|medium|high (optional, defaults to medium)"
}

Example: {"content": "User prefers coffee over tea", "user_id": "john123", "importance": "medium"}

Use for storing:
- User preferences and personal details
- Important facts or decisions
- Recurring topics or patterns
- Context valuable for future conversations`, StoreMemoryArgs{}, m.Store),
		New(RetrieveMemoryToolName, fmt.Sprintf(`Search and retrieve relevant information from long-term semantic memory.

Parameters:
- query (str): Search query to find relevant memories
- user_id (str): User ID to search memories for
- top_k (int, optional): Number of top results to return (default: %d)
- similarity_threshold (float, optional): Minimum similarity threshold 0.0-1.0 (default: %g)

Example: {"query": "search text", "user_id": "user_id", "top_k":"2", "similarity_threshold":"0.8"}

Use when:
- You need context about the user's preferences or history
- The conversation touches on topics discussed before
- You want to check if you have relevant stored information
- Building upon previous conversations or decisions`, m.topK, m.threshold), RetrieveMemoryArgs{}, m.Retrieve),
		New(UpdateMemoryToolName, `Update an existing memory with new information.

Parameters:
- memory_id (int): ID of the memory to update (get this from retrieve_memory results)
- new_content (str): New content to replace the existing memory
- user_id (str): User ID who owns this memory

Example: {"memory_id": 123, "new_content": "User now prefers green tea", "user_id": "john123"}

Use this when you need to modify or correct previously stored information.
Always retrieve memories first to get the correct memory_id.`, UpdateMemoryArgs{}, m.Update),
	}
}

func (m *MemoryTools) Store(ctx context.Context, input string) (string, error) {
	a, err := parseArgs(input)
	if err != nil {
		return "ERROR: Invalid JSON format. Please provide input as: " + storeMemoryUsage, nil
	}
	if field, ok := a.missing("content", "user_id"); ok {
		return fmt.Sprintf("ERROR: Missing required field '%s'. Please provide: %s", field, storeMemoryRequired), nil
	}

	importance := memory.ImportanceMedium
	if a.has("importance") {
		s, isString := a["importance"].(string)
		importance = memory.Importance(s)
		if !isString || !importance.Valid() {
			return "ERROR: Invalid importance level. Must be 'low', 'medium', or 'high'", nil
		}
	}

	content := strings.TrimSpace(a.string("content"))
	if content == "" {
		return "ERROR: Content cannot be empty", nil
	}
	userID := strings.TrimSpace(a.string("user_id"))
	if userID == "" {
		return "ERROR: User ID cannot be empty", nil
	}

	stored, err := m.service.Store(ctx, userID, content, importance)
	if err != nil {
		return fmt.Sprintf("Error storing memory: %v", err), nil
	}

	return fmt.Sprintf("Memory stored successfully with ID %d. Content: '%s...'", stored.ID, truncate(content, contentPreviewLength)), nil
}

func (m *MemoryTools) Retrieve(ctx context.Context, input string) (string, error) {
	a, err := parseArgs(input)
	if err != nil {
		return "ERROR: Invalid JSON format. Please provide input as: " + retrieveMemoryUsage, nil
	}
	if field, ok := a.missing("query", "user_id"); ok {
		return fmt.Sprintf("ERROR: Missing required field '%s'. Please provide: %s", field, retrieveMemoryUsage), nil
	}

	query := strings.TrimSpace(a.string("query"))
	if query == "" {
		return "ERROR: Query cannot be empty", nil
	}
	userID := strings.TrimSpace(a.string("user_id"))
	if userID == "" {
		return "ERROR: User ID cannot be empty", nil
	}

	topK, ok := a.int("top_k", m.topK)
	if !ok {
		return "ERROR: top_k must be a valid integer", nil
	}
	if topK <= 0 {
		return "ERROR: top_k must be a positive integer", nil
	}
	threshold, ok := a.float("similarity_threshold", m.threshold)
	if !ok {
		return "ERROR: similarity_threshold must be a valid number", nil
	}
	if !(threshold >= 0 && threshold <= 1) {
		return "ERROR: similarity_threshold must be between 0.0 and 1.0", nil
	}

	results, err := m.service.Search(ctx, userID, query, topK, threshold)
	if err != nil {
		return fmt.Sprintf("Error retrieving memories: %v", err), nil
	}
	if len(results) == 0 {
		return "No relevant memories found for query: " + query, nil
	}

	var sb strings.Builder
	sb.WriteString("Retrieved memories:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. [ID: %d, Similarity: %.3f, %s importance]\n", i+1, r.Memory.ID, r.Score, r.Memory.Importance)
		fmt.Fprintf(&sb, "   Content: %s\n", r.Memory.Content)
		fmt.Fprintf(&sb, "   Stored: %s\n\n", r.Memory.CreatedAt.Format("2006-01-02 15:04"))
	}

	return sb.String(), nil
}

func (m *MemoryTools) Update(ctx context.Context, input string) (string, error) {
	a, err := parseArgs(input)
	if err != nil {
		return "ERROR: Invalid JSON format. Please provide input as: " + updateMemoryUsage, nil
	}
	if field, ok := a.missing("memory_id", "new_content", "user_id"); ok {
		return fmt.Sprintf("ERROR: Missing required field '%s'. Please provide: %s", field, updateMemoryUsage), nil
	}

	id, ok := a.int("memory_id", 0)
	if !ok {
		return "ERROR: memory_id must be a valid integer", nil
	}
	if id <= 0 {
		return "ERROR: memory_id must be a positive integer", nil
	}
	content := strings.TrimSpace(a.string("new_content"))
	if content == "" {
		return "ERROR: New content cannot be empty", nil
	}
	userID := strings.TrimSpace(a.string("user_id"))
	if userID == "" {
		return "ERROR: User ID cannot be empty", nil
	}

	if err := m.service.Update(ctx, uint(id), userID, content); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return fmt.Sprintf("Memory %d not found or access denied", id), nil
		}
		return fmt.Sprintf("Error updating memory: %v", err), nil
	}

	return fmt.Sprintf("Memory %d updated successfully with new content: '%s...'", id, truncate(content, contentPreviewLength)), nil
}
