// Package supportagent wires the support agent together: model, memory,
// tools, checkpointing and the thread index, all built from one config.
package supportagent

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/habiliai/supportagent/agent"
	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/embedding"
	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/internal/db"
	"github.com/habiliai/supportagent/internal/mylog"
	"github.com/habiliai/supportagent/internal/tracing"
	"github.com/habiliai/supportagent/memory"
	"github.com/habiliai/supportagent/model"
	"github.com/habiliai/supportagent/thread"
	"github.com/habiliai/supportagent/tool"
	"github.com/habiliai/supportagent/tool/feed"
)

type (
	SupportAgent struct {
		conf   *config.Config
		logger *slog.Logger

		db            *gorm.DB
		model         model.Model
		embedder      memory.Embedder
		memoryService *memory.Service
		searcher      tool.Searcher
		extraTools    []tool.Tool
		registry      *tool.Registry
		checkpointer  agent.Checkpointer
		agent         *agent.Agent
		threads       *thread.Manager
		locker        *thread.Locker
		tracer        trace.TracerProvider
		now           func() time.Time

		closers []func()
	}

	Option func(*SupportAgent)
)

func WithLogger(logger *slog.Logger) Option {
	return func(s *SupportAgent) {
		s.logger = logger
	}
}

func WithModel(m model.Model) Option {
	return func(s *SupportAgent) {
		s.model = m
	}
}

func WithEmbedder(embedder memory.Embedder) Option {
	return func(s *SupportAgent) {
		s.embedder = embedder
	}
}

// WithDB uses gormDB instead of opening the configured database. The caller
// keeps ownership of it.
func WithDB(gormDB *gorm.DB) Option {
	return func(s *SupportAgent) {
		s.db = gormDB
	}
}

func WithSearcher(searcher tool.Searcher) Option {
	return func(s *SupportAgent) {
		s.searcher = searcher
	}
}

// WithTools registers additional tools after the built-in ones.
func WithTools(tools ...tool.Tool) Option {
	return func(s *SupportAgent) {
		s.extraTools = append(s.extraTools, tools...)
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *SupportAgent) {
		s.tracer = tp
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *SupportAgent) {
		s.now = now
	}
}

func New(ctx context.Context, conf *config.Config, opts ...Option) (_ *SupportAgent, err error) {
	s := &SupportAgent{
		conf: conf,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = mylog.NewLogger(conf.Log.LogLevel, conf.Log.LogHandler)
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if s.tracer == nil {
		tp, shutdown := tracing.NewTracerProvider(&conf.Log, s.logger)
		s.tracer = tp
		s.closers = append(s.closers, func() {
			if err := shutdown(context.Background()); err != nil {
				s.logger.Warn("failed to shut down tracer provider", "error", err)
			}
		})
	}

	if s.db == nil {
		path := conf.Database.Path
		if conf.Memory.Store != config.MemoryStoreSqlite && conf.Agent.Checkpointer != config.CheckpointerSqlite {
			// only the thread index needs sql, and it lives as long as the process
			path = ":memory:"
		}
		s.db, err = db.OpenSqlite(path)
		if err != nil {
			return nil, err
		}
		gormDB := s.db
		s.closers = append(s.closers, func() {
			if err := db.CloseDB(gormDB); err != nil {
				s.logger.Warn("failed to close database", "error", err)
			}
		})
	}

	if s.model == nil {
		s.model, err = model.New(&conf.Model, s.logger)
		if err != nil {
			return nil, err
		}
	}

	if s.embedder == nil {
		provider, release, err := embedding.NewFromConfig(&conf.Embedding, s.logger)
		if err != nil {
			return nil, err
		}
		s.embedder = provider
		s.closers = append(s.closers, release)
	}

	store, err := memory.NewStoreFromConfig(&conf.Memory, s.db, s.embedder.Dimension())
	if err != nil {
		return nil, err
	}
	s.memoryService = memory.NewService(store, s.embedder, s.logger)
	s.closers = append(s.closers, func() {
		if err := s.memoryService.Close(); err != nil {
			s.logger.Warn("failed to close memory store", "error", err)
		}
	})

	if err := s.buildRegistry(ctx); err != nil {
		return nil, err
	}

	switch conf.Agent.Checkpointer {
	case config.CheckpointerMemory:
		s.checkpointer = agent.NewInMemoryCheckpointer()
	default:
		s.checkpointer, err = agent.NewGormCheckpointer(s.db)
		if err != nil {
			return nil, err
		}
	}

	s.agent, err = agent.New(
		s.model,
		tool.NewExecutor(s.registry, conf.Tools.Timeout, s.logger),
		s.checkpointer,
		agent.WithConfig(&conf.Agent),
		agent.WithLogger(s.logger),
		agent.WithTracerProvider(s.tracer),
		agent.WithClock(s.now),
	)
	if err != nil {
		return nil, err
	}

	s.threads, err = thread.NewManager(s.db, conf.Agent.ThreadIDPrefix, conf.Agent.ThreadIDLength, s.logger)
	if err != nil {
		return nil, err
	}
	s.locker = thread.NewLocker()

	s.logger.Info("support agent ready",
		"model", conf.Model.Name,
		"memory_store", conf.Memory.Store,
		"checkpointer", conf.Agent.Checkpointer,
		"tools", s.registry.Names(),
	)
	return s, nil
}

func (s *SupportAgent) buildRegistry(ctx context.Context) error {
	tools := tool.NewMemoryTools(s.memoryService, s.conf.Memory.Retrieve.TopK, s.conf.Memory.Retrieve.Threshold).Tools()

	if s.searcher == nil {
		searcher, err := tool.NewFireCrawlSearcherFromConfig(&s.conf.Tools.FireCrawl, s.logger)
		if err != nil {
			return err
		}
		if searcher != nil {
			s.searcher = searcher
		}
	}
	tools = append(tools, tool.NewWebSearchTool(s.searcher))

	loc, err := time.LoadLocation(s.conf.Tools.Timezone)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidConfig, "invalid timezone %q: %v", s.conf.Tools.Timezone, err)
	}
	tools = append(tools, tool.NewDateTimeTool(loc, s.now))

	if s.conf.Tools.Weather.APIKey != "" {
		client := tool.NewWeatherClient(s.conf.Tools.Weather.APIKey, &http.Client{Timeout: s.conf.Tools.Timeout}, s.logger)
		tools = append(tools, tool.NewGetWeatherTool(client))
	}

	if len(s.conf.Tools.Feeds) > 0 {
		tools = append(tools, tool.NewAnnouncementsTool(feed.NewReader(s.conf.Tools.Timeout), s.conf.Tools.Feeds, s.logger))
	}

	if len(s.conf.Tools.MCPServers) > 0 {
		mcpTools, closeMCP, err := tool.LoadMCPTools(ctx, tool.NewMCPClientFactory(s.logger), s.conf.Tools.MCPServers)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, closeMCP)
		tools = append(tools, mcpTools...)
	}

	tools = append(tools, s.extraTools...)

	s.registry, err = tool.NewRegistry(tools...)
	return err
}

func (s *SupportAgent) Config() *config.Config {
	return s.conf
}

func (s *SupportAgent) Logger() *slog.Logger {
	return s.logger
}

func (s *SupportAgent) Memory() *memory.Service {
	return s.memoryService
}

func (s *SupportAgent) Registry() *tool.Registry {
	return s.registry
}

func (s *SupportAgent) Threads() *thread.Manager {
	return s.threads
}

func (s *SupportAgent) NewThread(ctx context.Context, userID string) (*thread.Thread, error) {
	return s.threads.Create(ctx, userID)
}

// Chat runs one user turn on threadID without streaming.
func (s *SupportAgent) Chat(ctx context.Context, threadID, userID, message string) (*agent.Result, error) {
	return s.ChatStream(ctx, threadID, userID, message, nil)
}

// ChatStream runs one user turn on threadID. Turns on the same thread run one
// at a time. onChunk may be nil.
func (s *SupportAgent) ChatStream(ctx context.Context, threadID, userID, message string, onChunk func(chunk string) error) (*agent.Result, error) {
	if threadID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "thread id is required")
	}

	unlock := s.locker.Lock(threadID)
	defer unlock()

	if err := s.threads.Touch(ctx, threadID, userID); err != nil {
		return nil, err
	}

	req := agent.Request{
		ThreadID: threadID,
		UserID:   userID,
		Message:  message,
	}
	if onChunk == nil {
		return s.agent.Run(ctx, req)
	}
	return s.agent.Stream(ctx, req, onChunk)
}

// Messages returns the conversation of threadID. A thread without turns
// yields an empty slice.
func (s *SupportAgent) Messages(ctx context.Context, threadID string) ([]agent.Message, error) {
	messages, err := s.agent.Messages(ctx, threadID)
	if errors.Is(err, errors.ErrNotFound) {
		if _, err := s.threads.Get(ctx, threadID); err != nil {
			return nil, err
		}
		return []agent.Message{}, nil
	}
	return messages, err
}

// Close releases everything New acquired, in reverse order.
func (s *SupportAgent) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
