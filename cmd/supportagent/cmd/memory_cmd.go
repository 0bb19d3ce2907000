package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mokiat/gog"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/embedding"
	"github.com/habiliai/supportagent/internal/db"
	"github.com/habiliai/supportagent/internal/mylog"
	"github.com/habiliai/supportagent/memory"
)

// openMemory builds only the memory service, so administrative commands work
// without model credentials.
func openMemory(conf *config.Config, logger *slog.Logger) (*memory.Service, func(), error) {
	path := conf.Database.Path
	if conf.Memory.Store != config.MemoryStoreSqlite {
		path = ":memory:"
	}
	gormDB, err := db.OpenSqlite(path)
	if err != nil {
		return nil, nil, err
	}

	provider, release, err := embedding.NewFromConfig(&conf.Embedding, logger)
	if err != nil {
		_ = db.CloseDB(gormDB)
		return nil, nil, err
	}

	store, err := memory.NewStoreFromConfig(&conf.Memory, gormDB, provider.Dimension())
	if err != nil {
		release()
		_ = db.CloseDB(gormDB)
		return nil, nil, err
	}

	service := memory.NewService(store, provider, logger)
	return service, func() {
		if err := service.Close(); err != nil {
			logger.Warn("failed to close memory store", "error", err)
		}
		release()
		if err := db.CloseDB(gormDB); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}, nil
}

func newMemoryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "memory",
		Short:   "Manage long-term user memories",
		Aliases: []string{"memories"},
	}

	withMemory := func(run func(ctx context.Context, conf *config.Config, service *memory.Service, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			conf, err := flags.loadConfig()
			if err != nil {
				return err
			}
			logger := mylog.NewLogger(conf.Log.LogLevel, conf.Log.LogHandler)
			if conf.Memory.Store != config.MemoryStoreSqlite {
				pterm.Warning.Printfln("memory.store is %q, records do not outlive this command", conf.Memory.Store)
			}

			service, closeMemory, err := openMemory(conf, logger)
			if err != nil {
				return err
			}
			defer closeMemory()

			return run(cmd.Context(), conf, service, args)
		}
	}

	addCmd := func() *cobra.Command {
		params := &struct {
			Importance string
		}{}
		cmd := &cobra.Command{
			Use:   "add <user-id> <content>",
			Short: "Store a memory for a user",
			Args:  cobra.MinimumNArgs(2),
			RunE: withMemory(func(ctx context.Context, _ *config.Config, service *memory.Service, args []string) error {
				m, err := service.Store(ctx, args[0], strings.Join(args[1:], " "), memory.Importance(params.Importance))
				if err != nil {
					return err
				}

				pterm.Success.Printfln("Memory stored with ID %d", m.ID)
				return nil
			}),
		}

		cmd.Flags().StringVarP(&params.Importance, "importance", "i", string(memory.ImportanceMedium), "Importance (low, medium, high)")

		return cmd
	}

	listCmd := func() *cobra.Command {
		return &cobra.Command{
			Use:   "list <user-id>",
			Short: "List the memories of a user, newest first",
			Args:  cobra.ExactArgs(1),
			RunE: withMemory(func(ctx context.Context, _ *config.Config, service *memory.Service, args []string) error {
				memories, err := service.List(ctx, args[0])
				if err != nil {
					return err
				}
				if len(memories) == 0 {
					pterm.Info.Println("No memories found")
					return nil
				}

				rows := gog.Map(memories, func(m *memory.Memory) []string {
					return []string{
						strconv.FormatUint(uint64(m.ID), 10),
						string(m.Importance),
						m.CreatedAt.Format("2006-01-02 15:04"),
						m.Content,
					}
				})
				data := append(pterm.TableData{{"ID", "Importance", "Created", "Content"}}, rows...)
				return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			}),
		}
	}

	searchCmd := func() *cobra.Command {
		params := &struct {
			TopK      int
			Threshold float64
		}{}
		cmd := &cobra.Command{
			Use:   "search <user-id> <query>",
			Short: "Search the memories of a user by meaning",
			Args:  cobra.MinimumNArgs(2),
			RunE: withMemory(func(ctx context.Context, conf *config.Config, service *memory.Service, args []string) error {
				topK, threshold := conf.Memory.API.TopK, conf.Memory.API.Threshold
				if params.TopK > 0 {
					topK = params.TopK
				}
				if params.Threshold >= 0 {
					threshold = params.Threshold
				}

				results, err := service.Search(ctx, args[0], strings.Join(args[1:], " "), topK, threshold)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					pterm.Info.Println("No relevant memories found")
					return nil
				}

				rows := gog.Map(results, func(r memory.ScoredMemory) []string {
					return []string{
						strconv.FormatUint(uint64(r.Memory.ID), 10),
						fmt.Sprintf("%.3f", r.Score),
						string(r.Memory.Importance),
						r.Memory.Content,
					}
				})
				data := append(pterm.TableData{{"ID", "Similarity", "Importance", "Content"}}, rows...)
				return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			}),
		}

		f := cmd.Flags()
		f.IntVarP(&params.TopK, "top-k", "k", 0, "Maximum results (defaults to memory.api.topK)")
		f.Float64Var(&params.Threshold, "threshold", -1, "Minimum similarity (defaults to memory.api.threshold)")

		return cmd
	}

	cmd.AddCommand(
		addCmd(),
		listCmd(),
		searchCmd(),
	)

	return cmd
}
