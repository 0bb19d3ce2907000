package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/habiliai/supportagent"
	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/internal/mylog"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:          "supportagent",
		Short:        "Customer support agent with long-term memory",
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&flags.configPath, "config", "c", "", "Path to the YAML config file")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(flags),
		newChatCmd(flags),
		newMemoryCmd(flags),
	)

	return cmd
}

func (f *rootFlags) loadConfig() (*config.Config, error) {
	conf, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		conf.Log.LogLevel = f.logLevel
	}

	return conf, nil
}

func (f *rootFlags) newSupportAgent(ctx context.Context, opts ...supportagent.Option) (*supportagent.SupportAgent, error) {
	conf, err := f.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := mylog.NewLogger(conf.Log.LogLevel, conf.Log.LogHandler)
	return supportagent.New(ctx, conf, append([]supportagent.Option{supportagent.WithLogger(logger)}, opts...)...)
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "panic: %+v\n", err)
		os.Exit(1)
	}
}
