package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/habiliai/supportagent"
	"github.com/habiliai/supportagent/agent"
	"github.com/habiliai/supportagent/errors"
)

type chatSession struct {
	sa       *supportagent.SupportAgent
	out      io.Writer
	userID   string
	threadID string
	stream   bool
}

func newChatCmd(flags *rootFlags) *cobra.Command {
	params := &struct {
		ThreadID string
		UserID   string
	}{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the support agent in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sa, err := flags.newSupportAgent(ctx)
			if err != nil {
				return err
			}
			defer sa.Close()

			session := &chatSession{
				sa:       sa,
				out:      cmd.OutOrStdout(),
				userID:   params.UserID,
				threadID: params.ThreadID,
				stream:   sa.Config().Agent.Streaming,
			}
			if session.threadID == "" {
				if err := session.newThread(ctx); err != nil {
					return err
				}
			}
			pterm.Info.Printfln("Thread %s (user %s). Commands: /new, /history, /thread, /quit", session.threadID, session.userID)

			interrupted := false
			textInput := pterm.DefaultInteractiveTextInput.WithDefaultText("").WithOnInterruptFunc(func() {
				interrupted = true
			})
			for {
				line, err := textInput.Show("> You")
				if err != nil {
					return err
				}
				if interrupted {
					return nil
				}

				quit, err := session.handle(ctx, line)
				if err != nil {
					pterm.Error.Println(err.Error())
					continue
				}
				if quit {
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVarP(&params.ThreadID, "thread", "t", "", "Resume an existing thread")
	cmd.Flags().StringVarP(&params.UserID, "user", "u", "cli_user", "User id the memories are scoped to")

	return cmd
}

// handle runs one line of input. It reports true when the session should end.
func (s *chatSession) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false, nil
	case "/quit", "/exit":
		return true, nil
	case "/new":
		if err := s.newThread(ctx); err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "Started thread %s\n", s.threadID)
	case "/thread":
		fmt.Fprintf(s.out, "Current thread: %s\n", s.threadID)
	case "/history":
		return false, s.printHistory(ctx)
	default:
		if strings.HasPrefix(line, "/") {
			return false, errors.Errorf("unknown command %s", line)
		}
		return false, s.chat(ctx, line)
	}

	return false, nil
}

func (s *chatSession) newThread(ctx context.Context) error {
	thread, err := s.sa.NewThread(ctx, s.userID)
	if err != nil {
		return err
	}
	s.threadID = thread.ID
	return nil
}

func (s *chatSession) printHistory(ctx context.Context) error {
	messages, err := s.sa.Messages(ctx, s.threadID)
	if errors.Is(err, errors.ErrNotFound) || (err == nil && len(messages) == 0) {
		fmt.Fprintln(s.out, "(no messages yet)")
		return nil
	} else if err != nil {
		return err
	}

	for _, m := range messages {
		switch m.Role {
		case agent.RoleUser:
			fmt.Fprintf(s.out, "> You: %s\n", m.Content)
		case agent.RoleTool:
			fmt.Fprintf(s.out, "  [%s] %s\n", m.ToolCallID, m.Content)
		case agent.RoleAssistant:
			fmt.Fprintf(s.out, "< Agent: %s\n", m.Content)
		}
	}
	return nil
}

func (s *chatSession) chat(ctx context.Context, message string) error {
	fmt.Fprint(s.out, "< Agent: ")

	if !s.stream {
		res, err := s.sa.Chat(ctx, s.threadID, s.userID, message)
		if err != nil {
			fmt.Fprintln(s.out)
			return err
		}
		fmt.Fprintln(s.out, res.Answer)
		return nil
	}

	printer := newAnswerPrinter(s.out)
	res, err := s.sa.ChatStream(ctx, s.threadID, s.userID, message, printer.write)
	if err != nil {
		fmt.Fprintln(s.out)
		return err
	}
	printer.finish(res)
	return nil
}

type answerPrinter struct {
	answerFilter
	w io.Writer
}

func newAnswerPrinter(w io.Writer) *answerPrinter {
	p := &answerPrinter{w: w}
	p.emit = func(text string) error {
		_, err := io.WriteString(w, text)
		return err
	}
	return p
}

func (p *answerPrinter) finish(res *agent.Result) {
	switch {
	case !p.live:
		fmt.Fprintln(p.w, res.Answer)
	case !res.Streamed:
		fmt.Fprintf(p.w, "\n< Agent: %s\n", res.Answer)
	default:
		fmt.Fprintln(p.w)
	}
}
