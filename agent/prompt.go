package agent

import (
	"embed"
	"encoding/json"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/samber/lo"

	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/model"
	"github.com/habiliai/supportagent/tool"
)

var (
	//go:embed data/prompts/*.md.tmpl
	promptFS embed.FS
)

type (
	ToolDescriptor struct {
		Name        string
		Description string
		Schema      string
	}

	PromptValues struct {
		Tools      []ToolDescriptor
		ToolNames  []string
		History    []Message
		Input      string
		Scratchpad []Message
		UserID     string
		Now        time.Time
	}

	// Prompter renders one of the embedded prompt templates. Every template
	// defines a "system" and a "user" part.
	Prompter struct {
		name string
		tmpl *template.Template
	}
)

func funcMap() template.FuncMap {
	return sprig.TxtFuncMap()
}

func NewPrompter(name string) (*Prompter, error) {
	switch name {
	case config.PromptReactChat, config.PromptCustomerSupport:
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown prompt %q", name)
	}

	tmpl, err := template.New(name).Funcs(funcMap()).ParseFS(
		promptFS,
		"data/prompts/common.md.tmpl",
		"data/prompts/"+name+".md.tmpl",
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse prompt %s", name)
	}

	return &Prompter{name: name, tmpl: tmpl}, nil
}

func (p *Prompter) Name() string {
	return p.name
}

func (p *Prompter) Render(values *PromptValues) (model.Prompt, error) {
	var system, user strings.Builder
	if err := p.tmpl.ExecuteTemplate(&system, "system", values); err != nil {
		return model.Prompt{}, errors.Wrapf(err, "failed to render system prompt")
	}
	if err := p.tmpl.ExecuteTemplate(&user, "user", values); err != nil {
		return model.Prompt{}, errors.Wrapf(err, "failed to render user prompt")
	}

	return model.Prompt{
		System: strings.TrimSpace(system.String()),
		User:   strings.TrimSpace(user.String()),
	}, nil
}

func describeTools(tools []tool.Tool) []ToolDescriptor {
	return lo.Map(tools, func(t tool.Tool, _ int) ToolDescriptor {
		desc := ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
		}
		if schema := t.Schema(); schema != nil {
			if b, err := json.Marshal(schema); err == nil {
				desc.Schema = string(b)
			}
		}
		return desc
	})
}
