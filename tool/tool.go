package tool

import (
	"context"

	"github.com/invopop/jsonschema"
)

type (
	// Tool is a named capability the agent can invoke with the raw text of
	// an Action Input line.
	Tool interface {
		Name() string
		Description() string
		Schema() *jsonschema.Schema
		Invoke(ctx context.Context, input string) (string, error)
	}

	Func func(ctx context.Context, input string) (string, error)

	funcTool struct {
		name        string
		description string
		schema      *jsonschema.Schema
		fn          Func
	}
)

var (
	_ Tool = (*funcTool)(nil)

	reflector = &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
)

// New builds a Tool whose schema is reflected from args, a struct value
// describing the JSON object the tool accepts. args may be nil for tools
// without input.
func New(name, description string, args any, fn Func) Tool {
	var schema *jsonschema.Schema
	if args != nil {
		schema = reflector.Reflect(args)
		schema.Version = ""
	}

	return &funcTool{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}
}

func (t *funcTool) Name() string {
	return t.name
}

func (t *funcTool) Description() string {
	return t.description
}

func (t *funcTool) Schema() *jsonschema.Schema {
	return t.schema
}

func (t *funcTool) Invoke(ctx context.Context, input string) (string, error) {
	return t.fn(ctx, input)
}
