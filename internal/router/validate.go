// ABOUTME: Argument validation against a tool's registered JSON schema,
// ABOUTME: with context-fill for missing required arguments before reprompting.

package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/2389/toolmux/internal/registry"
)

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*jsonschema.Schema{}
)

// compileSchema compiles and caches one tool's input schema. The cache
// key includes the raw bytes so a refreshed schema recompiles.
func compileSchema(name string, raw []byte) (*jsonschema.Schema, error) {
	key := name + "\x00" + string(raw)
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if sch, ok := schemaCache[key]; ok {
		return sch, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name+".json", bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	sch, err := c.Compile(name + ".json")
	if err != nil {
		return nil, err
	}
	schemaCache[key] = sch
	return sch, nil
}

// validate checks routed.Args against the tool schema. Missing required
// string arguments are filled from conversation context first; anything
// the fill cannot satisfy becomes a reprompt.
func (r *Router) validate(req Request, desc registry.ToolDescriptor, routed *RoutedCommand) (reply string, valid bool) {
	if len(desc.InputSchema) == 0 {
		return "", true
	}
	r.fillRequired(req, desc.InputSchema, routed)

	sch, err := compileSchema(desc.Name, desc.InputSchema)
	if err != nil {
		// A provider shipping a broken schema should not block the call.
		r.logger.Warn("tool schema did not compile", "tool", desc.Name, "error", err)
		return "", true
	}
	if err := sch.Validate(map[string]any(routed.Args)); err != nil {
		if missing := missingRequired(desc.InputSchema, routed.Args); len(missing) > 0 {
			return fmt.Sprintf("I still need: %s.", strings.Join(missing, ", ")), false
		}
		return fmt.Sprintf("Those arguments don't fit %s: %v", desc.Name, err), false
	}
	return "", true
}

// fillRequired plugs holes in required arguments from what the user has
// said before: the last mentioned symbol, or the message text itself.
func (r *Router) fillRequired(req Request, schema []byte, routed *RoutedCommand) {
	for _, name := range missingRequired(schema, routed.Args) {
		switch name {
		case "symbol":
			if r.convo != nil {
				if sym := r.convo.LastSymbol(req.UserID); sym != "" {
					routed.Args[name] = normalizeSymbol(sym, r.rules.DefaultQuote)
				}
			}
		case "message", "query", "text":
			routed.Args[name] = strings.TrimSpace(req.Text)
		}
	}
}

// missingRequired lists required properties absent from args, in schema
// order.
func missingRequired(schema []byte, args map[string]any) []string {
	var shape struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &shape); err != nil {
		return nil
	}
	var missing []string
	for _, name := range shape.Required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
