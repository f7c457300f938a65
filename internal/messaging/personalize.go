package messaging

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/osteele/liquid"
)

// PersonalizeName substitutes the {name} placeholder with the recipient's
// name. An empty name leaves the placeholder removed, not dangling.
func PersonalizeName(text, name string) string {
	return strings.ReplaceAll(text, "{name}", strings.TrimSpace(name))
}

var varToken = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// SubstituteVars replaces {{variableName}} tokens with values from the
// recipient's variable map. Unknown tokens resolve to the empty string,
// matching the lax behavior of the send function's own mail merge.
func SubstituteVars(text string, vars map[string]string) string {
	return varToken.ReplaceAllStringFunc(text, func(tok string) string {
		name := varToken.FindStringSubmatch(tok)[1]
		return vars[name]
	})
}

// Renderer previews and validates message templates with the Liquid
// engine, which is a superset of the {{var}} token syntax the send
// function supports.
type Renderer struct {
	engine *liquid.Engine
}

// NewRenderer creates a template renderer with the default filter
// registered, so previews can write {{ first_name | default: "there" }}.
func NewRenderer() *Renderer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})
	return &Renderer{engine: engine}
}

// Render produces a preview of a template body for one recipient's
// variable map.
func (r *Renderer) Render(body string, vars map[string]string) (string, error) {
	bindings := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		bindings[k] = v
	}
	out, err := r.engine.ParseAndRenderString(body, bindings)
	if err != nil {
		return "", fmt.Errorf("template render: %w", err)
	}
	return out, nil
}

// Validate parses a template body without rendering it, surfacing syntax
// errors before a campaign is saved.
func (r *Renderer) Validate(body string) error {
	if _, err := r.engine.ParseString(body); err != nil {
		return fmt.Errorf("template parse: %w", err)
	}
	return nil
}
