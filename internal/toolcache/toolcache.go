// Package toolcache implements the tool catalog cache (C1): it holds the
// current tool catalog, resolves hallucinated short names, and normalizes
// argument keys/enums between casings.
package toolcache

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ToolDef is one cached tool definition.
type ToolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage

	schema *jsonschema.Schema // compiled, nil if compilation failed
	props  map[string]schemaProperty
}

type schemaProperty struct {
	Type string
	Enum []string
}

// Cache holds the current tool catalog for one conversation.
type Cache struct {
	mu    sync.RWMutex
	tools []ToolDef
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{}
}

// Cache replaces the stored catalog wholesale. Tools whose input_schema fails
// to compile as a JSON schema are dropped rather than failing the whole call,
// so one malformed tool from a flaky MCP server does not blind the bridge to
// every other tool.
func (c *Cache) Cache(tools []ToolDef) {
	kept := make([]ToolDef, 0, len(tools))
	for _, t := range tools {
		t := t
		if len(t.InputSchema) > 0 {
			schema, props, err := compileSchema(t.Name, t.InputSchema)
			if err != nil {
				continue
			}
			t.schema = schema
			t.props = props
		}
		kept = append(kept, t)
	}
	c.mu.Lock()
	c.tools = kept
	c.mu.Unlock()
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, map[string]schemaProperty, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("tool %s: decode input_schema: %w", name, err)
	}
	url := "mem://tool/" + name
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, nil, fmt.Errorf("tool %s: add schema resource: %w", name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, nil, fmt.Errorf("tool %s: compile schema: %w", name, err)
	}
	props := extractProperties(doc)
	return schema, props, nil
}

// extractProperties pulls {name: {type, enum}} out of the raw schema document
// for use by normalizeArgs; it tolerates any shape that isn't a plain object.
func extractProperties(doc any) map[string]schemaProperty {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	rawProps, ok := obj["properties"].(map[string]any)
	if !ok {
		return nil
	}
	props := make(map[string]schemaProperty, len(rawProps))
	for name, v := range rawProps {
		pv, ok := v.(map[string]any)
		if !ok {
			props[name] = schemaProperty{}
			continue
		}
		sp := schemaProperty{}
		if t, ok := pv["type"].(string); ok {
			sp.Type = t
		}
		if enumRaw, ok := pv["enum"].([]any); ok {
			for _, e := range enumRaw {
				if s, ok := e.(string); ok {
					sp.Enum = append(sp.Enum, s)
				}
			}
		}
		props[name] = sp
	}
	return props
}

// Get returns the stored catalog (may be empty).
func (c *Cache) Get() []ToolDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ToolDef, len(c.tools))
	copy(out, c.tools)
	return out
}

// ResolveName returns name if it matches a cached tool exactly; else, among
// cached tools whose name ends with "__" + name, returns the unique match;
// else returns name unchanged (ambiguous or no match).
func (c *Cache) ResolveName(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tools {
		if t.Name == name {
			return name
		}
	}
	suffix := "__" + name
	match := ""
	count := 0
	for _, t := range c.tools {
		if strings.HasSuffix(t.Name, suffix) {
			match = t.Name
			count++
		}
	}
	if count == 1 {
		return match
	}
	return name
}

var aliasTable = map[string]string{
	"ignoreCase":    "-i",
	"lineNumbers":   "-n",
	"afterContext":  "-A",
	"beforeContext": "-B",
}

// NormalizeArgs returns args unchanged if the tool is unknown or has no
// declared properties. Otherwise it maps each key onto a schema property by
// exact match, camelCase/snake_case conversion, or a fixed alias table, and
// converts enum-valued strings between casings to match a declared enum
// member. Unknown keys are always preserved.
func (c *Cache) NormalizeArgs(toolName string, args map[string]any) map[string]any {
	c.mu.RLock()
	var props map[string]schemaProperty
	for _, t := range c.tools {
		if t.Name == toolName {
			props = t.props
			break
		}
	}
	c.mu.RUnlock()

	if len(props) == 0 || len(args) == 0 {
		return args
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		targetKey, ok := resolveKey(k, props)
		if !ok {
			out[k] = v
			continue
		}
		out[targetKey] = normalizeValue(v, props[targetKey])
	}
	return out
}

func resolveKey(key string, props map[string]schemaProperty) (string, bool) {
	if _, ok := props[key]; ok {
		return key, true
	}
	if alt := toSnakeCase(key); alt != key {
		if _, ok := props[alt]; ok {
			return alt, true
		}
	}
	if alt := toCamelCase(key); alt != key {
		if _, ok := props[alt]; ok {
			return alt, true
		}
	}
	if alias, ok := aliasTable[key]; ok {
		if _, ok := props[alias]; ok {
			return alias, true
		}
	}
	return "", false
}

func normalizeValue(v any, prop schemaProperty) any {
	if len(prop.Enum) == 0 {
		return v
	}
	s, ok := v.(string)
	if !ok {
		return v
	}
	for _, member := range prop.Enum {
		if member == s {
			return s
		}
	}
	snake := toSnakeCase(s)
	for _, member := range prop.Enum {
		if member == snake {
			return snake
		}
	}
	camel := toCamelCase(s)
	for _, member := range prop.Enum {
		if member == camel {
			return camel
		}
	}
	return v
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toCamelCase(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
