package mcp

import "encoding/json"

// SchemaBuilder assembles a ToolInputSchema from the fixed property
// vocabulary tools are allowed to declare. Property order is not significant
// on the wire; required names are recorded in declaration order.
type SchemaBuilder struct {
	properties map[string]SchemaProperty
	required   []string
}

// NewSchema starts a builder for an object schema.
func NewSchema() *SchemaBuilder {
	return &SchemaBuilder{properties: make(map[string]SchemaProperty)}
}

// String adds a string property.
func (b *SchemaBuilder) String(name, description string, required bool) *SchemaBuilder {
	b.add(name, SchemaProperty{Type: "string", Description: description}, required)
	return b
}

// Integer adds an integer property.
func (b *SchemaBuilder) Integer(name, description string, required bool) *SchemaBuilder {
	b.add(name, SchemaProperty{Type: "integer", Description: description}, required)
	return b
}

// Boolean adds a boolean property.
func (b *SchemaBuilder) Boolean(name, description string, required bool) *SchemaBuilder {
	b.add(name, SchemaProperty{Type: "boolean", Description: description}, required)
	return b
}

// StringArray adds an array-of-strings property.
func (b *SchemaBuilder) StringArray(name, description string, required bool) *SchemaBuilder {
	b.add(name, SchemaProperty{
		Type:        "array",
		Description: description,
		Items:       &SchemaProperty{Type: "string"},
	}, required)
	return b
}

func (b *SchemaBuilder) add(name string, prop SchemaProperty, required bool) {
	b.properties[name] = prop
	if required {
		b.required = append(b.required, name)
	}
}

// Build produces the schema value.
func (b *SchemaBuilder) Build() ToolInputSchema {
	req := b.required
	if req == nil {
		req = []string{}
	}
	return ToolInputSchema{Type: "object", Properties: b.properties, Required: req}
}

// BuildJSON produces the schema's JSON text form, as carried by the Tool
// contract. The schema vocabulary marshals without error by construction.
func (b *SchemaBuilder) BuildJSON() string {
	out, _ := json.Marshal(b.Build())
	return string(out)
}
