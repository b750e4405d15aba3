package filter

import (
	"fmt"
)

// Definition is a filter as written in a filter file.
type Definition struct {
	ID   string `toml:"id" yaml:"id" json:"id"`
	Name string `toml:"name,omitempty" yaml:"name,omitempty" json:"name,omitempty"`

	// Script is the path of a Lua filter. A scripted definition has no
	// rules.
	Script string `toml:"script,omitempty" yaml:"script,omitempty" json:"script,omitempty"`

	Rules []RuleDef `toml:"rules,omitempty" yaml:"rules,omitempty" json:"rules,omitempty"`
}

// RuleDef is one pattern of a Definition.
type RuleDef struct {
	Pattern string      `toml:"pattern" yaml:"pattern" json:"pattern"`
	Output  string      `toml:"output,omitempty" yaml:"output,omitempty" json:"output,omitempty"`
	Style   string      `toml:"style,omitempty" yaml:"style,omitempty" json:"style,omitempty"`
	Span    int         `toml:"span,omitempty" yaml:"span,omitempty" json:"span,omitempty"`
	Actions []ActionDef `toml:"actions,omitempty" yaml:"actions,omitempty" json:"actions,omitempty"`
}

// ActionDef is one action of a RuleDef. Name is the capture group a push
// reads from.
type ActionDef struct {
	Type   string `toml:"type" yaml:"type" json:"type"`
	Target string `toml:"target" yaml:"target" json:"target"`
	Name   string `toml:"name,omitempty" yaml:"name,omitempty" json:"name,omitempty"`
}

// DisplayName returns Name, or ID when Name is empty.
func (d Definition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Validate checks the fields that make a definition unusable as a whole.
// Individual bad rules are not errors; they are dropped at compile time.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDefinition)
	}
	if d.Script != "" && len(d.Rules) > 0 {
		return fmt.Errorf("%w: filter %q has both script and rules", ErrInvalidDefinition, d.ID)
	}
	return nil
}

// CompileDefinition compiles the rules of a regex definition.
func CompileDefinition(d Definition, opts CompileOptions) (*FilterSet, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Script != "" {
		return nil, fmt.Errorf("%w: filter %q is scripted", ErrInvalidDefinition, d.ID)
	}

	rules := make([]Rule, len(d.Rules))
	invalid := make([]error, len(d.Rules))
	for i, rd := range d.Rules {
		rules[i], invalid[i] = rd.rule()
	}
	return compileSet(d.ID, d.DisplayName(), rules, invalid, opts), nil
}

func (rd RuleDef) rule() (Rule, error) {
	r := Rule{
		Expr:  rd.Pattern,
		Style: rd.Style,
		Span:  rd.Span,
	}

	out, err := ParseOutput(rd.Output)
	if err != nil {
		return r, err
	}
	r.Output = out

	for _, ad := range rd.Actions {
		a, err := ParseAction(ad.Type, ad.Target, ad.Name)
		if err != nil {
			return r, err
		}
		r.Actions = append(r.Actions, a)
	}
	return r, nil
}
