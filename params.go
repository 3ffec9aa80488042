package dbmo

import "strings"

// Params supplies values for the placeholders of a statement. Build one with Args, Named or
// Entity. A nil Params binds nothing and fails when the statement has placeholders.
type Params interface {
	// resolve returns one value per distinct placeholder name, aligned with names, or an error
	// naming the first placeholder that could not be resolved.
	resolve(names []string, sql string, syn Syntax) ([]any, error)
}

// Args binds values by position to the distinct placeholders in order of first appearance.
// A repeated placeholder reuses the value of its first occurrence; extra values are ignored.
func Args(values ...any) Params { return argParams(values) }

// Named binds by placeholder name without prefix: Named(map[string]any{"id": 1}) for @id.
// An exact key wins over a case-insensitive match.
func Named(values map[string]any) Params { return namedParams(values) }

// Entity binds from the members of a struct or pointer to struct: fields by db / column tag
// or name first, then getter methods (Name() or GetName()).
func Entity(v any) Params { return entityParams{v: v} }

type argParams []any

func (p argParams) resolve(names []string, sql string, _ Syntax) ([]any, error) {
	if len(p) < len(names) {
		return nil, bindErrorf(names[len(p)], sql, "has no value: %d positional values for %d placeholders", len(p), len(names))
	}
	return append([]any(nil), p[:len(names)]...), nil
}

type namedParams map[string]any

func (p namedParams) resolve(names []string, sql string, syn Syntax) ([]any, error) {
	values := make([]any, len(names))
	for i, name := range names {
		key := strings.TrimPrefix(name, string(syn.Prefix))
		v, ok := p.lookup(key)
		if !ok {
			return nil, bindErrorf(name, sql, "has no matching key in parameter map")
		}
		values[i] = v
	}
	return values, nil
}

func (p namedParams) lookup(key string) (any, bool) {
	if v, ok := p[key]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

type entityParams struct{ v any }

func (p entityParams) resolve(names []string, sql string, syn Syntax) ([]any, error) {
	sv, ok := addressable(p.v)
	if !ok {
		if p.v == nil {
			return nil, bindErrorf("", sql, "entity is nil")
		}
		return nil, bindErrorf("", sql, "entity must be a struct or pointer to struct, got %T", p.v)
	}
	ms := membersOf(sv.Type())
	values := make([]any, len(names))
	for i, name := range names {
		v, found := ms.get(sv, strings.TrimPrefix(name, string(syn.Prefix)))
		if !found {
			return nil, bindErrorf(name, sql, "has no matching member on %s", sv.Type())
		}
		values[i] = v
	}
	return values, nil
}

// bind resolves every placeholder of cmd and attaches the parameters through newParam.
// Nothing is attached unless all placeholders resolve.
func bind(cmd *Command, p Params, newParam func(name string, value any) *Parameter) error {
	if len(cmd.Tokens) == 0 {
		return nil
	}
	names := distinctNames(cmd.Tokens)
	if p == nil {
		return bindErrorf(names[0], cmd.Text, "has no value: no parameters supplied")
	}
	values, err := p.resolve(names, cmd.Text, cmd.Syntax)
	if err != nil {
		return err
	}
	params := make([]*Parameter, len(names))
	for i, name := range names {
		params[i] = newParam(name, values[i])
	}
	cmd.Parameters = append(cmd.Parameters, params...)
	return nil
}
