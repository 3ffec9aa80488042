package dbmo

import (
	"context"
	"sort"
)

// ExecuteProcedure calls stored procedure proc with the input values in and the output
// parameters declared in out. It returns the affected row count and the output values keyed
// as in out; the map holds only output parameters and is non-nil on success.
//
// Parameters are passed input keys first, then output keys, each group in key order. Backends
// that bind procedure arguments by position need ExecProcedure with an explicit order.
func (e *Engine) ExecuteProcedure(ctx context.Context, proc string, in map[string]any, out map[string]DbType) (int64, map[string]any, error) {
	pv := e.shared.provider
	params := make([]*Parameter, 0, len(in)+len(out))
	for _, k := range sortedKeys(in) {
		params = append(params, pv.NewParameter(k, in[k]))
	}
	for _, k := range sortedKeys(out) {
		params = append(params, pv.NewOutputParameter(k, out[k]))
	}
	return e.ExecProcedure(ctx, proc, params...)
}

// ExecProcedure calls proc with params in the given order. Build params with the provider's
// NewParameter and NewOutputParameter.
func (e *Engine) ExecProcedure(ctx context.Context, proc string, params ...*Parameter) (affected int64, values map[string]any, err error) {
	defer e.guard(&err)
	cmd := e.shared.provider.NewCommand(proc)
	cmd.Kind = CommandProcedure
	for _, p := range params {
		cmd.Add(p)
	}

	err = e.execute(ctx, cmd, func(ex Executor) error {
		if pc, ok := e.shared.provider.(ProcedureCaller); ok {
			n, err := pc.CallProcedure(ctx, ex, cmd)
			affected = n
			return err
		}
		query, args, err := e.render(cmd)
		if err != nil {
			return err
		}
		res, err := ex.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		// some drivers cannot count rows for procedure calls
		if n, rerr := res.RowsAffected(); rerr == nil {
			affected = n
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}

	values = make(map[string]any)
	for _, p := range cmd.Parameters {
		if p.Direction == Output {
			values[p.Name] = p.Result()
		}
	}
	return affected, values, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
