package natives

import "github.com/roach88/rindel/internal/engine"

// mapChildren is the transient state of one map activation.
type mapChildren struct {
	fn       *engine.Closure
	children []engine.Activation
	results  []engine.Value
	updating bool
}

// NewMap is the "map" factory, a higher-order native.
//
// Step input "fn" carries a closure and step input "items" an array. One
// closure activation is kept per item; each receives its item on the input
// named by config "input" (default "item") and contributes the output named
// by config "output" (default "result") to step output "results". Children
// are updated in place when items change, added as the array grows and
// destroyed as it shrinks. A new closure rebuilds every child.
func NewMap(config map[string]any) (Native, error) {
	if err := checkKeys(config, "input", "output"); err != nil {
		return nil, err
	}
	inName, err := configString(config, "input", "item")
	if err != nil {
		return nil, err
	}
	outName, err := configString(config, "output", "result")
	if err != nil {
		return nil, err
	}

	m := &mapNative{input: inName, output: outName}
	return static{&engine.NativeDefinition{
		Name: "map",
		Signature: engine.Signature{
			Inputs: []engine.PortSpec{
				{Name: "fn", Tempo: engine.TempoStep},
				{Name: "items", Tempo: engine.TempoStep},
			},
			Outputs: []engine.PortSpec{{Name: "results", Tempo: engine.TempoStep}},
		},
		Create: func(ctx *engine.NativeContext) {
			ctx.Transient = &mapChildren{}
		},
		Update:  m.update,
		Destroy: m.destroy,
	}}, nil
}

type mapNative struct {
	input  string
	output string
}

func (m *mapNative) update(ctx *engine.NativeContext, in engine.Inputs) {
	st := ctx.Transient.(*mapChildren)
	fn, _ := in["fn"].Value.(*engine.Closure)
	items, _ := in["items"].Value.([]any)

	st.updating = true
	defer func() { st.updating = false }()

	if fn != st.fn {
		m.truncate(st, 0)
		st.fn = fn
	}
	if st.fn == nil {
		m.truncate(st, 0)
		ctx.SetOutputs(map[string]engine.Value{"results": []engine.Value{}})
		return
	}

	m.truncate(st, len(items))
	for i, item := range items {
		if i < len(st.children) {
			if in["items"].Changed {
				if err := st.children[i].Update(map[string]engine.Value{m.input: item}); err != nil {
					ctx.Logger().Error("map child update failed", "index", i, "error", err)
				}
			}
			continue
		}
		child, err := ctx.ActivateClosure(st.fn, map[string]engine.Value{m.input: item}, m.onChild(ctx, st, i))
		if err != nil {
			ctx.Logger().Error("map child activation failed", "index", i, "error", err)
			break
		}
		st.children = append(st.children, child)
		st.results = append(st.results, child.Outputs()[m.output])
	}
	ctx.SetOutputs(map[string]engine.Value{"results": append([]engine.Value{}, st.results...)})
}

// onChild records a child's output change and republishes the results
// unless the map itself is mid-update.
func (m *mapNative) onChild(ctx *engine.NativeContext, st *mapChildren, i int) func(map[string]engine.Value) {
	return func(outputs map[string]engine.Value) {
		v, ok := outputs[m.output]
		if !ok || i >= len(st.results) {
			return
		}
		st.results[i] = v
		if !st.updating {
			ctx.SetOutputs(map[string]engine.Value{"results": append([]engine.Value{}, st.results...)})
		}
	}
}

// truncate destroys children beyond n, newest first.
func (m *mapNative) truncate(st *mapChildren, n int) {
	for i := len(st.children) - 1; i >= n; i-- {
		st.children[i].Destroy()
	}
	if n < len(st.children) {
		st.children = st.children[:n]
		st.results = st.results[:n]
	}
}

func (m *mapNative) destroy(ctx *engine.NativeContext) {
	st, ok := ctx.Transient.(*mapChildren)
	if !ok {
		return
	}
	m.truncate(st, 0)
}
