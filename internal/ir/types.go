package ir

// ProgramSpec is a compiled graph program: a set of root user definitions and
// the name of the definition a host activates as "main".
type ProgramSpec struct {
	Name        string           `json:"name"`
	Main        string           `json:"main"`
	Definitions []DefinitionSpec `json:"definitions"` // Root definitions in declaration order
}

// DefinitionSpec describes one user definition and everything it contains.
type DefinitionSpec struct {
	Name         string            `json:"name"`
	Inputs       []PortSpec        `json:"inputs,omitempty"`
	Outputs      []PortSpec        `json:"outputs,omitempty"`
	Applications []ApplicationSpec `json:"applications,omitempty"` // Declaration order
	Connections  []ConnectionSpec  `json:"connections,omitempty"`  // Declaration order
	Definitions  []DefinitionSpec  `json:"definitions,omitempty"`  // Nested, declaration order
}

// PortSpec is a named, tempo-tagged port.
type PortSpec struct {
	Name  string `json:"name"`
	Tempo string `json:"tempo"` // "step" or "event"
}

// ApplicationSpec applies a native definition from the registry.
type ApplicationSpec struct {
	Name   string   `json:"name"`
	Native string   `json:"native"`
	Config IRObject `json:"config,omitempty"`
}

// ConnectionSpec connects two port references.
// From is resolved lexically outward; To is resolved in the declaring definition.
type ConnectionSpec struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ValidTempos defines allowed tempo names.
var ValidTempos = map[string]bool{
	"step":  true,
	"event": true,
}

// Object returns the program as an IRObject for canonical encoding.
func (p ProgramSpec) Object() IRObject {
	defs := make(IRArray, len(p.Definitions))
	for i, d := range p.Definitions {
		defs[i] = d.Object()
	}
	return IRObject{
		"name":        IRString(p.Name),
		"main":        IRString(p.Main),
		"definitions": defs,
	}
}

// Object returns the definition as an IRObject for canonical encoding.
func (d DefinitionSpec) Object() IRObject {
	ports := func(ps []PortSpec) IRArray {
		arr := make(IRArray, len(ps))
		for i, p := range ps {
			arr[i] = IRObject{"name": IRString(p.Name), "tempo": IRString(p.Tempo)}
		}
		return arr
	}

	apps := make(IRArray, len(d.Applications))
	for i, a := range d.Applications {
		cfg := a.Config
		if cfg == nil {
			cfg = IRObject{}
		}
		apps[i] = IRObject{"name": IRString(a.Name), "native": IRString(a.Native), "config": cfg}
	}

	cxns := make(IRArray, len(d.Connections))
	for i, c := range d.Connections {
		cxns[i] = IRObject{"from": IRString(c.From), "to": IRString(c.To)}
	}

	nested := make(IRArray, len(d.Definitions))
	for i, n := range d.Definitions {
		nested[i] = n.Object()
	}

	return IRObject{
		"name":         IRString(d.Name),
		"inputs":       ports(d.Inputs),
		"outputs":      ports(d.Outputs),
		"applications": apps,
		"connections":  cxns,
		"definitions":  nested,
	}
}

// Definition returns the root definition with the given name.
func (p ProgramSpec) Definition(name string) (DefinitionSpec, bool) {
	for _, d := range p.Definitions {
		if d.Name == name {
			return d, true
		}
	}
	return DefinitionSpec{}, false
}
