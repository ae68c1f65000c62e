package engine

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
)

type schedulerState int

const (
	idle schedulerState = iota
	draining
)

// Runtime owns the graph of definitions, their live activations, the
// scheduler queue and the logical clock.
//
// CRITICAL: a Runtime runs on a single logical thread. Graph edits, updates
// and pumps must not be issued concurrently.
//
// INVARIANTS:
//   - Applications are ordered by priority string; lexicographic order is a
//     topological order of each root's application graph
//   - The clock advances only at the end of a pump that drained a task
//   - Structural edits never run while the scheduler is draining
type Runtime struct {
	clock    *Clock
	state    schedulerState
	queue    *taskQueue
	roots    []*UserDefinition
	logger   *slog.Logger
	observer Observer
	natives  map[*NativeDefinition]bool

	defSeq   int64
	appSeq   int64
	actSeq   int64
	writeSeq int64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers an observer for output writes and instants.
func WithObserver(o Observer) Option {
	return func(r *Runtime) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithStartInstant positions the clock at a given instant. Used when
// continuing a recorded run.
func WithStartInstant(i Instant) Option {
	return func(r *Runtime) {
		r.clock = NewClockAt(i)
	}
}

// New creates an empty runtime with the clock at instant 1.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		clock:    NewClock(),
		queue:    newTaskQueue(),
		logger:   slog.Default(),
		observer: nopObserver{},
		natives:  make(map[*NativeDefinition]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefinitionOption configures a new user definition.
type DefinitionOption func(*definitionConfig)

type definitionConfig struct {
	name      string
	signature Signature
}

// WithDefinitionName labels the definition in logs, errors and traces.
func WithDefinitionName(name string) DefinitionOption {
	return func(c *definitionConfig) { c.name = name }
}

// WithSignature declares the definition's inputs and outputs.
func WithSignature(sig Signature) DefinitionOption {
	return func(c *definitionConfig) { c.signature = sig }
}

// ApplicationOption configures a new native application.
type ApplicationOption func(*applicationConfig)

type applicationConfig struct {
	name string
}

// WithApplicationName labels the application in logs, errors and traces.
func WithApplicationName(name string) ApplicationOption {
	return func(c *applicationConfig) { c.name = name }
}

// guard rejects structural edits while propagation is in progress.
func (r *Runtime) guard(op string) {
	if r.state == draining || r.queue.Len() > 0 {
		panic(newReentrantMutation(op))
	}
}

// AddRootUserDefinition creates a definition with no parent.
func (r *Runtime) AddRootUserDefinition(opts ...DefinitionOption) (*UserDefinition, error) {
	r.guard("AddRootUserDefinition")
	def, err := r.newUserDefinition(nil, opts)
	if err != nil {
		return nil, err
	}
	r.roots = append(r.roots, def)
	r.logger.Debug("root definition added", "definition", def.name)
	return def, nil
}

// AddContainedUserDefinition creates a definition nested in parent. Every
// live activation of parent immediately exposes a closure of it.
func (r *Runtime) AddContainedUserDefinition(parent *UserDefinition, opts ...DefinitionOption) (*UserDefinition, error) {
	r.guard("AddContainedUserDefinition")
	if parent == nil {
		return nil, newInvalidDefinition("contained definition needs a parent")
	}
	def, err := r.newUserDefinition(parent, opts)
	if err != nil {
		return nil, err
	}
	parent.definitions = append(parent.definitions, def)
	for _, act := range parent.activations {
		r.bindFunction(act, def)
	}
	r.mustResort(def.Root())
	r.logger.Debug("contained definition added", "definition", def.name, "parent", parent.name)
	return def, nil
}

func (r *Runtime) newUserDefinition(parent *UserDefinition, opts []DefinitionOption) (*UserDefinition, error) {
	var cfg definitionConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.signature.Validate(); err != nil {
		return nil, err
	}

	r.defSeq++
	def := &UserDefinition{
		id:        r.defSeq,
		name:      cfg.name,
		parent:    parent,
		signature: cfg.signature,
	}
	if def.name == "" {
		def.name = fmt.Sprintf("def%d", def.id)
	}
	for _, p := range cfg.signature.Inputs {
		def.inputs = append(def.inputs, &OutPort{
			name:  p.Name,
			tempo: p.Tempo,
			scope: def,
			owner: def.name + "/in",
		})
	}
	for _, p := range cfg.signature.Outputs {
		def.outputs = append(def.outputs, &InPort{
			name:  p.Name,
			tempo: p.Tempo,
			scope: def,
			owner: def.name + "/out",
			slot:  def,
		})
	}
	if parent != nil {
		def.fn = &OutPort{
			name:  def.name,
			tempo: TempoStep,
			scope: parent,
			owner: parent.name + "/fn",
		}
	}
	return def, nil
}

// AddNativeApplication applies a native definition inside def. Every live
// activation of def activates the new application at once; nothing is
// flowed or pumped.
func (r *Runtime) AddNativeApplication(def *UserDefinition, native *NativeDefinition, opts ...ApplicationOption) (*Application, error) {
	r.guard("AddNativeApplication")
	if def == nil {
		return nil, newInvalidDefinition("native application needs a containing definition")
	}
	if err := r.validateNative(native); err != nil {
		return nil, err
	}

	var cfg applicationConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r.appSeq++
	app := &Application{
		id:     r.appSeq,
		name:   cfg.name,
		native: native,
		scope:  def,
	}
	if app.name == "" {
		app.name = fmt.Sprintf("%s#%d", native.Name, app.id)
	}
	for _, p := range native.Signature.Inputs {
		app.inputs = append(app.inputs, &InPort{
			name:  p.Name,
			tempo: p.Tempo,
			scope: def,
			owner: app.name,
			app:   app,
		})
	}
	for _, p := range native.Signature.Outputs {
		app.outputs = append(app.outputs, &OutPort{
			name:  p.Name,
			tempo: p.Tempo,
			scope: def,
			owner: app.name,
			app:   app,
		})
	}
	def.applications = append(def.applications, app)
	r.mustResort(def.Root())

	for _, act := range slices.Clone(def.activations) {
		if err := r.activateNativeApplication(app, act); err != nil {
			return nil, err
		}
	}
	if r.queue.Len() != 0 {
		panic("engine: activating a new application enqueued tasks")
	}
	r.logger.Debug("native application added",
		"application", app.name,
		"native", native.Name,
		"definition", def.name,
		"priority", app.priority,
	)
	return app, nil
}

func (r *Runtime) validateNative(native *NativeDefinition) error {
	if native != nil && r.natives[native] {
		return nil
	}
	if err := native.Validate(); err != nil {
		return err
	}
	r.natives[native] = true
	return nil
}

// IsValidConnection reports why a connection from out to in would be
// rejected, or nil. The graph is left unchanged.
func (r *Runtime) IsValidConnection(out *OutPort, in *InPort) error {
	path, err := validateConnection(out, in)
	if err != nil {
		return err
	}
	c := &Connection{out: out, in: in, path: path}
	attach(c)
	_, err = sortRoot(out.scope.Root())
	detach(c)
	return err
}

// AddConnection connects out to in. The destination scope must be the
// source scope or nested in it, tempos must match and in must be free.
//
// A connection that would close a cycle is rejected with a cycle error and
// leaves every priority unchanged. A step connection immediately flows the
// current value into every live destination activation.
func (r *Runtime) AddConnection(out *OutPort, in *InPort) (*Connection, error) {
	r.guard("AddConnection")
	path, err := validateConnection(out, in)
	if err != nil {
		return nil, err
	}

	c := &Connection{out: out, in: in, path: path}
	attach(c)
	if err := r.resort(out.scope.Root()); err != nil {
		detach(c)
		r.logger.Debug("connection rejected", "connection", c.String(), "error", err)
		return nil, err
	}
	r.logger.Debug("connection added", "connection", c.String(), "depth", len(path))

	if in.tempo == TempoStep {
		for _, act := range slices.Clone(out.scope.activations) {
			src := act.env.bindings[out]
			if src == nil {
				continue
			}
			if _, ok := src.LastChanged(); !ok {
				continue
			}
			r.flowConnection(c, act, src.latest)
		}
	}
	r.pumpIfIdle()
	return c, nil
}

// Disconnect removes a connection. For step tempo, every destination
// activation then observes an undefined value.
func (r *Runtime) Disconnect(c *Connection) error {
	r.guard("Disconnect")
	if c == nil || c.in.connection != c {
		return newInvalidConnection("connection is not attached", nil, nil)
	}
	detach(c)
	r.mustResort(c.out.scope.Root())
	r.logger.Debug("connection removed", "connection", c.String())

	if c.in.tempo == TempoStep {
		for _, act := range slices.Clone(c.out.scope.activations) {
			r.flowConnection(c, act, nil)
		}
	}
	r.pumpIfIdle()
	return nil
}

// RemoveApplication detaches every connection of app and destroys it in
// every live activation. Downstream inputs keep their last value.
func (r *Runtime) RemoveApplication(app *Application) error {
	r.guard("RemoveApplication")
	if app == nil || app.removed {
		return newInvalidDefinition("application is not part of the graph")
	}
	for _, in := range app.inputs {
		if in.connection != nil {
			detach(in.connection)
		}
		in.removed = true
	}
	for _, out := range app.outputs {
		for _, c := range slices.Clone(out.connections) {
			detach(c)
		}
		out.removed = true
	}
	for _, act := range slices.Clone(app.scope.activations) {
		if na := act.natives[app]; na != nil {
			na.destroy()
			delete(act.natives, app)
		}
		for _, in := range app.inputs {
			delete(act.inStreams, in)
		}
		for _, out := range app.outputs {
			delete(act.env.bindings, out)
		}
	}
	app.removed = true
	app.scope.applications = slices.DeleteFunc(app.scope.applications, func(a *Application) bool { return a == app })
	r.mustResort(app.scope.Root())
	r.logger.Debug("native application removed", "application", app.name)
	return nil
}

func validateConnection(out *OutPort, in *InPort) ([]*UserDefinition, error) {
	if out == nil || in == nil {
		return nil, newInvalidConnection("both ports are required", out, in)
	}
	if out.removed || in.removed {
		return nil, newInvalidConnection("port belongs to a removed application", out, in)
	}
	if in.connection != nil {
		return nil, newInvalidConnection("input is already connected", out, in)
	}
	if out.tempo != in.tempo {
		return nil, newInvalidConnection(fmt.Sprintf("tempo mismatch: %s output to %s input", out.tempo, in.tempo), out, in)
	}
	path, ok := connectionPath(out, in)
	if !ok {
		return nil, newInvalidConnection("destination scope is not the source scope or nested in it", out, in)
	}
	return path, nil
}

func attach(c *Connection) {
	c.out.connections = append(c.out.connections, c)
	c.in.connection = c
}

func detach(c *Connection) {
	c.out.connections = slices.DeleteFunc(c.out.connections, func(x *Connection) bool { return x == c })
	if c.in.connection == c {
		c.in.connection = nil
	}
}

// resort recomputes every priority under root, assigning only on success.
func (r *Runtime) resort(root *UserDefinition) error {
	priorities, err := sortRoot(root)
	if err != nil {
		return err
	}
	for app, p := range priorities {
		app.priority = p
	}
	return nil
}

// mustResort is used after edits that cannot introduce a cycle.
func (r *Runtime) mustResort(root *UserDefinition) {
	if err := r.resort(root); err != nil {
		panic(fmt.Sprintf("engine: acyclic edit produced %v", err))
	}
}

// byPriority returns apps ordered by priority string.
func (r *Runtime) byPriority(apps []*Application) []*Application {
	sorted := slices.Clone(apps)
	slices.SortStableFunc(sorted, func(a, b *Application) int {
		if c := cmp.Compare(a.priority, b.priority); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	return sorted
}

// CurrentInstant returns the instant the next pump will process.
func (r *Runtime) CurrentInstant() Instant { return r.clock.Current() }

// Pumping reports whether the scheduler is draining.
func (r *Runtime) Pumping() bool { return r.state == draining }

// QueueLen returns the number of pending tasks, duplicates included.
func (r *Runtime) QueueLen() int { return r.queue.Len() }

// Roots returns the root definitions in creation order.
func (r *Runtime) Roots() []*UserDefinition { return slices.Clone(r.roots) }

// Activations returns every live user activation ordered by ID.
func (r *Runtime) Activations() []*UserActivation {
	var out []*UserActivation
	var walk func(d *UserDefinition)
	walk = func(d *UserDefinition) {
		out = append(out, d.activations...)
		for _, child := range d.definitions {
			walk(child)
		}
	}
	for _, root := range r.roots {
		walk(root)
	}
	slices.SortFunc(out, func(a, b *UserActivation) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Inputs returns the view app would receive if updated now in activation
// act.
func (r *Runtime) Inputs(app *Application, act *UserActivation) (Inputs, error) {
	if app == nil || act == nil || app.scope != act.def {
		return nil, newInvalidDefinition("application is not part of the activation's definition")
	}
	if act.destroyed {
		return nil, newDestroyedActivation(act.id)
	}
	return r.gatherInputs(app, act, false), nil
}

// OutputValue returns the latest value of an application output in act.
func (r *Runtime) OutputValue(app *Application, port string, act *UserActivation) (Value, error) {
	if app == nil || act == nil || app.scope != act.def {
		return nil, newInvalidDefinition("application is not part of the activation's definition")
	}
	out := app.Output(port)
	if out == nil {
		return nil, newUnknownPort(app.name, port)
	}
	s := act.env.bindings[out]
	if s == nil {
		return nil, newDestroyedActivation(act.id)
	}
	return s.latest, nil
}
