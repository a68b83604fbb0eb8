package soma

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// Channel capacities. A full channel suspends the sender; this is the
// runtime's only backpressure.
const (
	childBuffer = 10
	queueBuffer = 100
)

// connection is a pending wiring entry, pushed to its endpoints at Init.
type connection[Y comparable] struct {
	input  Handle
	output Handle
	role   Y
}

// Organelle is a composite soma: it owns a set of child somas, a central
// routing task, and one designated main child that is its external face.
// An organelle's wiring slots are exactly the main child's; payloads the
// main child sends outward are re-stamped with the organelle's own
// identity so siblings of the organelle never observe its internals.
//
// The zero value is not usable; construct with NewOrganelle.
type Organelle[S any, Y comparable] struct {
	reactor *Reactor

	// inbox is the organelle's own inbound channel, consumed by Run when
	// this is the outermost soma.
	inbox chan Impulse[S, Y]

	// queue is the internal routing channel every child emits into.
	queue chan Impulse[S, Y]

	parent   *Handle
	effector *Effector[S, Y]

	// self is the fabricated identity used when run as the outermost soma.
	self        Handle
	mainHdl     Handle
	connections []connection[Y]

	nodes map[Handle]chan Impulse[S, Y]

	initialized bool
	runID       string
	label       string
	events      EventHandler
	probeWriter io.Writer
}

// NewOrganelle creates a composite soma around its main child. The main
// child is the organelle's entry point: external wiring and signals are
// handed to it, and its outward traffic presents as the organelle's own.
func NewOrganelle[S any, Y comparable](reactor *Reactor, main Soma[S, Y]) *Organelle[S, Y] {
	o := &Organelle[S, Y]{
		reactor:     reactor,
		inbox:       make(chan Impulse[S, Y], childBuffer),
		queue:       make(chan Impulse[S, Y], queueBuffer),
		self:        NewHandle(),
		nodes:       make(map[Handle]chan Impulse[S, Y]),
		probeWriter: os.Stdout,
	}

	// Adding the first soma cannot fail: the organelle is not initialized.
	mainHdl, _ := o.AddSoma(main)
	o.mainHdl = mainHdl

	return o
}

// WithLabel sets the diagnostic label reported by probes and events, and
// returns the organelle for chaining.
func (o *Organelle[S, Y]) WithLabel(label string) *Organelle[S, Y] {
	o.label = label
	return o
}

// WithEventHandler sets the handler runtime events are fanned out to, and
// returns the organelle for chaining. The handler runs on routing and
// drive tasks; it must not block.
func (o *Organelle[S, Y]) WithEventHandler(h EventHandler) *Organelle[S, Y] {
	o.events = h
	return o
}

// WithProbeWriter redirects probe output, which defaults to stdout, and
// returns the organelle for chaining.
func (o *Organelle[S, Y]) WithProbeWriter(w io.Writer) *Organelle[S, Y] {
	o.probeWriter = w
	return o
}

// AddSoma adds a child speaking the organelle's own protocol, spawns its
// drive task, and returns its handle. Children cannot be added once the
// organelle has received Init.
func (o *Organelle[S, Y]) AddSoma(child Soma[S, Y]) (Handle, error) {
	return Attach(o, child, Identity[S, Y](), Identity[S, Y]())
}

// Attach adds a child speaking a different protocol. Impulses delivered to
// the child go through down; impulses the child emits go through up. The
// two codecs are expected to be mutual inverses over the signal and
// synapse values the topology exchanges.
func Attach[CS any, CY comparable, S any, Y comparable](
	o *Organelle[S, Y],
	child Soma[CS, CY],
	down Codec[S, Y, CS, CY],
	up Codec[CS, CY, S, Y],
) (Handle, error) {
	if o.initialized {
		return Handle{}, ErrAlreadyInitialized
	}

	hdl := NewHandle()
	inbox := make(chan Impulse[S, Y], childBuffer)
	o.nodes[hdl] = inbox

	o.reactor.Spawn(func(ctx context.Context) {
		driveSoma(ctx, o, hdl, inbox, child, down, up)
	})

	return hdl, nil
}

// driveSoma is the per-child task: it converts each inbound impulse to the
// child's protocol, awaits the child's update, and rebinds the child to
// the returned value. A failed update is lifted to an Err impulse on the
// organelle's routing queue and ends the task.
func driveSoma[CS any, CY comparable, S any, Y comparable](
	ctx context.Context,
	o *Organelle[S, Y],
	hdl Handle,
	inbox <-chan Impulse[S, Y],
	node Soma[CS, CY],
	down Codec[S, Y, CS, CY],
	up Codec[CS, CY, S, Y],
) {
	for {
		select {
		case <-ctx.Done():
			return
		case imp, ok := <-inbox:
			if !ok {
				return
			}

			var cimp Impulse[CS, CY]
			if imp.Kind == KindInit {
				// The effector is a live channel half: adapt its send
				// path instead of converting it field-wise.
				cimp = NewInit(imp.Parent, adaptEffector(imp.Effector, up))
			} else {
				cimp = down.Convert(imp)
			}

			next, err := node.Update(ctx, cimp)
			if err != nil {
				o.emit(Event{Kind: EventSomaFailed, Node: hdl, Impulse: imp.Kind, Err: err})
				failure := NewErr[S, Y](fmt.Errorf("%w: %w", ErrSomaFailed, err))
				select {
				case o.queue <- failure:
				case <-ctx.Done():
				}
				return
			}
			node = next
		}
	}
}

// Connect records a pending connection between two handles under a role.
// Connections are pushed to their endpoints when the organelle receives
// Init: the input learns its output via AddOutput, the output learns its
// input via AddInput. Endpoints outside this organelle are permitted; only
// local ones are delivered to.
func (o *Organelle[S, Y]) Connect(input, output Handle, role Y) error {
	if o.initialized {
		return ErrAlreadyInitialized
	}
	o.connections = append(o.connections, connection[Y]{input: input, output: output, role: role})
	return nil
}

// Parent returns the enclosing scope's handle, nil at the top level or
// before Init.
func (o *Organelle[S, Y]) Parent() *Handle {
	return o.parent
}

// MainHandle returns the handle of the designated main child.
func (o *Organelle[S, Y]) MainHandle() Handle {
	return o.mainHdl
}

// Self returns the identity the organelle fabricates for itself when run
// as the outermost soma. Nested organelles are addressed by the handle
// their parent assigned instead.
func (o *Organelle[S, Y]) Self() Handle {
	return o.self
}

// init wires the composite together: it stores the parent, builds the
// internal effector bearing the identity the enclosing scope assigned,
// initializes every child with its own child-local identity, pushes the
// pending connections, and spawns the routing task.
func (o *Organelle[S, Y]) init(ctx context.Context, parent *Handle, external *Effector[S, Y]) error {
	if o.initialized {
		return ErrInitRepeated
	}
	o.initialized = true
	o.parent = parent

	hdl := external.This()
	reactor := external.Reactor()
	o.effector = &Effector[S, Y]{this: hdl, send: chanSend(o.queue), reactor: reactor}
	o.runID = uuid.NewString()
	o.emit(Event{Kind: EventInitialized, Node: hdl})

	// Every child emits into the routing queue, stamped with its own
	// child-local handle.
	for child := range o.nodes {
		eff := &Effector[S, Y]{this: child, send: chanSend(o.queue), reactor: reactor}
		if err := o.updateNode(ctx, child, NewInit(&hdl, eff)); err != nil {
			return err
		}
	}

	for _, c := range o.connections {
		if _, ok := o.nodes[c.input]; ok {
			if err := o.updateNode(ctx, c.input, NewAddOutput[S, Y](c.output, c.role)); err != nil {
				return err
			}
		}
		if _, ok := o.nodes[c.output]; ok {
			if err := o.updateNode(ctx, c.output, NewAddInput[S, Y](c.input, c.role)); err != nil {
				return err
			}
		}
	}

	// The routing task works on a snapshot; the topology is frozen from
	// here on.
	nodes := make(map[Handle]chan Impulse[S, Y], len(o.nodes))
	for h, ch := range o.nodes {
		nodes[h] = ch
	}
	o.reactor.Spawn(func(ctx context.Context) {
		o.route(ctx, hdl, nodes, external)
	})

	return nil
}

// route is the central routing task. It drains the internal queue,
// rewrites source identities at the boundary, and dispatches payloads
// inward, to the main child, or upward.
func (o *Organelle[S, Y]) route(
	ctx context.Context,
	organelleHdl Handle,
	nodes map[Handle]chan Impulse[S, Y],
	external *Effector[S, Y],
) {
	for {
		select {
		case <-ctx.Done():
			return
		case imp := <-o.queue:
			switch imp.Kind {
			case KindPayload:
				o.routePayload(ctx, organelleHdl, nodes, external, imp)

			case KindProbe:
				fmt.Fprintln(o.probeWriter, o.describe())
				o.emit(Event{Kind: EventProbe, Dest: imp.Dest})

			case KindStop:
				o.emit(Event{Kind: EventStopped})
				_ = external.Emit(ctx, NewStop[S, Y]())

			case KindErr:
				_ = external.Emit(ctx, imp)

			default:
				// Lifecycle impulses never legally reach the routing
				// queue; surface the bug instead of dropping it.
				o.emit(Event{Kind: EventProtocolViolation, Impulse: imp.Kind})
				_ = external.Emit(ctx, NewErr[S, Y](fmt.Errorf("%w: %s on routing queue", ErrProtocol, imp.Kind)))
			}
		}
	}
}

func (o *Organelle[S, Y]) routePayload(
	ctx context.Context,
	organelleHdl Handle,
	nodes map[Handle]chan Impulse[S, Y],
	external *Effector[S, Y],
	imp Impulse[S, Y],
) {
	src := imp.Src
	_, localDest := nodes[imp.Dest]

	// The main soma is just another child inside these walls, but
	// presents as the organelle itself to everything outside them.
	if src == o.mainHdl && imp.Dest != organelleHdl && !localDest {
		src = organelleHdl
	}

	switch {
	case imp.Dest == organelleHdl:
		o.emit(Event{Kind: EventSignalDelivered, Node: o.mainHdl, Src: src, Dest: imp.Dest, Impulse: KindSignal})
		sendInbox(ctx, nodes[o.mainHdl], NewSignal[S, Y](src, imp.Signal))

	case localDest:
		o.emit(Event{Kind: EventSignalDelivered, Node: imp.Dest, Src: src, Dest: imp.Dest, Impulse: KindSignal})
		sendInbox(ctx, nodes[imp.Dest], NewSignal[S, Y](src, imp.Signal))

	default:
		o.emit(Event{Kind: EventImpulseForwarded, Src: src, Dest: imp.Dest, Impulse: KindPayload})
		_ = external.Emit(ctx, NewPayload[S, Y](src, imp.Dest, imp.Signal))
	}
}

func sendInbox[S any, Y comparable](ctx context.Context, ch chan<- Impulse[S, Y], imp Impulse[S, Y]) {
	select {
	case ch <- imp:
	case <-ctx.Done():
	}
}

// updateNode delivers an impulse to a child's inbound channel.
func (o *Organelle[S, Y]) updateNode(ctx context.Context, hdl Handle, imp Impulse[S, Y]) error {
	ch, ok := o.nodes[hdl]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, hdl)
	}
	select {
	case ch <- imp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Update implements the Soma contract for the composite. Init wires the
// network, Start fans out to every child, and wiring and signal impulses
// are handed to the main child: externally, the organelle's slots are the
// main child's slots.
func (o *Organelle[S, Y]) Update(ctx context.Context, imp Impulse[S, Y]) (Soma[S, Y], error) {
	switch imp.Kind {
	case KindInit:
		if err := o.init(ctx, imp.Parent, imp.Effector); err != nil {
			return nil, err
		}
		return o, nil

	case KindAddInput, KindAddOutput:
		if err := o.updateNode(ctx, o.mainHdl, imp); err != nil {
			return nil, err
		}
		return o, nil

	case KindStart:
		o.emit(Event{Kind: EventStarted})
		for hdl := range o.nodes {
			if err := o.updateNode(ctx, hdl, NewStart[S, Y]()); err != nil {
				return nil, err
			}
		}
		return o, nil

	case KindSignal:
		if err := o.updateNode(ctx, o.mainHdl, imp); err != nil {
			return nil, err
		}
		return o, nil

	default:
		return nil, fmt.Errorf("%w: organelle cannot accept %s", ErrProtocol, imp.Kind)
	}
}

// Run drives the organelle as the outermost soma. It seeds its own inbound
// channel with Init and Start, then processes impulses until Stop (clean
// return) or Err (returned as the failure). Context cancellation tears the
// whole network down cooperatively.
func (o *Organelle[S, Y]) Run(ctx context.Context) error {
	eff := NewEffector(o.self, o.inbox, o.reactor)
	if err := eff.Emit(ctx, NewInit(nil, eff)); err != nil {
		return err
	}
	if err := eff.Emit(ctx, NewStart[S, Y]()); err != nil {
		return err
	}

	var node Soma[S, Y] = o
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case imp := <-o.inbox:
			switch imp.Kind {
			case KindInit, KindAddInput, KindAddOutput, KindStart:
				next, err := node.Update(ctx, imp)
				if err != nil {
					return err
				}
				node = next

			case KindPayload:
				// Payloads at this layer can only be addressed to us.
				if imp.Dest != o.self {
					return fmt.Errorf("%w: payload for %s on the top-level queue", ErrProtocol, imp.Dest)
				}
				next, err := node.Update(ctx, NewSignal[S, Y](imp.Src, imp.Signal))
				if err != nil {
					return err
				}
				node = next

			case KindProbe:
				if imp.Dest != o.self {
					return fmt.Errorf("%w: probe for %s on the top-level queue", ErrProtocol, imp.Dest)
				}
				fmt.Fprintln(o.probeWriter, o.describe())
				o.emit(Event{Kind: EventProbe, Dest: imp.Dest})

			case KindStop:
				o.emit(Event{Kind: EventStopped})
				return nil

			case KindErr:
				return imp.Err

			default:
				return fmt.Errorf("%w: %s on the top-level queue", ErrProtocol, imp.Kind)
			}
		}
	}
}

// Inject feeds an impulse into the top-level queue from outside the
// network: tests use it to stop a running organelle, the probe scheduler
// to request live diagnostics.
func (o *Organelle[S, Y]) Inject(ctx context.Context, imp Impulse[S, Y]) error {
	select {
	case o.inbox <- imp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Probe injects a diagnostic probe addressed to the organelle itself.
func (o *Organelle[S, Y]) Probe(ctx context.Context) error {
	return o.Inject(ctx, NewProbe[S, Y](o.self))
}

// Stop injects a Stop impulse, asking a running organelle to exit cleanly.
func (o *Organelle[S, Y]) Stop(ctx context.Context) error {
	return o.Inject(ctx, NewStop[S, Y]())
}

func (o *Organelle[S, Y]) describe() string {
	if o.label != "" {
		return o.label
	}
	return fmt.Sprintf("%T", o)
}

func (o *Organelle[S, Y]) emit(e Event) {
	if o.events == nil {
		return
	}
	e.RunID = o.runID
	e.Label = o.label
	e.Time = time.Now()
	o.events(e)
}

var _ Soma[any, string] = (*Organelle[any, string])(nil)
