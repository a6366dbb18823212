// Package router implements the local frame switch: it takes jacks on one
// side for external transports and clients on the other side for internal
// delivery, and performs exactly one hop of dispatch per received frame.
package router

import (
	"fmt"

	"go.uber.org/zap"

	"ejswitch/pkg/address"
	"ejswitch/pkg/frame"
)

// State is the switch run state.
type State string

const (
	Stopped  State = "stopped"
	Threaded State = "threaded"
)

// Recipient accepts a frame for delivery.
type Recipient interface {
	Route(f *frame.Frame) error
}

// Jack is an external transport endpoint. Run starts its background receive
// loop; both Run and Close are idempotent, and Close is safe when the jack
// was never started.
type Jack interface {
	Recipient
	Interface() address.Address // >= 2 components
	Run()
	Close() error
}

// Client is an internal endpoint addressed down to a client id.
type Client interface {
	Recipient
	Interface() address.Address // >= 3 components
}

// Options configures a Router.
type Options struct {
	// FrameLog enables the append-only activity log.
	FrameLog bool
	// Reporter receives non-fatal dispatch diagnostics. Defaults to a
	// zap-backed reporter.
	Reporter Reporter
}

// Router owns the jack/client registries and the run lifecycle. Receive may
// be called concurrently from every jack's receive goroutine; the Router has
// no goroutine of its own.
type Router struct {
	registry
	state  State
	report Reporter
	flog   *FrameLog
}

// New builds a Router, registers the given jacks and clients, and
// transitions to Threaded.
func New(opts Options, jacks []Jack, clients []Client) (*Router, error) {
	r := &Router{
		state:  Stopped,
		report: opts.Reporter,
		flog:   NewFrameLog(opts.FrameLog),
	}
	r.registry.init()
	if r.report == nil {
		r.report = ZapReporter()
	}
	for _, j := range jacks {
		if err := r.RegisterJack(j); err != nil {
			return nil, err
		}
	}
	for _, c := range clients {
		if err := r.RegisterClient(c); err != nil {
			return nil, err
		}
	}
	r.Run(Threaded)
	return r, nil
}

// RegisterJack stores a jack under its 2-component key, overwriting any
// prior entry. A jack registered while the Router is threaded is started
// immediately so late joiners are not left idle.
func (r *Router) RegisterJack(j Jack) error {
	start, err := r.registry.addJack(j, func() bool { return r.state == Threaded })
	if err != nil {
		return err
	}
	if start {
		j.Run()
	}
	return nil
}

// RegisterClient stores a client under its 3-component key, overwriting any
// prior entry. Registration never affects the run lifecycle.
func (r *Router) RegisterClient(c Client) error {
	return r.registry.addClient(c)
}

// Receive accepts raw wire bytes from a jack's receive loop. It never
// panics or returns an error to the caller: malformed input and failing
// recipients are reported through the sink and dropped.
func (r *Router) Receive(raw []byte) {
	r.flog.Add(string(raw))
	f, err := frame.Parse(raw)
	if err != nil {
		r.report.Report("could not parse frame",
			zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}
	r.dispatch(f)
}

// ReceiveFrame accepts an already-parsed frame, typically from an
// in-process client.
func (r *Router) ReceiveFrame(f *frame.Frame) {
	r.flog.Add(f.String())
	r.dispatch(f)
}

func (r *Router) dispatch(f *frame.Frame) {
	switch f.Kind {
	case frame.KindRouted:
		rcpt := r.resolve(f.Addr)
		if rcpt == nil {
			r.report.Report("could not deliver frame",
				zap.String("addr", f.Addr.String()))
			return
		}
		r.deliver(rcpt, f)
	case frame.KindSent:
		// Already delivered at the transport boundary; observe only.
		zap.L().Debug("frame received directly", zap.String("addr", f.Addr.String()))
	default:
		zap.L().Debug("unrecognized frame kind",
			zap.String("kind", string(f.Kind)), zap.String("addr", f.Addr.String()))
	}
}

// resolve picks a recipient for a routed frame. Clients take priority over
// jacks at the same address.
func (r *Router) resolve(addr address.Address) Recipient {
	if c, ok := r.LookupClient(addr); ok {
		return c
	}
	if j, ok := r.LookupJack(addr); ok {
		return j
	}
	return nil
}

// deliver invokes the recipient inside a fault-isolating scope. This is the
// one place errors and panics from arbitrary recipient code are converted
// into reported, non-propagating outcomes, so a downstream failure cannot
// take out the calling jack's receive loop.
func (r *Router) deliver(rcpt Recipient, f *frame.Frame) {
	defer func() {
		if p := recover(); p != nil {
			r.report.Report("recipient panicked",
				zap.String("addr", f.Addr.String()), zap.Any("panic", p))
		}
	}()
	if err := rcpt.Route(f); err != nil {
		r.report.Report("recipient delivery failed",
			zap.String("addr", f.Addr.String()), zap.Error(err))
	}
}

// Run transitions the lifecycle. Threaded starts every registered jack
// (a no-op when already threaded); Stopped closes every jack and is safe to
// call even if nothing was ever started. Lifecycle calls are expected from
// a single controlling goroutine but may race with Receive.
func (r *Router) Run(target State) {
	switch target {
	case Threaded:
		r.registry.mu.Lock()
		start := r.state != Threaded
		r.state = Threaded
		var js []Jack
		if start {
			js = r.jackSnapshotLocked()
		}
		r.registry.mu.Unlock()
		for _, j := range js {
			j.Run()
		}
	case Stopped:
		r.registry.mu.Lock()
		r.state = Stopped
		js := r.jackSnapshotLocked()
		r.registry.mu.Unlock()
		for _, j := range js {
			if err := j.Close(); err != nil {
				r.report.Report("jack close failed",
					zap.String("iface", j.Interface().String()), zap.Error(err))
			}
		}
	default:
		r.report.Report("ignoring unknown run state", zap.String("state", string(target)))
	}
}

// RunState returns the current lifecycle state.
func (r *Router) RunState() State {
	r.registry.mu.RLock()
	defer r.registry.mu.RUnlock()
	return r.state
}

// FrameLog exposes the activity log for diagnostics.
func (r *Router) FrameLog() *FrameLog { return r.flog }

// DumpLog renders the activity log for display.
func (r *Router) DumpLog() string {
	entries := r.flog.Entries()
	out := "[\n"
	for i, e := range entries {
		out += fmt.Sprintf("    %q", e)
		if i < len(entries)-1 {
			out += ","
		}
		out += "\n"
	}
	return out + "]"
}
