package router

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"ejswitch/pkg/address"
	"ejswitch/pkg/frame"
)

// ---- test doubles ----

type stubJack struct {
	iface address.Address

	mu     sync.Mutex
	routed []*frame.Frame
	runs   int
	closes int
}

func newStubJack(components ...any) *stubJack {
	return &stubJack{iface: address.New(components...)}
}

func (s *stubJack) Interface() address.Address { return s.iface }

func (s *stubJack) Run() {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
}

func (s *stubJack) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return nil
}

func (s *stubJack) Route(f *frame.Frame) error {
	s.mu.Lock()
	s.routed = append(s.routed, f)
	s.mu.Unlock()
	return nil
}

func (s *stubJack) counts() (runs, closes, routed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.closes, len(s.routed)
}

type stubClient struct {
	iface address.Address

	mu     sync.Mutex
	routed []*frame.Frame
	err    error
	panics bool
}

func newStubClient(components ...any) *stubClient {
	return &stubClient{iface: address.New(components...)}
}

func (s *stubClient) Interface() address.Address { return s.iface }

func (s *stubClient) Route(f *frame.Frame) error {
	if s.panics {
		panic("client exploded")
	}
	s.mu.Lock()
	s.routed = append(s.routed, f)
	s.mu.Unlock()
	return s.err
}

func (s *stubClient) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.routed)
}

type captureReporter struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureReporter) Report(msg string, _ ...zap.Field) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

func (c *captureReporter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func mustRouter(t *testing.T, opts Options, jacks []Jack, clients []Client) *Router {
	t.Helper()
	r, err := New(opts, jacks, clients)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return r
}

// ---- registry ----

func TestClientLookupExactAndReplace(t *testing.T) {
	c1 := newStubClient("local", nil, "alice")
	r := mustRouter(t, Options{}, nil, []Client{c1})

	got, ok := r.LookupClient(address.New("local", nil, "alice"))
	if !ok || got != Client(c1) {
		t.Fatalf("exact lookup failed")
	}
	if _, ok := r.LookupClient(address.New("local", nil, "bob")); ok {
		t.Fatalf("lookup of unregistered client should miss")
	}

	c2 := newStubClient("local", nil, "alice")
	if err := r.RegisterClient(c2); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	got, _ = r.LookupClient(address.New("local", nil, "alice"))
	if got != Client(c2) {
		t.Fatalf("second registration should replace the first")
	}
}

func TestJackLookupMatchesTransportTypeOnly(t *testing.T) {
	j1 := newStubJack("udp", "9.9.9.9")
	j2 := newStubJack("udp", "8.8.8.8")
	r := mustRouter(t, Options{}, []Jack{j1, j2}, nil)

	got, ok := r.LookupJack(address.New("udp", "1.1.1.1"))
	if !ok {
		t.Fatalf("lookup by type failed")
	}
	if got != Jack(j1) && got != Jack(j2) {
		t.Fatalf("lookup returned a jack outside the registered set")
	}
	if _, ok := r.LookupJack(address.New("tcp", "1.1.1.1")); ok {
		t.Fatalf("lookup of unregistered type should miss")
	}
}

func TestRegisterShortAddressesRejected(t *testing.T) {
	if _, err := New(Options{}, []Jack{newStubJack("udp")}, nil); err == nil {
		t.Fatalf("want error for 1-component jack address")
	}
	if _, err := New(Options{}, nil, []Client{newStubClient("local", nil)}); err == nil {
		t.Fatalf("want error for 2-component client address")
	}
}

// ---- dispatch ----

func TestRoutedFrameDeliveredToClientOnce(t *testing.T) {
	c := newStubClient("local", nil, "alice")
	r := mustRouter(t, Options{FrameLog: true}, nil, []Client{c})

	r.Receive([]byte("r[\"local\",null,\"alice\"]\x00hello"))
	if c.delivered() != 1 {
		t.Fatalf("delivered %d times, want 1", c.delivered())
	}
	if r.FrameLog().Len() != 1 {
		t.Fatalf("frame log has %d entries, want 1", r.FrameLog().Len())
	}
}

func TestClientTakesPriorityOverJack(t *testing.T) {
	j := newStubJack("local", nil)
	c := newStubClient("local", nil, "alice")
	r := mustRouter(t, Options{}, []Jack{j}, []Client{c})

	r.ReceiveFrame(frame.New(frame.KindRouted, address.New("local", nil, "alice"), nil))
	if c.delivered() != 1 {
		t.Fatalf("client not delivered")
	}
	if _, _, routed := j.counts(); routed != 0 {
		t.Fatalf("jack should not receive a frame the client handled")
	}
}

func TestRoutedFrameFallsBackToJack(t *testing.T) {
	j1 := newStubJack("udp", "9.9.9.9")
	j2 := newStubJack("udp", "8.8.8.8")
	r := mustRouter(t, Options{}, []Jack{j1, j2}, nil)

	r.Receive([]byte("r[\"udp\",\"1.1.1.1\"]\x00data"))
	_, _, r1 := j1.counts()
	_, _, r2 := j2.counts()
	if r1+r2 != 1 {
		t.Fatalf("want exactly one jack delivery, got %d", r1+r2)
	}
}

func TestUnparsableInputLoggedNotDelivered(t *testing.T) {
	rep := &captureReporter{}
	c := newStubClient("local", nil, "alice")
	r := mustRouter(t, Options{FrameLog: true, Reporter: rep}, nil, []Client{c})

	r.Receive([]byte("garbage without separator"))
	if c.delivered() != 0 {
		t.Fatalf("malformed input must not be delivered")
	}
	if r.FrameLog().Len() != 1 {
		t.Fatalf("malformed input must still be observable in the log")
	}
	if rep.count() != 1 {
		t.Fatalf("parse failure not reported")
	}
}

func TestLeadingSeparatorByteReportedNotFatal(t *testing.T) {
	rep := &captureReporter{}
	c := newStubClient("local", nil, "alice")
	r := mustRouter(t, Options{FrameLog: true, Reporter: rep}, nil, []Client{c})

	// A datagram starting with the separator byte must be rejected like any
	// other malformed input, not take down the calling receive loop.
	for _, raw := range [][]byte{{0x00, 'x'}, {0x00, 0x00}, {0x00}} {
		r.Receive(raw)
	}
	if c.delivered() != 0 {
		t.Fatalf("malformed input must not be delivered")
	}
	if r.FrameLog().Len() != 3 {
		t.Fatalf("log entries = %d, want 3", r.FrameLog().Len())
	}
	if rep.count() != 3 {
		t.Fatalf("reports = %d, want 3", rep.count())
	}
}

func TestUnroutableFrameReportedAndDropped(t *testing.T) {
	rep := &captureReporter{}
	r := mustRouter(t, Options{Reporter: rep}, nil, nil)

	r.Receive([]byte("r[\"udp\",\"1.1.1.1\"]\x00data"))
	if rep.count() != 1 {
		t.Fatalf("unresolved recipient not reported")
	}
}

func TestSentFrameObservedOnly(t *testing.T) {
	j := newStubJack("udp", "9.9.9.9")
	c := newStubClient("udp", "9.9.9.9", "alice")
	r := mustRouter(t, Options{FrameLog: true}, []Jack{j}, []Client{c})

	r.Receive([]byte("s[\"udp\",\"9.9.9.9\",\"alice\"]\x00data"))
	if c.delivered() != 0 {
		t.Fatalf("sent frame dispatched to client")
	}
	if _, _, routed := j.counts(); routed != 0 {
		t.Fatalf("sent frame dispatched to jack")
	}
	if r.FrameLog().Len() != 1 {
		t.Fatalf("sent frame not logged")
	}
}

func TestUnrecognizedKindIgnored(t *testing.T) {
	c := newStubClient("local", nil, "alice")
	r := mustRouter(t, Options{}, nil, []Client{c})

	r.Receive([]byte("x[\"local\",null,\"alice\"]\x00data"))
	if c.delivered() != 0 {
		t.Fatalf("unrecognized kind dispatched")
	}
}

// ---- fault isolation ----

func TestFailingRecipientDoesNotStopDispatch(t *testing.T) {
	rep := &captureReporter{}
	bad := newStubClient("local", nil, "bad")
	bad.err = errors.New("downstream broken")
	good := newStubClient("local", nil, "good")
	r := mustRouter(t, Options{Reporter: rep}, nil, []Client{bad, good})

	r.Receive([]byte("r[\"local\",null,\"bad\"]\x00x"))
	r.Receive([]byte("r[\"local\",null,\"good\"]\x00y"))
	if rep.count() != 1 {
		t.Fatalf("delivery failure not reported")
	}
	if good.delivered() != 1 {
		t.Fatalf("later independent receive was affected")
	}
}

func TestPanickingRecipientIsolated(t *testing.T) {
	rep := &captureReporter{}
	bad := newStubClient("local", nil, "bad")
	bad.panics = true
	r := mustRouter(t, Options{Reporter: rep}, nil, []Client{bad})

	// must not propagate to the caller
	r.Receive([]byte("r[\"local\",null,\"bad\"]\x00x"))
	if rep.count() != 1 {
		t.Fatalf("panic not reported")
	}
	bad.panics = false
	r.Receive([]byte("r[\"local\",null,\"bad\"]\x00x"))
	if bad.delivered() != 1 {
		t.Fatalf("router did not keep running after a panic")
	}
}

// ---- lifecycle ----

func TestConstructionStartsJacksOnce(t *testing.T) {
	j := newStubJack("udp", "9.9.9.9")
	r := mustRouter(t, Options{}, []Jack{j}, nil)

	if r.RunState() != Threaded {
		t.Fatalf("state = %s", r.RunState())
	}
	r.Run(Threaded) // repeat without intervening stop
	if runs, _, _ := j.counts(); runs != 1 {
		t.Fatalf("jack started %d times, want 1", runs)
	}
}

func TestStopClosesJacksAndIsSafeWhenNeverStarted(t *testing.T) {
	j := newStubJack("udp", "9.9.9.9")
	r := mustRouter(t, Options{}, []Jack{j}, nil)

	r.Run(Stopped)
	if runs, closes, _ := j.counts(); runs != 1 || closes != 1 {
		t.Fatalf("runs=%d closes=%d", runs, closes)
	}
	if r.RunState() != Stopped {
		t.Fatalf("state = %s", r.RunState())
	}

	// register while stopped: must not start
	j2 := newStubJack("tcp", "1.2.3.4")
	if err := r.RegisterJack(j2); err != nil {
		t.Fatalf("register: %v", err)
	}
	if runs, _, _ := j2.counts(); runs != 0 {
		t.Fatalf("jack started while stopped")
	}
	// stopping again closes it even though it never ran
	r.Run(Stopped)
	if _, closes, _ := j2.counts(); closes != 1 {
		t.Fatalf("stop must close jacks that never started")
	}
}

func TestLateRegistrationStartsImmediately(t *testing.T) {
	r := mustRouter(t, Options{}, nil, nil)
	j := newStubJack("udp", "9.9.9.9")
	if err := r.RegisterJack(j); err != nil {
		t.Fatalf("register: %v", err)
	}
	if runs, _, _ := j.counts(); runs != 1 {
		t.Fatalf("late joiner not started, runs=%d", runs)
	}
}

func TestRestartAfterStop(t *testing.T) {
	j := newStubJack("udp", "9.9.9.9")
	r := mustRouter(t, Options{}, []Jack{j}, nil)

	r.Run(Stopped)
	r.Run(Threaded)
	if runs, _, _ := j.counts(); runs != 2 {
		t.Fatalf("jack not restarted, runs=%d", runs)
	}
}

// ---- concurrency ----

func TestConcurrentReceive(t *testing.T) {
	c := newStubClient("local", nil, "alice")
	r := mustRouter(t, Options{FrameLog: true}, nil, []Client{c})

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				raw := fmt.Sprintf("r[\"local\",null,\"alice\"]\x00msg-%d-%d", w, i)
				r.Receive([]byte(raw))
			}
		}(w)
	}
	wg.Wait()

	if c.delivered() != workers*perWorker {
		t.Fatalf("delivered %d, want %d", c.delivered(), workers*perWorker)
	}
	if r.FrameLog().Len() != workers*perWorker {
		t.Fatalf("log has %d entries, want %d (loss is not acceptable)",
			r.FrameLog().Len(), workers*perWorker)
	}
}

// ---- diagnostics ----

func TestDumpLog(t *testing.T) {
	r := mustRouter(t, Options{FrameLog: true}, nil, nil)
	r.Receive([]byte("s[\"mem\",\"a\"]\x00one"))
	out := r.DumpLog()
	if out == "[\n]" {
		t.Fatalf("dump is empty")
	}
}

func TestFrameLogDisabled(t *testing.T) {
	r := mustRouter(t, Options{FrameLog: false}, nil, nil)
	r.Receive([]byte("s[\"mem\",\"a\"]\x00one"))
	if r.FrameLog().Len() != 0 {
		t.Fatalf("disabled log recorded entries")
	}
}
