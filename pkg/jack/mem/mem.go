// Package mem implements an in-process jack fabric. Endpoints are named,
// frames cross between them over buffered channels. Useful for tests and
// for wiring several switches inside one process.
package mem

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ejswitch/pkg/address"
	"ejswitch/pkg/frame"
	"ejswitch/pkg/jack"
)

const queueDepth = 64

// Network is a process-local fabric of named endpoints.
type Network struct {
	mu  sync.Mutex
	eps map[string]*Jack
}

func NewNetwork() *Network {
	return &Network{eps: make(map[string]*Jack)}
}

// Jack registers a named endpoint on the fabric. Its interface address is
// ["mem", name].
func (n *Network) Jack(rt jack.Receiver, name string) (*Jack, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.eps[name]; ok {
		return nil, fmt.Errorf("mem: endpoint %q already exists", name)
	}
	j := &Jack{
		net:   n,
		rt:    rt,
		name:  name,
		iface: address.New("mem", name),
		rx:    make(chan []byte, queueDepth),
	}
	n.eps[name] = j
	return j, nil
}

func (n *Network) lookup(name string) *Jack {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eps[name]
}

func (n *Network) drop(name string) {
	n.mu.Lock()
	delete(n.eps, name)
	n.mu.Unlock()
}

// Jack is one endpoint of the in-process fabric.
type Jack struct {
	net   *Network
	rt    jack.Receiver
	name  string
	iface address.Address
	rx    chan []byte
	loop  jack.Loop
}

func (j *Jack) Interface() address.Address { return j.iface }

// Run starts draining the endpoint queue into the switch. Idempotent.
func (j *Jack) Run() {
	j.loop.Start(func(stop <-chan struct{}) {
		for {
			select {
			case <-stop:
				return
			case raw := <-j.rx:
				j.rt.Receive(raw)
			}
		}
	})
}

// Route delivers the frame to the endpoint named in its address location.
func (j *Jack) Route(f *frame.Frame) error {
	if len(f.Addr) < 2 {
		return fmt.Errorf("mem: address too short: %s", f.Addr)
	}
	name, ok := f.Addr[1].(string)
	if !ok {
		return fmt.Errorf("mem: location is not an endpoint name: %v", f.Addr[1])
	}
	dst := j.net.lookup(name)
	if dst == nil {
		return fmt.Errorf("mem: no endpoint %q", name)
	}
	raw, err := f.Encode()
	if err != nil {
		return err
	}
	select {
	case dst.rx <- raw:
		return nil
	default:
		zap.L().Debug("mem jack queue full", zap.String("endpoint", name))
		return fmt.Errorf("mem: endpoint %q queue full", name)
	}
}

// Close stops the loop and removes the endpoint from the fabric.
// Idempotent, safe when the jack was never started.
func (j *Jack) Close() error {
	j.loop.Stop()
	j.net.drop(j.name)
	return nil
}
