// Package udp implements a datagram jack: one socket, one read loop, one
// frame per datagram.
package udp

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"ejswitch/pkg/address"
	"ejswitch/pkg/frame"
	"ejswitch/pkg/jack"
)

// Jack reads datagrams into the switch and writes routed frames back out.
// Its interface address is ["udp", [host, port]].
type Jack struct {
	rt    jack.Receiver
	iface address.Address
	conn  *net.UDPConn
	loop  jack.Loop
	once  sync.Once
}

// New binds the socket immediately; the receive loop starts on Run.
func New(rt jack.Receiver, host string, port int) (*Jack, error) {
	laddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &Jack{
		rt:    rt,
		iface: address.New("udp", []any{host, port}),
		conn:  conn,
	}, nil
}

func (j *Jack) Interface() address.Address { return j.iface }

// LocalAddr returns the bound socket address.
func (j *Jack) LocalAddr() net.Addr { return j.conn.LocalAddr() }

// Run starts the background receive loop. Idempotent.
func (j *Jack) Run() {
	j.loop.Start(j.readLoop)
}

func (j *Jack) readLoop(stop <-chan struct{}) {
	buf := make([]byte, 64*1024)
	for {
		n, raddr, err := j.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-stop:
			default:
				zap.L().Debug("udp jack read loop ended", zap.Error(err))
			}
			return
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		zap.L().Debug("udp jack frame in",
			zap.String("from", raddr.String()), zap.Int("bytes", n))
		j.rt.Receive(pkt)
	}
}

// Route sends the frame to the location named in its address.
func (j *Jack) Route(f *frame.Frame) error {
	raddr, err := target(f.Addr)
	if err != nil {
		return err
	}
	raw, err := f.Encode()
	if err != nil {
		return err
	}
	_, err = j.conn.WriteToUDP(raw, raddr)
	return err
}

// Close stops the loop and releases the socket. Idempotent, safe when the
// jack was never started. A closed jack cannot be restarted.
func (j *Jack) Close() error {
	j.loop.Stop()
	j.once.Do(func() { _ = j.conn.Close() })
	return nil
}

// target resolves a frame address ["udp", [host, port], ...] to a UDP
// destination.
func target(addr address.Address) (*net.UDPAddr, error) {
	if len(addr) < 2 {
		return nil, fmt.Errorf("udp: address too short: %s", addr)
	}
	loc, ok := addr[1].([]any)
	if !ok || len(loc) < 2 {
		return nil, fmt.Errorf("udp: location is not [host, port]: %s", addr)
	}
	host, ok := loc[0].(string)
	if !ok {
		return nil, fmt.Errorf("udp: host is not a string: %v", loc[0])
	}
	port, ok := address.Canonical(loc[1]).(int64)
	if !ok || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("udp: invalid port: %v", loc[1])
	}
	return net.ResolveUDPAddr("udp", net.JoinHostPort(host, fmt.Sprint(port)))
}
