// Package tcp implements a stream jack carrying length-prefixed frames
// (u32 LE). Inbound connections are read until EOF; outbound delivery dials
// per frame.
package tcp

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"ejswitch/pkg/address"
	"ejswitch/pkg/frame"
	"ejswitch/pkg/jack"
)

const maxFrameSize = 1 << 24

// Jack accepts inbound stream connections and feeds their frames into the
// switch. Its interface address is ["tcp", [host, port]].
type Jack struct {
	rt    jack.Receiver
	iface address.Address
	l     net.Listener
	loop  jack.Loop
	once  sync.Once

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New binds the listener immediately; the accept loop starts on Run.
func New(rt jack.Receiver, host string, port int) (*Jack, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return nil, err
	}
	return &Jack{
		rt:    rt,
		iface: address.New("tcp", []any{host, port}),
		l:     l,
		conns: make(map[net.Conn]struct{}),
	}, nil
}

func (j *Jack) Interface() address.Address { return j.iface }

// LocalAddr returns the bound listener address.
func (j *Jack) LocalAddr() net.Addr { return j.l.Addr() }

// Run starts the background accept loop. Idempotent.
func (j *Jack) Run() {
	j.loop.Start(j.acceptLoop)
}

func (j *Jack) acceptLoop(stop <-chan struct{}) {
	for {
		c, err := j.l.Accept()
		if err != nil {
			select {
			case <-stop:
			default:
				zap.L().Debug("tcp jack accept loop ended", zap.Error(err))
			}
			return
		}
		j.track(c, true)
		go j.readConn(c, stop)
	}
}

func (j *Jack) track(c net.Conn, add bool) {
	j.mu.Lock()
	if add {
		j.conns[c] = struct{}{}
	} else {
		delete(j.conns, c)
	}
	j.mu.Unlock()
}

func (j *Jack) readConn(c net.Conn, stop <-chan struct{}) {
	defer func() {
		j.track(c, false)
		_ = c.Close()
	}()
	br := bufio.NewReader(c)
	for {
		raw, err := recvFrame(br)
		if err != nil {
			select {
			case <-stop:
			default:
				if !errors.Is(err, io.EOF) {
					zap.L().Debug("tcp jack conn closed",
						zap.String("remote", c.RemoteAddr().String()), zap.Error(err))
				}
			}
			return
		}
		j.rt.Receive(raw)
	}
}

// Route dials the location named in the frame address and writes one
// length-prefixed frame.
func (j *Jack) Route(f *frame.Frame) error {
	hostport, err := target(f.Addr)
	if err != nil {
		return err
	}
	raw, err := f.Encode()
	if err != nil {
		return err
	}
	c, err := net.Dial("tcp", hostport)
	if err != nil {
		return err
	}
	defer c.Close()
	return sendFrame(c, raw)
}

// Close stops the accept loop, the listener and every live connection.
// Idempotent, safe when the jack was never started.
func (j *Jack) Close() error {
	j.loop.Stop()
	j.once.Do(func() { _ = j.l.Close() })
	j.mu.Lock()
	for c := range j.conns {
		_ = c.Close()
	}
	j.conns = make(map[net.Conn]struct{})
	j.mu.Unlock()
	return nil
}

func sendFrame(w io.Writer, b []byte) error {
	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(b)))
	if _, err := w.Write(lenbuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func recvFrame(r io.Reader) ([]byte, error) {
	var lenbuf [4]byte
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint32(lenbuf[:]))
	if n <= 0 || n > maxFrameSize {
		return nil, errors.New("invalid frame size")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func target(addr address.Address) (string, error) {
	if len(addr) < 2 {
		return "", fmt.Errorf("tcp: address too short: %s", addr)
	}
	loc, ok := addr[1].([]any)
	if !ok || len(loc) < 2 {
		return "", fmt.Errorf("tcp: location is not [host, port]: %s", addr)
	}
	host, ok := loc[0].(string)
	if !ok {
		return "", fmt.Errorf("tcp: host is not a string: %v", loc[0])
	}
	port, ok := address.Canonical(loc[1]).(int64)
	if !ok || port <= 0 || port > 65535 {
		return "", fmt.Errorf("tcp: invalid port: %v", loc[1])
	}
	return net.JoinHostPort(host, fmt.Sprint(port)), nil
}
