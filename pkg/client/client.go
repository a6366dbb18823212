// Package client provides the internal endpoint implementation: a local
// logical recipient addressed down to a client id.
package client

import (
	"errors"
	"fmt"

	"ejswitch/pkg/address"
	"ejswitch/pkg/frame"
)

// Switch is the router surface a client needs: frame injection only.
type Switch interface {
	ReceiveFrame(f *frame.Frame)
}

// Handler processes one delivered frame. A returned error (or a panic) is
// isolated and reported by the switch, never by the client.
type Handler func(f *frame.Frame) error

// Client is a callback-backed internal endpoint.
type Client struct {
	sw      Switch
	iface   address.Address
	handler Handler
}

// New validates the 3-component interface address and builds a client.
// Register it with the switch via RegisterClient.
func New(sw Switch, iface address.Address, h Handler) (*Client, error) {
	canon := iface.Canonical()
	if _, err := address.ClientKey(canon); err != nil {
		return nil, err
	}
	return &Client{sw: sw, iface: canon, handler: h}, nil
}

func (c *Client) Interface() address.Address { return c.iface }

// Route delivers a frame to the handler.
func (c *Client) Route(f *frame.Frame) error {
	if c.handler == nil {
		return fmt.Errorf("client %s has no handler", c.iface)
	}
	return c.handler(f)
}

// Send injects a routed frame for dst into the switch. Dispatch happens
// synchronously on the calling goroutine.
func (c *Client) Send(dst address.Address, payload []byte) error {
	if c.sw == nil {
		return errors.New("client is not attached to a switch")
	}
	c.sw.ReceiveFrame(frame.New(frame.KindRouted, dst, payload))
	return nil
}
