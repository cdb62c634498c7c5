package osc

import "net"

// Client sends control commands to a running daemon.
type Client struct {
	conn net.Conn
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Send(addr string, args ...any) error {
	_, err := c.conn.Write(Encode(Message{Addr: addr, Args: args}))
	return err
}

func (c *Client) Close() error { return c.conn.Close() }
