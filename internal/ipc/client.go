package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Membooth.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Membooth.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Membooth.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionList returns sessions optionally filtered by statuses.
func (c *Client) SessionList(statuses []string) (*SessionListResponse, error) {
	var resp SessionListResponse
	req := SessionListRequest{Statuses: statuses}
	if err := c.client.Call("Membooth.SessionList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionDescribe returns details for a single session.
func (c *Client) SessionDescribe(token string) (*SessionDescribeResponse, error) {
	var resp SessionDescribeResponse
	req := SessionDescribeRequest{Token: token}
	if err := c.client.Call("Membooth.SessionDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionClear removes all sessions from the store.
func (c *Client) SessionClear() (*SessionClearResponse, error) {
	var resp SessionClearResponse
	if err := c.client.Call("Membooth.SessionClear", SessionClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionClearCompleted removes only completed sessions.
func (c *Client) SessionClearCompleted() (*SessionClearCompletedResponse, error) {
	var resp SessionClearCompletedResponse
	if err := c.client.Call("Membooth.SessionClearCompleted", SessionClearCompletedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionClearFailed removes only failed sessions.
func (c *Client) SessionClearFailed() (*SessionClearFailedResponse, error) {
	var resp SessionClearFailedResponse
	if err := c.client.Call("Membooth.SessionClearFailed", SessionClearFailedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionReset requeues sessions stuck mid-generation.
func (c *Client) SessionReset() (*SessionResetResponse, error) {
	var resp SessionResetResponse
	if err := c.client.Call("Membooth.SessionReset", SessionResetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionRetry moves failed sessions back to the selection step. An empty
// token retries every failed session.
func (c *Client) SessionRetry(token string) (*SessionRetryResponse, error) {
	var resp SessionRetryResponse
	req := SessionRetryRequest{Token: token}
	if err := c.client.Call("Membooth.SessionRetry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionRemove deletes a single session.
func (c *Client) SessionRemove(token string) (*SessionRemoveResponse, error) {
	var resp SessionRemoveResponse
	req := SessionRemoveRequest{Token: token}
	if err := c.client.Call("Membooth.SessionRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionHealth retrieves aggregate store diagnostics.
func (c *Client) SessionHealth() (*SessionHealthResponse, error) {
	var resp SessionHealthResponse
	if err := c.client.Call("Membooth.SessionHealth", SessionHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Membooth.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
