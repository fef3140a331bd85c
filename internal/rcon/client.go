// Package rcon talks to a game server's remote console. Every call opens a
// fresh authenticated connection, exchanges exactly one command/response pair
// and closes; the backing process restarts often enough that pooling would
// only mask connection-refused semantics callers depend on.
package rcon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorcon/rcon"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/pkg/logger"
)

// Client issues single-shot RCON commands against one server
type Client struct {
	host        string
	port        int
	password    string
	dialTimeout time.Duration
	execTimeout time.Duration
}

// Dialer builds per-server clients with shared host/timeout settings
type Dialer struct {
	Host        string
	DialTimeout time.Duration
	ExecTimeout time.Duration
}

// Client returns a client for the given RCON port and password
func (d *Dialer) Client(port int, password string) *Client {
	return &Client{
		host:        d.Host,
		port:        port,
		password:    password,
		dialTimeout: d.DialTimeout,
		execTimeout: d.ExecTimeout,
	}
}

// Execute sends a single command and returns the response text
func (c *Client) Execute(command string) (string, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)

	conn, err := rcon.Dial(addr, c.password,
		rcon.SetDialTimeout(c.dialTimeout),
		rcon.SetDeadline(c.execTimeout),
	)
	if err != nil {
		return "", classify(err)
	}
	defer conn.Close()

	response, err := conn.Execute(command)
	if err != nil {
		return "", classify(err)
	}

	logger.Debug("RCON command executed", map[string]interface{}{
		"addr":    addr,
		"command": command,
	})
	return response, nil
}

// AddToWhitelist adds a player name to the server whitelist
func (c *Client) AddToWhitelist(name string) (string, error) {
	return c.Execute(fmt.Sprintf("whitelist add %s", name))
}

// RemoveFromWhitelist removes a player name from the server whitelist
func (c *Client) RemoveFromWhitelist(name string) (string, error) {
	return c.Execute(fmt.Sprintf("whitelist remove %s", name))
}

// WhitelistEntry is one whitelisted player
type WhitelistEntry struct {
	Name string `json:"name"`
}

// Whitelist returns the whitelisted players in the order the server reports
// them.
func (c *Client) Whitelist() ([]WhitelistEntry, error) {
	response, err := c.Execute("whitelist list")
	if err != nil {
		return nil, err
	}
	return ParseWhitelist(response), nil
}

// ParseWhitelist extracts player names from a "whitelist list" response.
// Expected shape: "There are 2 whitelisted player(s): alice, bob".
func ParseWhitelist(response string) []WhitelistEntry {
	idx := strings.Index(response, ":")
	if idx < 0 || idx+1 >= len(response) {
		return []WhitelistEntry{}
	}

	entries := []WhitelistEntry{}
	for _, name := range strings.Split(response[idx+1:], ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			entries = append(entries, WhitelistEntry{Name: name})
		}
	}
	return entries
}

// classify maps transport and protocol failures onto the stable error kinds
// callers branch on. Connection refused and timeout are expected during
// startup windows and must stay distinguishable from a wrong password.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return errs.Wrap(errs.KindConnectionRefused, "server is not accepting RCON connections", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.Wrap(errs.KindTimeout, "RCON did not respond in time", err)
	}
	if os.IsTimeout(err) {
		return errs.Wrap(errs.KindTimeout, "RCON did not respond in time", err)
	}

	if errors.Is(err, rcon.ErrAuthFailed) || errors.Is(err, rcon.ErrAuthNotRCON) || errors.Is(err, rcon.ErrInvalidAuthResponse) {
		return errs.Wrap(errs.KindAuthFailed, "RCON authentication rejected", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errs.Wrap(errs.KindConnectionRefused, "RCON connection failed", err)
	}

	return errs.Wrap(errs.KindProtocol, "malformed RCON exchange", err)
}
