package rcon

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/gorcon/rcon"

	"github.com/craftops/fleet/internal/errs"
)

func TestParseWhitelist(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     []string
	}{
		{
			"two players",
			"There are 2 whitelisted player(s): alice, bob",
			[]string{"alice", "bob"},
		},
		{
			"single player",
			"There are 1 whitelisted player(s): steve",
			[]string{"steve"},
		},
		{
			"empty list",
			"There are 0 whitelisted player(s):",
			nil,
		},
		{
			"no colon at all",
			"unexpected output",
			nil,
		},
		{
			"ragged spacing",
			"There are 3 whitelisted player(s):  alice ,bob,  carol",
			[]string{"alice", "bob", "carol"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries := ParseWhitelist(tc.response)
			if len(entries) != len(tc.want) {
				t.Fatalf("got %d entries, want %d: %v", len(entries), len(tc.want), entries)
			}
			for i, want := range tc.want {
				if entries[i].Name != want {
					t.Errorf("entry %d = %q, want %q", i, entries[i].Name, want)
				}
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind errs.Kind
	}{
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), errs.KindConnectionRefused},
		{"net timeout", error(timeoutErr{}), errs.KindTimeout},
		{"auth failed", fmt.Errorf("auth: %w", rcon.ErrAuthFailed), errs.KindAuthFailed},
		{"auth not rcon", rcon.ErrAuthNotRCON, errs.KindAuthFailed},
		{"invalid auth response", rcon.ErrInvalidAuthResponse, errs.KindAuthFailed},
		{"generic op error", &net.OpError{Op: "read", Err: errors.New("reset")}, errs.KindConnectionRefused},
		{"anything else", errors.New("garbled packet"), errs.KindProtocol},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if !errs.IsKind(got, tc.kind) {
				t.Errorf("classify(%v) kind = %v, want %v", tc.err, errs.KindOf(got), tc.kind)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}

func TestDialerBuildsClients(t *testing.T) {
	d := &Dialer{Host: "127.0.0.1", DialTimeout: 5 * time.Second, ExecTimeout: 10 * time.Second}
	c := d.Client(25575, "secret")

	if c.host != "127.0.0.1" || c.port != 25575 || c.password != "secret" {
		t.Errorf("client misconfigured: %+v", c)
	}
}
