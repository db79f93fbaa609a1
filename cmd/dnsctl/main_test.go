package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnsmanager/internal/dnsrecord"
	"dnsmanager/internal/failure"
	"dnsmanager/internal/model"
	"dnsmanager/internal/session"
	"dnsmanager/internal/testutil"
)

type cli struct {
	t     *testing.T
	svc   *testutil.FakeService
	store session.TokenStore
	cfg   string
}

func newCLI(t *testing.T) *cli {
	svc := testutil.NewFakeService(t)
	svc.AddUser("alice", "alice-pass", model.RoleUser)
	svc.AddUser("admin", "admin-pass", model.RoleAdmin)
	svc.AddZone(model.Zone{Name: "example.com", File: "Z1", Type: "master"}, 2024010100,
		dnsrecord.New(dnsrecord.A{Name: "www", IPv4: "192.0.2.1"}),
		dnsrecord.New(dnsrecord.MX{Name: "@", Priority: 10, Mailserver: "mail.example.com."}),
	)
	svc.AddZone(model.Zone{Name: "example.org", File: "Z2", Type: "master"}, 2024010100)
	return &cli{
		t:     t,
		svc:   svc,
		store: &session.MemoryTokenStore{},
		cfg:   filepath.Join(t.TempDir(), "missing.yaml"),
	}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	out := &bytes.Buffer{}
	cmd := newRootCmd(&app{out: out, store: c.store, fs: afero.NewMemMapFs()})
	cmd.SetArgs(append(args, "--api-url", c.svc.URL(), "--config", c.cfg))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRequiresLogin(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("whoami")
	require.Error(t, err)
	assert.Equal(t, failure.MsgNotLoggedIn, failure.Message(err))

	_, err = c.run("zones")
	assert.ErrorIs(t, err, failure.ErrAnonymous)
}

func TestSessionCommands(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("login", "alice", "--password", "wrong")
	require.Error(t, err)
	assert.Equal(t, failure.KindAuth, failure.KindOf(err))

	out, err := c.run("login", "alice", "--password", "alice-pass")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice (user)")

	out, err = c.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "alice (user)\n", out)

	_, err = c.run("logout")
	require.NoError(t, err)
	_, err = c.run("whoami")
	assert.Error(t, err)
}

func TestZonesAndRecords(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("login", "alice", "--password", "alice-pass")
	require.NoError(t, err)

	out, err := c.run("zones")
	require.NoError(t, err)
	assert.Contains(t, out, "example.com")
	assert.Contains(t, out, "example.org")

	out, err = c.run("zones", "COM")
	require.NoError(t, err)
	assert.NotContains(t, out, "example.org")
	assert.Contains(t, out, "dnsctl records Z1")

	out, err = c.run("records", "Z1", "--search", "mail")
	require.NoError(t, err)
	assert.Contains(t, out, "serial 2024010100")
	assert.Contains(t, out, "10 mail.example.com.")
	assert.NotContains(t, out, "192.0.2.1")

	_, err = c.run("records", "add", "Z1", "--type", "A", "--set", "name=api", "--set", "ipv4=192.0.2.9", "--comment", "api host")
	require.NoError(t, err)
	assert.Contains(t, c.svc.Records("Z1"), dnsrecord.New(dnsrecord.A{Name: "api", IPv4: "192.0.2.9"}).WithComment("api host"))

	_, err = c.run("records", "add", "Z1", "--type", "A", "--set", "name=bad", "--set", "ipv4=300.1.1.1")
	require.Error(t, err)
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))

	_, err = c.run("records", "update", "Z1", "1", "--set", "ipv4=192.0.2.2")
	require.NoError(t, err)
	assert.Contains(t, c.svc.Records("Z1"), dnsrecord.New(dnsrecord.A{Name: "www", IPv4: "192.0.2.2"}))

	_, err = c.run("records", "delete", "Z1", "99")
	require.Error(t, err)
	assert.Equal(t, "Record not found", failure.Message(err))

	_, err = c.run("records", "delete", "Z1", "2")
	require.NoError(t, err)
	assert.Len(t, c.svc.Records("Z1"), 2)
}

func TestAdminCommands(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("login", "alice", "--password", "alice-pass")
	require.NoError(t, err)

	_, err = c.run("users", "list")
	require.Error(t, err)
	assert.Equal(t, failure.KindPermission, failure.KindOf(err))

	_, err = c.run("login", "admin", "--password", "admin-pass")
	require.NoError(t, err)

	_, err = c.run("users", "create", "bob", "--password", "bob-password")
	require.NoError(t, err)
	out, err := c.run("users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "bob")

	_, err = c.run("users", "delete", "admin")
	require.Error(t, err)
	assert.Equal(t, "Cannot delete the main admin user", failure.Message(err))

	_, err = c.run("restart")
	require.NoError(t, err)
}
