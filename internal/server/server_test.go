package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnsmanager/internal/apiclient"
	"dnsmanager/internal/audit"
	"dnsmanager/internal/auth"
	"dnsmanager/internal/config"
	"dnsmanager/internal/dnsrecord"
	"dnsmanager/internal/failure"
	"dnsmanager/internal/model"
	"dnsmanager/internal/records"
	"dnsmanager/internal/session"
	"dnsmanager/internal/users"
	"dnsmanager/internal/zones"
)

type memStore struct {
	mu        sync.Mutex
	passwords map[string]string
	users     map[string]*model.User
	events    []audit.Event
	revoked   map[string]bool
	pingErr   error
}

func newMemStore() *memStore {
	return &memStore{passwords: map[string]string{}, users: map[string]*model.User{}, revoked: map[string]bool{}}
}

func (s *memStore) HasUsers() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users) > 0, nil
}

func (s *memStore) GetUserByUsername(username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) ListUsers() ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.User{}
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *memStore) CreateUser(username, password, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[username] = password
	s.users[username] = &model.User{Username: username, Role: role, Active: true, AuthSource: "local", CreatedAt: time.Now()}
	return nil
}

func (s *memStore) DeleteUser(username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[username]
	delete(s.users, username)
	return ok, nil
}

func (s *memStore) AuthenticateUser(username, password string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok || s.passwords[username] != password {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) CreateLDAPUser(username, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = &model.User{Username: username, Role: role, Active: true, AuthSource: "ldap"}
	return nil
}

func (s *memStore) TouchLastLogin(username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (s *memStore) RevokeToken(jti, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = true
	return nil
}

func (s *memStore) IsTokenRevoked(jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[jti], nil
}

func (s *memStore) LogEvent(ev audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append([]audit.Event{ev}, s.events...)
	return nil
}

func (s *memStore) ListEvents(f audit.Filter) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, ev := range s.events {
		if f.Zone != "" && ev.Zone != f.Zone {
			continue
		}
		if f.User != "" && ev.User != f.User {
			continue
		}
		if f.Action != "" && ev.Action != f.Action {
			continue
		}
		out = append(out, ev)
		if len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) Ping(context.Context) error { return s.pingErr }

func (s *memStore) actions() []audit.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Action
	for i := len(s.events) - 1; i >= 0; i-- {
		out = append(out, s.events[i].Action)
	}
	return out
}

// memBackend keeps zones in memory and bumps the serial by one per change.
type memBackend struct {
	mu      sync.Mutex
	zones   []model.Zone
	data    map[string]*model.ZoneData
	reloads int
}

func newMemBackend() *memBackend {
	return &memBackend{
		zones: []model.Zone{{Name: "example.com", File: "Z1", Type: "master"}},
		data: map[string]*model.ZoneData{
			"Z1": {
				SOA: model.SOA{Serial: 2024010100, PrimaryNS: "ns1.example.com.", AdminEmail: "hostmaster.example.com."},
				Records: []dnsrecord.Record{
					dnsrecord.New(dnsrecord.A{Name: "www", IPv4: "192.0.2.1"}),
					dnsrecord.New(dnsrecord.NS{Name: "@", Nameserver: "ns1.example.com."}),
				},
			},
		},
	}
}

func (b *memBackend) ListZones(context.Context) ([]model.Zone, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Zone(nil), b.zones...), nil
}

func (b *memBackend) CreateZone(_ context.Context, nz model.NewZone) (model.Zone, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, z := range b.zones {
		if z.Name == nz.Name {
			return model.Zone{}, failure.Validation("Zone %s already exists", nz.Name)
		}
	}
	z := model.Zone{Name: nz.Name, File: "Z" + nz.Name, Type: "master"}
	b.zones = append(b.zones, z)
	b.data[z.File] = &model.ZoneData{SOA: model.SOA{Serial: 1}}
	return z, nil
}

func (b *memBackend) zone(file string) (*model.ZoneData, error) {
	zd, ok := b.data[file]
	if !ok {
		return nil, failure.NotFound("Zone " + file + " not found")
	}
	return zd, nil
}

func (b *memBackend) GetRecords(_ context.Context, file string) (model.ZoneData, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	zd, err := b.zone(file)
	if err != nil {
		return model.ZoneData{}, err
	}
	return model.ZoneData{SOA: zd.SOA, Records: append([]dnsrecord.Record(nil), zd.Records...)}, nil
}

func (b *memBackend) index(zd *model.ZoneData, rec dnsrecord.Record) int {
	for i, r := range zd.Records {
		if r.Equal(rec) {
			return i
		}
	}
	return -1
}

func (b *memBackend) AddRecord(_ context.Context, file string, rec dnsrecord.Record) (model.Serial, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	zd, err := b.zone(file)
	if err != nil {
		return 0, err
	}
	if b.index(zd, rec) >= 0 {
		return 0, failure.Validation("Record already exists")
	}
	zd.Records = append(zd.Records, rec)
	zd.SOA.Serial++
	return zd.SOA.Serial, nil
}

func (b *memBackend) UpdateRecord(_ context.Context, file string, old, updated dnsrecord.Record) (model.Serial, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	zd, err := b.zone(file)
	if err != nil {
		return 0, err
	}
	i := b.index(zd, old)
	if i < 0 {
		return 0, failure.NotFound("Record not found")
	}
	zd.Records[i] = updated
	zd.SOA.Serial++
	return zd.SOA.Serial, nil
}

func (b *memBackend) DeleteRecord(_ context.Context, file string, rec dnsrecord.Record) (model.Serial, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	zd, err := b.zone(file)
	if err != nil {
		return 0, err
	}
	i := b.index(zd, rec)
	if i < 0 {
		return 0, failure.NotFound("Record not found")
	}
	zd.Records = append(zd.Records[:i], zd.Records[i+1:]...)
	zd.SOA.Serial++
	return zd.SOA.Serial, nil
}

func (b *memBackend) ReloadZone(_ context.Context, name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, z := range b.zones {
		if z.Name == name {
			b.reloads++
			return 1, nil
		}
	}
	return 0, failure.NotFound("Zone " + name + " not found")
}

func (b *memBackend) Restart(context.Context) error { return nil }

func (b *memBackend) ValidateZone(_ context.Context, name string) (model.ZoneCheck, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, z := range b.zones {
		if z.Name != name {
			continue
		}
		check := model.ZoneCheck{Zone: z.Name, Errors: []string{}}
		for _, rec := range b.data[z.File].Records {
			if err := dnsrecord.Validate(rec); err != nil {
				check.Errors = append(check.Errors, failure.Message(err))
			}
		}
		check.Valid = len(check.Errors) == 0
		return check, nil
	}
	return model.ZoneCheck{}, failure.NotFound("Zone " + name + " not found")
}

type harness struct {
	store   *memStore
	backend *memBackend
	tokens  *auth.TokenManager
	srv     *httptest.Server
	api     *apiclient.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)

	h := &harness{
		store:   newMemStore(),
		backend: newMemBackend(),
		tokens:  auth.NewTokenManager("test-secret", time.Hour),
	}
	require.NoError(t, h.store.CreateUser("admin", "admin-pass", model.RoleAdmin))
	require.NoError(t, h.store.CreateUser("alice", "alice-pass", model.RoleUser))

	h.srv = httptest.NewServer(NewRouter(Deps{
		Store:   h.store,
		Backend: h.backend,
		Tokens:  h.tokens,
		Version: "test",
		Log:     log,
	}))
	t.Cleanup(h.srv.Close)
	h.api = apiclient.New(h.srv.URL+"/api", 5*time.Second, log)
	return h
}

func (h *harness) session(t *testing.T, username, password string) *session.Manager {
	t.Helper()
	m := session.NewManager(h.api, &session.MemoryTokenStore{}, nil)
	require.NoError(t, m.Login(context.Background(), username, password))
	return m
}

func TestLoginFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.api.Login(ctx, "alice", "wrong")
	require.Error(t, err)
	assert.Equal(t, failure.KindAuth, failure.KindOf(err))
	assert.Equal(t, "Invalid username or password", failure.Message(err))

	store := &session.MemoryTokenStore{}
	m := session.NewManager(h.api, store, nil)
	require.NoError(t, m.Login(ctx, "alice", "alice-pass"))

	user, err := m.User()
	require.NoError(t, err)
	assert.Equal(t, model.Identity{Username: "alice", Role: model.RoleUser}, user)

	token, err := m.Token()
	require.NoError(t, err)

	restored := session.NewManager(h.api, store, nil)
	assert.Equal(t, session.Authenticated, restored.Verify(ctx))

	m.Logout(ctx)
	_, err = h.api.Verify(ctx, token)
	require.Error(t, err)
	assert.Equal(t, failure.KindAuth, failure.KindOf(err))
	assert.Equal(t, "Invalid token", failure.Message(err))

	assert.Equal(t, []audit.Action{audit.ActionLogin, audit.ActionLogin, audit.ActionLogout}, h.store.actions())
}

func TestRecordLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.session(t, "alice", "alice-pass")

	dir := zones.NewDirectory(h.api, m)
	list, err := dir.List(ctx)
	require.NoError(t, err)
	z, ok := zones.Single(zones.Filter(list, "example"))
	require.True(t, ok)

	st := records.NewStore(h.api, m, nil)
	require.NoError(t, st.Load(ctx, z.File))

	rec := dnsrecord.New(dnsrecord.MX{Name: "@", Priority: 10, Mailserver: "mail.example.com."}).WithComment("primary")
	require.NoError(t, st.Add(ctx, rec))
	_, zd, _ := st.Snapshot()
	assert.Len(t, zd.Records, 3)
	assert.Equal(t, model.Serial(2024010101), zd.SOA.Serial)

	err = st.Add(ctx, rec)
	require.Error(t, err)
	assert.Equal(t, "Record already exists", failure.Message(err))

	moved := dnsrecord.New(dnsrecord.MX{Name: "@", Priority: 20, Mailserver: "mail.example.com."})
	require.NoError(t, st.Update(ctx, rec, moved))
	assert.Len(t, st.Search("mail"), 1)

	require.NoError(t, st.Delete(ctx, moved))
	_, zd, _ = st.Snapshot()
	assert.Len(t, zd.Records, 2)
	assert.Equal(t, model.Serial(2024010103), zd.SOA.Serial)

	require.NoError(t, st.ReloadZone(ctx, z.Name))
	assert.Equal(t, 1, h.backend.reloads)

	err = st.RestartService(ctx)
	require.Error(t, err)
	assert.Equal(t, failure.KindPermission, failure.KindOf(err))

	events, err := h.api.ZoneLogs(ctx, mustToken(t, m), "Z1", 0)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, audit.ActionDeleteRecord, events[0].Action)
	assert.Equal(t, audit.StatusFailure, events[2].Status)
	assert.Equal(t, "Record already exists", events[2].ErrorMessage)
}

func TestUserAdministration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	admin := users.NewAdmin(h.api, h.session(t, "admin", "admin-pass"))
	require.NoError(t, admin.Create(ctx, "bob", "bob-password", ""))

	err := admin.Create(ctx, "bob", "bob-password", "")
	require.Error(t, err)
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))
	assert.Equal(t, "Username already exists", failure.Message(err))

	list, err := admin.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	require.NoError(t, admin.Delete(ctx, "bob"))
	err = admin.Delete(ctx, "bob")
	require.Error(t, err)
	assert.Equal(t, failure.KindNotFound, failure.KindOf(err))

	_, err = users.NewAdmin(h.api, h.session(t, "alice", "alice-pass")).List(ctx)
	assert.Equal(t, failure.KindPermission, failure.KindOf(err))

	token, _, err := h.api.Login(ctx, "alice", "alice-pass")
	require.NoError(t, err)
	_, err = h.api.ListUsers(ctx, token)
	require.Error(t, err)
	assert.Equal(t, failure.MsgAdminOnly, failure.Message(err))
}

func TestCreateZone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := zones.NewDirectory(h.api, h.session(t, "alice", "alice-pass"))

	require.NoError(t, dir.Create(ctx, model.NewZone{Name: "example.org", Type: "forward"}))
	list, err := dir.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	err = dir.Create(ctx, model.NewZone{Name: "example.org", Type: "forward"})
	require.Error(t, err)
	assert.Equal(t, "Zone example.org already exists", failure.Message(err))
}

func TestRoutes(t *testing.T) {
	h := newHarness(t)

	get := func(path, token string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, h.srv.URL+path, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusOK, get("/api/health", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get("/api/zones", "").StatusCode)

	resp := get("/api/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"success":false,"error":"Endpoint not found"}`, string(body))

	metrics := get("/metrics", "")
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
	text, _ := io.ReadAll(metrics.Body)
	assert.True(t, strings.Contains(string(text), "dnsmanager_http_requests_total"))

	h.store.pingErr = errors.New("down")
	assert.Equal(t, http.StatusServiceUnavailable, get("/api/health", "").StatusCode)
}

func TestValidateZone(t *testing.T) {
	h := newHarness(t)
	admin := mustToken(t, h.session(t, "admin", "admin-pass"))
	alice := mustToken(t, h.session(t, "alice", "alice-pass"))

	post := func(path, token string) (int, string) {
		req, err := http.NewRequest(http.MethodPost, h.srv.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	status, body := post("/api/validate/zone/example.com", admin)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"success":true,"valid":true,"errors":[],"message":"Zone example.com is valid"}`, body)

	h.backend.mu.Lock()
	h.backend.data["Z1"].Records = append(h.backend.data["Z1"].Records, dnsrecord.New(dnsrecord.A{Name: "bad", IPv4: "300.0.0.1"}))
	h.backend.mu.Unlock()

	status, body = post("/api/validate/zone/example.com", admin)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"success":true,"valid":false,"errors":["Invalid IPv4 address format"],"message":"Zone example.com has errors"}`, body)

	status, _ = post("/api/validate/zone/missing.org", admin)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = post("/api/validate/zone/example.com", alice)
	assert.Equal(t, http.StatusForbidden, status)

	var validations int
	for _, a := range h.store.actions() {
		if a == audit.ActionValidateZone {
			validations++
		}
	}
	assert.Equal(t, 3, validations)
}

type bootstrapStore struct {
	has     bool
	created []string
}

func (b *bootstrapStore) HasUsers() (bool, error) { return b.has, nil }

func (b *bootstrapStore) CreateUser(username, _, role string) error {
	b.created = append(b.created, username+":"+role)
	return nil
}

func TestBootstrap(t *testing.T) {
	log := logrus.NewEntry(logrus.New())
	log.Logger.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.Auth.DefaultAdminPassword = "changeme123"

	empty := &bootstrapStore{}
	require.NoError(t, Bootstrap(empty, cfg, log))
	assert.Equal(t, []string{"admin:admin"}, empty.created)

	populated := &bootstrapStore{has: true}
	require.NoError(t, Bootstrap(populated, cfg, log))
	assert.Empty(t, populated.created)

	noPassword := &bootstrapStore{}
	require.NoError(t, Bootstrap(noPassword, &config.Config{}, log))
	assert.Empty(t, noPassword.created)
}

func mustToken(t *testing.T, m *session.Manager) string {
	t.Helper()
	token, err := m.Token()
	require.NoError(t, err)
	return token
}
