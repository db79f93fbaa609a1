// Package testutil holds an in-memory zone configuration service speaking
// the client JSON contract, for tests of the client core.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"dnsmanager/internal/audit"
	"dnsmanager/internal/dnsrecord"
	"dnsmanager/internal/model"
)

type account struct {
	password string
	user     model.User
}

// FakeService answers under /api. Exported fields may be changed between
// calls while holding no lock; tests drive it from one goroutine.
type FakeService struct {
	srv *httptest.Server

	mu       sync.Mutex
	accounts map[string]*account
	tokens   map[string]model.Identity
	zones    []model.Zone
	data     map[string]*model.ZoneData
	events   []audit.Event
	calls    []string

	// FailReload makes every reload answer 500.
	FailReload bool
	// FailGetAfter makes record fetches fail once this many have succeeded;
	// negative disables it.
	FailGetAfter int
	gets         int
}

func NewFakeService(t testing.TB) *FakeService {
	f := &FakeService{
		accounts:     map[string]*account{},
		tokens:       map[string]model.Identity{},
		data:         map[string]*model.ZoneData{},
		FailGetAfter: -1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", f.login)
	mux.HandleFunc("POST /api/auth/logout", f.authed(f.logout))
	mux.HandleFunc("GET /api/auth/verify", f.authed(f.verify))
	mux.HandleFunc("GET /api/users", f.admin(f.listUsers))
	mux.HandleFunc("POST /api/users", f.admin(f.createUser))
	mux.HandleFunc("DELETE /api/users/{username}", f.admin(f.deleteUser))
	mux.HandleFunc("GET /api/zones", f.authed(f.listZones))
	mux.HandleFunc("POST /api/zones", f.authed(f.createZone))
	mux.HandleFunc("GET /api/zones/{file}/records", f.authed(f.getRecords))
	mux.HandleFunc("POST /api/zones/{file}/records", f.authed(f.addRecord))
	mux.HandleFunc("PUT /api/zones/{file}/records", f.authed(f.updateRecord))
	mux.HandleFunc("DELETE /api/zones/{file}/records", f.authed(f.deleteRecord))
	mux.HandleFunc("POST /api/reload/{zone}", f.authed(f.reload))
	mux.HandleFunc("POST /api/restart", f.admin(f.restart))
	mux.HandleFunc("GET /api/logs", f.authed(f.logs))

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api"))
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

// URL is the API base URL, prefix included.
func (f *FakeService) URL() string { return f.srv.URL + "/api" }

func (f *FakeService) Close() { f.srv.Close() }

func (f *FakeService) AddUser(username, password, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[username] = &account{
		password: password,
		user:     model.User{Username: username, Role: role, CreatedAt: time.Now().UTC()},
	}
}

// AddZone registers a zone with an initial set of records.
func (f *FakeService) AddZone(z model.Zone, serial model.Serial, recs ...dnsrecord.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zones = append(f.zones, z)
	f.data[z.File] = &model.ZoneData{
		SOA:     model.SOA{Serial: serial, PrimaryNS: "ns1." + z.Name + ".", AdminEmail: "hostmaster." + z.Name + "."},
		Records: append([]dnsrecord.Record{}, recs...),
	}
}

// IssueToken logs a user in without a request.
func (f *FakeService) IssueToken(id model.Identity) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok := uuid.NewString()
	f.tokens[tok] = id
	return tok
}

func (f *FakeService) RevokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = map[string]model.Identity{}
}

// Calls returns "METHOD /path" for every request received.
func (f *FakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeService) CallCount(method, prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, method+" "+prefix) {
			n++
		}
	}
	return n
}

func (f *FakeService) Records(file string) []dnsrecord.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if zd, ok := f.data[file]; ok {
		return append([]dnsrecord.Record(nil), zd.Records...)
	}
	return nil
}

func (f *FakeService) Events() []audit.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audit.Event(nil), f.events...)
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func ok(w http.ResponseWriter, extra map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

type identityHandler func(w http.ResponseWriter, r *http.Request, id model.Identity, token string)

func (f *FakeService) authed(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		id, found := f.tokens[tok]
		f.mu.Unlock()
		if tok == "" || !found {
			fail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next(w, r, id, tok)
	}
}

func (f *FakeService) admin(next identityHandler) http.HandlerFunc {
	return f.authed(func(w http.ResponseWriter, r *http.Request, id model.Identity, token string) {
		if !id.IsAdmin() {
			fail(w, http.StatusForbidden, "Admin privileges required")
			return
		}
		next(w, r, id, token)
	})
}

func (f *FakeService) record(ev audit.Event) {
	f.events = append(f.events, ev)
}

func (f *FakeService) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, found := f.accounts[req.Username]
	if !found || acct.password != req.Password {
		f.record(audit.Failure(req.Username, audit.ActionLogin, "Invalid credentials"))
		fail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	id := model.Identity{Username: acct.user.Username, Role: acct.user.Role}
	tok := uuid.NewString()
	f.tokens[tok] = id
	f.record(audit.Success(id.Username, audit.ActionLogin))
	ok(w, map[string]any{"token": tok, "user": id})
}

func (f *FakeService) logout(w http.ResponseWriter, _ *http.Request, id model.Identity, token string) {
	f.mu.Lock()
	delete(f.tokens, token)
	f.record(audit.Success(id.Username, audit.ActionLogout))
	f.mu.Unlock()
	ok(w, nil)
}

func (f *FakeService) verify(w http.ResponseWriter, _ *http.Request, id model.Identity, _ string) {
	ok(w, map[string]any{"user": id})
}

func (f *FakeService) listUsers(w http.ResponseWriter, _ *http.Request, _ model.Identity, _ string) {
	f.mu.Lock()
	users := make([]model.User, 0, len(f.accounts))
	for _, a := range f.accounts {
		users = append(users, a.user)
	}
	f.mu.Unlock()
	ok(w, map[string]any{"users": users})
}

func (f *FakeService) createUser(w http.ResponseWriter, r *http.Request, id model.Identity, _ string) {
	var req model.NewUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.accounts[req.Username]; exists {
		fail(w, http.StatusConflict, "Username already exists")
		return
	}
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	f.accounts[req.Username] = &account{
		password: req.Password,
		user:     model.User{Username: req.Username, Role: role, CreatedAt: time.Now().UTC()},
	}
	f.record(audit.Success(id.Username, audit.ActionCreateUser).WithDetails(map[string]string{"username": req.Username}))
	ok(w, map[string]any{"message": "User created"})
}

func (f *FakeService) deleteUser(w http.ResponseWriter, r *http.Request, id model.Identity, _ string) {
	username := r.PathValue("username")
	f.mu.Lock()
	defer f.mu.Unlock()
	if username == "admin" {
		fail(w, http.StatusForbidden, "Cannot delete the main admin user")
		return
	}
	if username == id.Username {
		fail(w, http.StatusForbidden, "Cannot delete your own account")
		return
	}
	if _, exists := f.accounts[username]; !exists {
		fail(w, http.StatusNotFound, "User not found")
		return
	}
	delete(f.accounts, username)
	f.record(audit.Success(id.Username, audit.ActionDeleteUser))
	ok(w, nil)
}

func (f *FakeService) listZones(w http.ResponseWriter, _ *http.Request, _ model.Identity, _ string) {
	f.mu.Lock()
	zones := append([]model.Zone{}, f.zones...)
	f.mu.Unlock()
	ok(w, map[string]any{"zones": zones})
}

func (f *FakeService) createZone(w http.ResponseWriter, r *http.Request, id model.Identity, _ string) {
	var req model.NewZone
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		fail(w, http.StatusBadRequest, "Zone name is required")
		return
	}
	if req.Type != "forward" && req.Type != "reverse" {
		fail(w, http.StatusBadRequest, "Zone type must be forward or reverse")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	z := model.Zone{Name: req.Name, File: "db." + req.Name, Type: "master"}
	f.zones = append(f.zones, z)
	f.data[z.File] = &model.ZoneData{SOA: model.SOA{Serial: 1}}
	f.record(audit.Success(id.Username, audit.ActionCreateZone).WithZone(req.Name))
	ok(w, nil)
}

func (f *FakeService) getRecords(w http.ResponseWriter, r *http.Request, _ model.Identity, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailGetAfter >= 0 && f.gets >= f.FailGetAfter {
		fail(w, http.StatusInternalServerError, "zone read failed")
		return
	}
	zd, found := f.data[r.PathValue("file")]
	if !found {
		fail(w, http.StatusNotFound, "Zone file not found")
		return
	}
	f.gets++
	ok(w, map[string]any{"data": model.ZoneData{SOA: zd.SOA, Records: append([]dnsrecord.Record{}, zd.Records...)}})
}

func indexOf(recs []dnsrecord.Record, target dnsrecord.Record) int {
	for i, rec := range recs {
		if rec.Equal(target) {
			return i
		}
	}
	return -1
}

func (f *FakeService) mutate(w http.ResponseWriter, r *http.Request, id model.Identity, action audit.Action,
	apply func(zd *model.ZoneData) (string, bool)) {
	file := r.PathValue("file")
	f.mu.Lock()
	defer f.mu.Unlock()
	zd, found := f.data[file]
	if !found {
		fail(w, http.StatusNotFound, "Zone file not found")
		return
	}
	if msg, applied := apply(zd); !applied {
		f.record(audit.Failure(id.Username, action, msg).WithZone(file))
		fail(w, http.StatusInternalServerError, msg)
		return
	}
	zd.SOA.Serial++
	f.record(audit.Success(id.Username, action).WithZone(file))
	ok(w, nil)
}

func (f *FakeService) addRecord(w http.ResponseWriter, r *http.Request, id model.Identity, _ string) {
	var req struct {
		Record dnsrecord.Record `json:"record"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	f.mutate(w, r, id, audit.ActionAddRecord, func(zd *model.ZoneData) (string, bool) {
		zd.Records = append(zd.Records, req.Record)
		return "", true
	})
}

func (f *FakeService) updateRecord(w http.ResponseWriter, r *http.Request, id model.Identity, _ string) {
	var req struct {
		Old dnsrecord.Record `json:"old_record"`
		New dnsrecord.Record `json:"new_record"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	f.mutate(w, r, id, audit.ActionUpdateRecord, func(zd *model.ZoneData) (string, bool) {
		i := indexOf(zd.Records, req.Old)
		if i < 0 {
			return "Record not found", false
		}
		zd.Records[i] = req.New
		return "", true
	})
}

func (f *FakeService) deleteRecord(w http.ResponseWriter, r *http.Request, id model.Identity, _ string) {
	var req struct {
		Record dnsrecord.Record `json:"record"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	f.mutate(w, r, id, audit.ActionDeleteRecord, func(zd *model.ZoneData) (string, bool) {
		i := indexOf(zd.Records, req.Record)
		if i < 0 {
			return "Record not found", false
		}
		zd.Records = append(zd.Records[:i], zd.Records[i+1:]...)
		return "", true
	})
}

// RemoveRecord deletes a record behind the client's back.
func (f *FakeService) RemoveRecord(file string, rec dnsrecord.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if zd, found := f.data[file]; found {
		if i := indexOf(zd.Records, rec); i >= 0 {
			zd.Records = append(zd.Records[:i], zd.Records[i+1:]...)
		}
	}
}

func (f *FakeService) reload(w http.ResponseWriter, r *http.Request, id model.Identity, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	zone := r.PathValue("zone")
	if f.FailReload {
		f.record(audit.Failure(id.Username, audit.ActionReloadZone, "rndc reload failed").WithZone(zone))
		fail(w, http.StatusInternalServerError, "rndc reload failed")
		return
	}
	f.record(audit.Success(id.Username, audit.ActionReloadZone).WithZone(zone))
	ok(w, map[string]any{"message": "Zone " + zone + " reloaded"})
}

func (f *FakeService) restart(w http.ResponseWriter, _ *http.Request, id model.Identity, _ string) {
	f.mu.Lock()
	f.record(audit.Success(id.Username, audit.ActionRestartService))
	f.mu.Unlock()
	ok(w, nil)
}

func (f *FakeService) logs(w http.ResponseWriter, r *http.Request, _ model.Identity, _ string) {
	filter := audit.ParseFilter(r.URL.Query()).Clamp(100, 500)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []audit.Event{}
	for i := len(f.events) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		ev := f.events[i]
		if filter.User != "" && ev.User != filter.User {
			continue
		}
		if filter.Action != "" && ev.Action != filter.Action {
			continue
		}
		out = append(out, ev)
	}
	ok(w, map[string]any{"logs": out})
}
