package handler

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/audit"
	"dnsmanager/internal/model"
	"dnsmanager/internal/service"
	"dnsmanager/internal/users"
)

type AdminHandler struct {
	accounts Accounts
	ops      *service.Operations
	log      *logrus.Entry
}

func NewAdminHandler(accounts Accounts, ops *service.Operations, log *logrus.Entry) *AdminHandler {
	return &AdminHandler{accounts: accounts, ops: ops, log: log.WithField("component", "admin")}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.accounts.ListUsers()
	if err != nil {
		failErr(w, h.log, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"users": list})
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.NewUser
	if !decode(w, r, &req, "Username and password required") {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	who := actor(r)
	details := map[string]string{"username": req.Username, "role": req.Role}

	if err := users.ValidateNew(req); err != nil {
		h.ops.Audit(audit.Outcome(who.Username, audit.ActionCreateUser, err).WithIP(who.IP).WithDetails(details))
		failErr(w, h.log, err)
		return
	}

	existing, err := h.accounts.GetUserByUsername(req.Username)
	if err != nil {
		failErr(w, h.log, err)
		return
	}
	if existing != nil {
		h.ops.Audit(audit.Failure(who.Username, audit.ActionCreateUser, "Username already exists").WithIP(who.IP).WithDetails(details))
		fail(w, http.StatusConflict, "Username already exists")
		return
	}

	if err := h.accounts.CreateUser(req.Username, req.Password, req.Role); err != nil {
		h.ops.Audit(audit.Failure(who.Username, audit.ActionCreateUser, "Failed to create user").WithIP(who.IP).WithDetails(details))
		h.log.WithError(err).Error("failed to create user")
		fail(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	h.ops.Audit(audit.Success(who.Username, audit.ActionCreateUser).WithIP(who.IP).WithDetails(details))
	ok(w, http.StatusCreated, map[string]any{"message": "User created successfully"})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("username")
	who := actor(r)
	details := map[string]string{"username": target}

	reject := func(status int, msg string) {
		h.ops.Audit(audit.Failure(who.Username, audit.ActionDeleteUser, msg).WithIP(who.IP).WithDetails(details))
		fail(w, status, msg)
	}

	switch {
	case target == users.MainAdmin:
		reject(http.StatusForbidden, "Cannot delete the main admin user")
		return
	case target == who.Username:
		reject(http.StatusForbidden, "Cannot delete your own account")
		return
	}

	deleted, err := h.accounts.DeleteUser(target)
	if err != nil {
		h.log.WithError(err).Error("failed to delete user")
		reject(http.StatusInternalServerError, "Failed to delete user")
		return
	}
	if !deleted {
		reject(http.StatusNotFound, "User not found")
		return
	}

	h.ops.Audit(audit.Success(who.Username, audit.ActionDeleteUser).WithIP(who.IP).WithDetails(details))
	ok(w, http.StatusOK, map[string]any{"message": "User deleted successfully"})
}

// EventLog reads the audit log. *database.DB implements it.
type EventLog interface {
	ListEvents(f audit.Filter) ([]audit.Event, error)
}

type LogHandler struct {
	events EventLog
	log    *logrus.Entry
}

func NewLogHandler(events EventLog, log *logrus.Entry) *LogHandler {
	return &LogHandler{events: events, log: log.WithField("component", "logs")}
}

func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	h.respond(w, audit.ParseFilter(r.URL.Query()).Clamp(100, 500))
}

func (h *LogHandler) Zone(w http.ResponseWriter, r *http.Request) {
	f := audit.ParseFilter(r.URL.Query())
	h.respond(w, audit.Filter{Limit: f.Limit, Zone: r.PathValue("zone")}.Clamp(50, 200))
}

func (h *LogHandler) respond(w http.ResponseWriter, f audit.Filter) {
	events, err := h.events.ListEvents(f)
	if err != nil {
		failErr(w, h.log, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	ok(w, http.StatusOK, map[string]any{"logs": events, "count": len(events)})
}
