package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/audit"
	"dnsmanager/internal/auth"
	"dnsmanager/internal/model"
	"dnsmanager/internal/service"
	"dnsmanager/internal/util"
)

// Accounts is the user storage the handlers need. *database.DB implements
// it.
type Accounts interface {
	GetUserByUsername(username string) (*model.User, error)
	ListUsers() ([]model.User, error)
	CreateUser(username, password, role string) error
	DeleteUser(username string) (bool, error)
	AuthenticateUser(username, password string) (*model.User, error)
	CreateLDAPUser(username, role string) error
	TouchLastLogin(username string, at time.Time) error
	RevokeToken(jti, username string, expiresAt time.Time) error
}

// Directory authenticates against LDAP. A nil Directory disables it.
type Directory interface {
	Authenticate(username, password string) (*auth.LDAPResult, error)
	ResolveRole(groups []string) (string, bool)
}

type AuthHandler struct {
	accounts Accounts
	tokens   *auth.TokenManager
	ldap     Directory
	ops      *service.Operations
	log      *logrus.Entry
}

func NewAuthHandler(accounts Accounts, tokens *auth.TokenManager, ldap Directory, ops *service.Operations, log *logrus.Entry) *AuthHandler {
	return &AuthHandler{accounts: accounts, tokens: tokens, ldap: ldap, ops: ops, log: log.WithField("component", "auth")}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login tries the directory first when it is enabled, then local accounts.
// While LDAP is on, only local admins may use local credentials.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req, "Username and password required") {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "Username and password required")
		return
	}
	ip := util.ClientIP(r)

	var user *model.User
	method := "local"

	if h.ldap != nil {
		result, err := h.ldap.Authenticate(req.Username, req.Password)
		if err != nil {
			h.log.WithError(err).WithField("username", req.Username).Debug("ldap authentication failed")
		} else {
			role, allowed := h.ldap.ResolveRole(result.Groups)
			if !allowed {
				h.loginFailed(w, req.Username, ip, http.StatusUnauthorized, "Access denied: you are not in an authorized group")
				return
			}
			if err := h.accounts.CreateLDAPUser(result.Username, role); err != nil {
				h.log.WithError(err).Error("failed to provision ldap user")
				fail(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			user, err = h.accounts.GetUserByUsername(result.Username)
			if err != nil {
				h.log.WithError(err).Error("failed to load ldap user")
				fail(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			method = "ldap"
		}
	}

	if user == nil {
		u, err := h.accounts.AuthenticateUser(req.Username, req.Password)
		if err != nil {
			h.log.WithError(err).Error("local authentication failed")
			fail(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if u != nil && h.ldap != nil && !u.IsAdmin() {
			h.loginFailed(w, req.Username, ip, http.StatusUnauthorized, "Local login is disabled. Use LDAP credentials.")
			return
		}
		user = u
	}

	if user == nil {
		h.loginFailed(w, req.Username, ip, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, claims, err := h.tokens.Issue(user.Username, user.Role)
	if err != nil {
		h.log.WithError(err).Error("failed to issue token")
		fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := h.accounts.TouchLastLogin(user.Username, time.Now().UTC()); err != nil {
		h.log.WithError(err).Warn("failed to update last login")
	}

	h.ops.Audit(audit.Success(user.Username, audit.ActionLogin).
		WithIP(ip).
		WithDetails(map[string]string{"auth": method}))
	h.log.WithFields(logrus.Fields{"username": user.Username, "auth": method}).Info("user logged in")

	ok(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": claims.Expiry(),
		"user":       claims.Identity(),
	})
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, username, ip string, status int, msg string) {
	h.ops.Audit(audit.Failure(username, audit.ActionLogin, msg).WithIP(ip))
	fail(w, status, msg)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	if err := h.accounts.RevokeToken(claims.ID, claims.Username, claims.Expiry()); err != nil {
		h.log.WithError(err).Error("failed to revoke token")
		fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.ops.Audit(audit.Success(claims.Username, audit.ActionLogout).WithIP(util.ClientIP(r)))
	ok(w, http.StatusOK, map[string]any{"message": "Logged out successfully"})
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	ok(w, http.StatusOK, map[string]any{"user": claims.Identity()})
}
