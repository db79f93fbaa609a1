// Package apiclient speaks the JSON contract of the zone configuration
// service. It is stateless: every authenticated call takes the bearer token
// explicitly, and every failure comes back as a *failure.Failure.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/audit"
	"dnsmanager/internal/dnsrecord"
	"dnsmanager/internal/failure"
	"dnsmanager/internal/model"
)

const (
	DefaultBaseURL = "http://localhost:2020/api"
	DefaultTimeout = 30 * time.Second
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

// New returns a client for the service rooted at baseURL (the API prefix
// included). A zero timeout means DefaultTimeout.
func New(baseURL string, timeout time.Duration, log *logrus.Entry) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithField("component", "apiclient"),
	}
}

// envelope is the part every response carries.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type call struct {
	method   string
	path     string
	query    url.Values
	token    string
	body     any
	fallback string // message used when a failed response carries none
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	var reader io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return failure.Validation("cannot encode request: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, reader)
	if err != nil {
		return failure.Transport(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	log := c.log.WithFields(logrus.Fields{"method": cl.method, "path": cl.path})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Debug("request failed")
		return failure.Transport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure.Transport(fmt.Errorf("failed to read response: %w", err))
	}
	log = log.WithField("status", resp.StatusCode)

	ok2xx := resp.StatusCode >= 200 && resp.StatusCode < 300

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if !ok2xx {
			log.Debug("non-JSON error response")
			return failure.FromStatus(resp.StatusCode, orDefault(cl.fallback, http.StatusText(resp.StatusCode)))
		}
		return failure.New(failure.KindTransport, failure.MsgMalformed, err)
	}

	if !ok2xx || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = cl.fallback
		}
		status := resp.StatusCode
		if ok2xx {
			status = http.StatusInternalServerError
		}
		log.WithField("error", msg).Debug("service reported failure")
		return failure.FromStatus(status, msg)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return failure.New(failure.KindTransport, failure.MsgMalformed, err)
		}
	}
	log.Debug("ok")
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func zonePath(file string) string {
	return "/zones/" + url.PathEscape(file) + "/records"
}

func (c *Client) Login(ctx context.Context, username, password string) (string, model.Identity, error) {
	var out struct {
		Token string         `json:"token"`
		User  model.Identity `json:"user"`
	}
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     map[string]string{"username": username, "password": password},
		fallback: failure.MsgLoginFailed,
	}, &out)
	if err != nil {
		return "", model.Identity{}, err
	}
	if out.Token == "" {
		return "", model.Identity{}, failure.New(failure.KindTransport, failure.MsgMalformed, fmt.Errorf("login response without token"))
	}
	return out.Token, out.User, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/logout", token: token}, nil)
}

func (c *Client) Verify(ctx context.Context, token string) (model.Identity, error) {
	var out struct {
		User model.Identity `json:"user"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/verify", token: token}, &out); err != nil {
		return model.Identity{}, err
	}
	return out.User, nil
}

func (c *Client) ListUsers(ctx context.Context, token string) ([]model.User, error) {
	var out struct {
		Users []model.User `json:"users"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/users", token: token}, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) CreateUser(ctx context.Context, token string, u model.NewUser) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/users", token: token, body: u}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, token, username string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: "/users/" + url.PathEscape(username), token: token}, nil)
}

func (c *Client) ListZones(ctx context.Context, token string) ([]model.Zone, error) {
	var out struct {
		Zones []model.Zone `json:"zones"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/zones", token: token}, &out); err != nil {
		return nil, err
	}
	return out.Zones, nil
}

func (c *Client) CreateZone(ctx context.Context, token string, z model.NewZone) error {
	if z.AllowTransferIPs == nil {
		z.AllowTransferIPs = []string{}
	}
	if z.AlsoNotifyIPs == nil {
		z.AlsoNotifyIPs = []string{}
	}
	return c.do(ctx, call{method: http.MethodPost, path: "/zones", token: token, body: z}, nil)
}

func (c *Client) GetRecords(ctx context.Context, token, file string) (model.ZoneData, error) {
	var out struct {
		Data model.ZoneData `json:"data"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: zonePath(file), token: token}, &out); err != nil {
		return model.ZoneData{}, err
	}
	return out.Data, nil
}

func (c *Client) AddRecord(ctx context.Context, token, file string, rec dnsrecord.Record) error {
	body := struct {
		Record dnsrecord.Record `json:"record"`
	}{rec}
	return c.do(ctx, call{method: http.MethodPost, path: zonePath(file), token: token, body: body}, nil)
}

func (c *Client) UpdateRecord(ctx context.Context, token, file string, old, updated dnsrecord.Record) error {
	body := struct {
		OldRecord dnsrecord.Record `json:"old_record"`
		NewRecord dnsrecord.Record `json:"new_record"`
	}{old, updated}
	return c.do(ctx, call{method: http.MethodPut, path: zonePath(file), token: token, body: body}, nil)
}

func (c *Client) DeleteRecord(ctx context.Context, token, file string, rec dnsrecord.Record) error {
	body := struct {
		Record dnsrecord.Record `json:"record"`
	}{rec}
	return c.do(ctx, call{method: http.MethodDelete, path: zonePath(file), token: token, body: body}, nil)
}

func (c *Client) ReloadZone(ctx context.Context, token, zoneName string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/reload/" + url.PathEscape(zoneName), token: token}, nil)
}

func (c *Client) RestartService(ctx context.Context, token string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/restart", token: token}, nil)
}

func (c *Client) Logs(ctx context.Context, token string, f audit.Filter) ([]audit.Event, error) {
	var out struct {
		Logs []audit.Event `json:"logs"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/logs", query: f.Values(), token: token}, &out); err != nil {
		return nil, err
	}
	return out.Logs, nil
}

func (c *Client) ZoneLogs(ctx context.Context, token, zone string, limit int) ([]audit.Event, error) {
	var out struct {
		Logs []audit.Event `json:"logs"`
	}
	q := audit.Filter{Limit: limit}.Values()
	if err := c.do(ctx, call{method: http.MethodGet, path: "/logs/zone/" + url.PathEscape(zone), query: q, token: token}, &out); err != nil {
		return nil, err
	}
	return out.Logs, nil
}
