package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"dnsmanager/internal/dnsrecord"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Zone is one managed zone. File addresses the zone in record operations,
// Name is used for reload and audit context.
type Zone struct {
	Name string `json:"name"`
	File string `json:"file"`
	Type string `json:"type"`
}

// NewZone is the create-zone request.
type NewZone struct {
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	AllowTransferIPs []string `json:"allow_transfer_ips"`
	AlsoNotifyIPs    []string `json:"also_notify_ips"`
}

// Serial is the SOA serial. Services report it as a JSON number or as a
// string.
type Serial uint32

func (s *Serial) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		b = []byte(str)
	}
	if len(b) == 0 || string(b) == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseUint(string(b), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid SOA serial %s", b)
	}
	*s = Serial(n)
	return nil
}

func (s Serial) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

type SOA struct {
	Serial     Serial `json:"serial"`
	PrimaryNS  string `json:"primary_ns"`
	AdminEmail string `json:"admin_email"`
}

// ZoneData is a full snapshot of one zone.
// ZoneCheck is the result of validating a zone's stored records.
type ZoneCheck struct {
	Zone   string   `json:"zone"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type ZoneData struct {
	SOA     SOA                `json:"soa"`
	Records []dnsrecord.Record `json:"records"`
}

type User struct {
	ID         int64      `json:"-"`
	Username   string     `json:"username"`
	PassHash   string     `json:"-"`
	Role       string     `json:"role"`
	Active     bool       `json:"-"`
	AuthSource string     `json:"-"` // "local" or "ldap"
	CreatedAt  time.Time  `json:"created_at"`
	LastLogin  *time.Time `json:"last_login"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Identity is the authenticated principal carried by a session.
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// NewUser is the create-user request.
type NewUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RevokedToken marks a logged-out token id until it would have expired.
type RevokedToken struct {
	JTI       string
	Username  string
	ExpiresAt time.Time
}

// CachedZone is the row shape of the zone list cache.
type CachedZone struct {
	ZoneID   string
	Name     string
	CachedAt time.Time
}
