package auth

import (
	"testing"

	"dnsmanager/internal/config"
)

func TestResolveRole(t *testing.T) {
	lc := NewLDAPClient(config.LDAPConfig{
		GroupMapping: map[string]string{
			"cn=dns-admins,ou=groups,dc=example,dc=com": "admin",
			"cn=dns-users,ou=groups,dc=example,dc=com":  "user",
		},
	})

	tests := []struct {
		name   string
		groups []string
		role   string
		ok     bool
	}{
		{"admin group", []string{"cn=dns-admins,ou=groups,dc=example,dc=com"}, "admin", true},
		{"user group", []string{"CN=DNS-Users,OU=groups,DC=example,DC=com"}, "user", true},
		{"admin wins", []string{"cn=dns-users,ou=groups,dc=example,dc=com", "cn=dns-admins,ou=groups,dc=example,dc=com"}, "admin", true},
		{"unmapped", []string{"cn=staff,ou=groups,dc=example,dc=com"}, "", false},
		{"no groups", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, ok := lc.ResolveRole(tt.groups)
			if role != tt.role || ok != tt.ok {
				t.Errorf("ResolveRole() = (%q, %v), want (%q, %v)", role, ok, tt.role, tt.ok)
			}
		})
	}
}

func TestGroupFilter(t *testing.T) {
	got := groupFilter("", "uid=bob,dc=example,dc=com", "bob")
	want := "(|(member=uid=bob,dc=example,dc=com)(uniqueMember=uid=bob,dc=example,dc=com))"
	if got != want {
		t.Errorf("default filter = %q", got)
	}

	got = groupFilter("(memberUid=%u)", "uid=bob,dc=example,dc=com", "b*b")
	if got != `(memberUid=b\2ab)` {
		t.Errorf("posix filter = %q", got)
	}
}

func TestAuthenticate_EmptyPassword(t *testing.T) {
	lc := NewLDAPClient(config.LDAPConfig{URL: "ldap://127.0.0.1:1"})
	if _, err := lc.Authenticate("bob", ""); err == nil {
		t.Error("expected empty password to be rejected before dialing")
	}
}
