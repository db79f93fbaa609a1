package auth

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"dnsmanager/internal/config"
	"dnsmanager/internal/model"
)

const defaultGroupFilter = "(|(member=%s)(uniqueMember=%s))"

type LDAPResult struct {
	Username string
	Groups   []string
}

type LDAPClient struct {
	cfg config.LDAPConfig
}

func NewLDAPClient(cfg config.LDAPConfig) *LDAPClient {
	return &LDAPClient{cfg: cfg}
}

// Authenticate binds with the service account to locate the user entry,
// then binds as the user to check the password.
func (lc *LDAPClient) Authenticate(username, password string) (*LDAPResult, error) {
	if password == "" {
		// an empty password would be an unauthenticated bind and succeed
		return nil, fmt.Errorf("ldap: empty password")
	}

	conn, err := lc.connect()
	if err != nil {
		return nil, fmt.Errorf("ldap connect: %w", err)
	}
	defer conn.Close()

	if err := conn.Bind(lc.cfg.BindDN, lc.cfg.BindPassword); err != nil {
		return nil, fmt.Errorf("ldap service bind: %w", err)
	}

	result, err := conn.Search(ldap.NewSearchRequest(
		lc.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 30, false,
		fmt.Sprintf(lc.cfg.UserFilter, ldap.EscapeFilter(username)),
		[]string{"dn", lc.cfg.UsernameAttr, "memberOf"},
		nil,
	))
	if err != nil {
		return nil, fmt.Errorf("ldap search: %w", err)
	}
	if len(result.Entries) != 1 {
		return nil, fmt.Errorf("user not found or ambiguous: %d results", len(result.Entries))
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, fmt.Errorf("ldap user bind: %w", err)
	}

	login := entry.GetAttributeValue(lc.cfg.UsernameAttr)
	if login == "" {
		login = username
	}

	groups := entry.GetAttributeValues("memberOf")
	if len(groups) == 0 {
		groupResult, err := conn.Search(ldap.NewSearchRequest(
			lc.cfg.BaseDN,
			ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
			groupFilter(lc.cfg.GroupFilter, entry.DN, login),
			[]string{"dn"},
			nil,
		))
		if err == nil {
			for _, ge := range groupResult.Entries {
				groups = append(groups, ge.DN)
			}
		}
	}

	return &LDAPResult{Username: login, Groups: groups}, nil
}

// groupFilter expands %s to the user DN and %u to the login name.
func groupFilter(tmpl, userDN, login string) string {
	if tmpl == "" {
		tmpl = defaultGroupFilter
	}
	f := strings.ReplaceAll(tmpl, "%s", ldap.EscapeFilter(userDN))
	return strings.ReplaceAll(f, "%u", ldap.EscapeFilter(login))
}

// ResolveRole maps directory groups through group_mapping. Admin wins over
// user; ("", false) means no mapped group and access is denied.
func (lc *LDAPClient) ResolveRole(groups []string) (string, bool) {
	role := ""
	for _, g := range groups {
		for group, mapped := range lc.cfg.GroupMapping {
			if !strings.EqualFold(g, group) {
				continue
			}
			if mapped == model.RoleAdmin {
				return model.RoleAdmin, true
			}
			role = mapped
		}
	}
	return role, role != ""
}

func (lc *LDAPClient) connect() (*ldap.Conn, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: lc.cfg.SkipVerify}

	if strings.HasPrefix(lc.cfg.URL, "ldaps://") {
		return ldap.DialURL(lc.cfg.URL, ldap.DialWithTLSConfig(tlsCfg))
	}

	conn, err := ldap.DialURL(lc.cfg.URL)
	if err != nil {
		return nil, err
	}
	if lc.cfg.StartTLS {
		if err := conn.StartTLS(tlsCfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}
	return conn, nil
}
