package dnsrecord

import (
	"fmt"
	"strings"
)

// DisplayName is the name column: the record name, else the PTR octet,
// else "@".
func DisplayName(r Record) string {
	var name string
	switch d := r.Data.(type) {
	case A:
		name = d.Name
	case AAAA:
		name = d.Name
	case MX:
		name = d.Name
	case CNAME:
		name = d.Name
	case TXT:
		name = d.Name
	case SRV:
		name = d.Name
	case PTR:
		name = d.IPOctet
	case NS:
		name = d.Name
	}
	if name == "" {
		return "@"
	}
	return name
}

// DisplayValue is the value column.
func DisplayValue(r Record) string {
	switch d := r.Data.(type) {
	case A:
		return d.IPv4
	case AAAA:
		return d.IPv6
	case MX:
		return fmt.Sprintf("%d %s", d.Priority, d.Mailserver)
	case CNAME:
		return d.Target
	case TXT:
		return d.Text
	case SRV:
		return fmt.Sprintf("%d %d %d %s", d.Priority, d.Weight, d.Port, d.Target)
	case PTR:
		return d.FQDN
	case NS:
		return d.Nameserver
	}
	return ""
}

// MatchesQuery reports whether q occurs, ignoring case, in the display
// name, the display value or the type tag. An empty query matches.
func MatchesQuery(r Record, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(DisplayName(r)), q) ||
		strings.Contains(strings.ToLower(DisplayValue(r)), q) ||
		strings.Contains(strings.ToLower(string(r.Type())), q)
}
