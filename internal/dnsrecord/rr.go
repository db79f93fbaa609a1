package dnsrecord

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// RR renders r as a resource record owned under origin. Relative names in
// the record resolve against origin; "@" is the apex.
func RR(r Record, origin string, ttl uint32) (dns.RR, error) {
	if r.Data == nil {
		return nil, fmt.Errorf("dnsrecord: empty record")
	}
	origin = dns.Fqdn(origin)
	line := fmt.Sprintf("%s %d IN %s %s", owner(r), ttl, r.Type(), rdata(r.Data))

	zp := dns.NewZoneParser(strings.NewReader(line), origin, "")
	rr, ok := zp.Next()
	if err := zp.Err(); err != nil {
		return nil, err
	}
	if !ok || rr == nil {
		return nil, fmt.Errorf("dnsrecord: no record parsed from %q", line)
	}
	return rr, nil
}

// Rdata returns the presentation-format data of r, as it appears after the
// type in a zone file.
func Rdata(r Record) string {
	if r.Data == nil {
		return ""
	}
	return rdata(r.Data)
}

// FromRR maps a parsed resource record back to a Record, with the owner
// made relative to origin. It reports false for types outside the closed
// set.
func FromRR(rr dns.RR, origin string) (Record, bool) {
	name := relative(rr.Header().Name, origin)
	switch v := rr.(type) {
	case *dns.A:
		return New(A{Name: name, IPv4: v.A.String()}), true
	case *dns.AAAA:
		return New(AAAA{Name: name, IPv6: v.AAAA.String()}), true
	case *dns.MX:
		return New(MX{Name: name, Priority: int(v.Preference), Mailserver: v.Mx}), true
	case *dns.CNAME:
		return New(CNAME{Name: name, Target: v.Target}), true
	case *dns.TXT:
		return New(TXT{Name: name, Text: unescapeTXT(strings.Join(v.Txt, ""))}), true
	case *dns.SRV:
		return New(SRV{
			Name:     name,
			Priority: int(v.Priority),
			Weight:   int(v.Weight),
			Port:     int(v.Port),
			Target:   v.Target,
		}), true
	case *dns.PTR:
		return New(PTR{IPOctet: name, FQDN: v.Ptr}), true
	case *dns.NS:
		return New(NS{Name: name, Nameserver: v.Ns}), true
	}
	return Record{}, false
}

// Owner returns the owner name of r relative to its zone, "@" for the apex.
func Owner(r Record) string {
	return owner(r)
}

func owner(r Record) string {
	name := DisplayName(r)
	if name == "" {
		return "@"
	}
	return name
}

func rdata(d Data) string {
	switch v := d.(type) {
	case A:
		return v.IPv4
	case AAAA:
		return v.IPv6
	case MX:
		return fmt.Sprintf("%d %s", v.Priority, v.Mailserver)
	case CNAME:
		return v.Target
	case TXT:
		return quoteTXT(v.Text)
	case SRV:
		return fmt.Sprintf("%d %d %d %s", v.Priority, v.Weight, v.Port, v.Target)
	case PTR:
		return v.FQDN
	case NS:
		return v.Nameserver
	}
	return ""
}

// quoteTXT splits text into quoted character-strings of at most 255 bytes.
func quoteTXT(text string) string {
	if text == "" {
		return `""`
	}
	var parts []string
	for len(text) > 0 {
		n := len(text)
		if n > 255 {
			n = 255
		}
		chunk := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(text[:n])
		parts = append(parts, `"`+chunk+`"`)
		text = text[n:]
	}
	return strings.Join(parts, " ")
}

// unescapeTXT undoes the presentation escapes the zone parser keeps in
// TXT strings: \X for a literal X and \DDD for a decimal byte.
func unescapeTXT(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		if i+3 < len(s) && isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]) {
			n := int(s[i+1]-'0')*100 + int(s[i+2]-'0')*10 + int(s[i+3]-'0')
			if n <= 255 {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i+1])
		i++
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func relative(name, origin string) string {
	name = strings.ToLower(dns.Fqdn(name))
	origin = strings.ToLower(dns.Fqdn(origin))
	if name == origin {
		return "@"
	}
	if strings.HasSuffix(name, "."+origin) {
		return strings.TrimSuffix(name, "."+origin)
	}
	return name
}
