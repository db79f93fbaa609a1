package dnsrecord

import (
	"strconv"
	"strings"

	"dnsmanager/internal/failure"
)

// Parse builds a record of type t from raw form input keyed by FieldSpec
// name. Every required field must be present and every number field must
// be an integer; nothing else is checked here.
func Parse(t Type, values map[string]string, comment string) (Record, error) {
	specs := FieldsFor(t)
	if len(specs) == 0 {
		return Record{}, failure.Validation("Unsupported record type: %s", t)
	}

	strs := make(map[string]string, len(specs))
	ints := make(map[string]int)
	for _, f := range specs {
		v := strings.TrimSpace(values[f.Name])
		if v == "" {
			if f.Required {
				return Record{}, failure.Validation("%s is required", f.Label)
			}
			continue
		}
		if f.Kind == KindNumber {
			n, err := strconv.Atoi(v)
			if err != nil {
				return Record{}, failure.Validation("%s must be an integer", f.Label)
			}
			ints[f.Name] = n
			continue
		}
		strs[f.Name] = v
	}

	var d Data
	switch t {
	case TypeA:
		d = A{Name: strs["name"], IPv4: strs["ipv4"]}
	case TypeAAAA:
		d = AAAA{Name: strs["name"], IPv6: strs["ipv6"]}
	case TypeMX:
		d = MX{Name: strs["name"], Priority: ints["priority"], Mailserver: strs["mailserver"]}
	case TypeCNAME:
		d = CNAME{Name: strs["name"], Target: strs["target"]}
	case TypeTXT:
		d = TXT{Name: strs["name"], Text: strs["text"]}
	case TypeSRV:
		d = SRV{
			Name:     strs["name"],
			Priority: ints["priority"],
			Weight:   ints["weight"],
			Port:     ints["port"],
			Target:   strs["target"],
		}
	case TypePTR:
		d = PTR{IPOctet: strs["ip_octet"], FQDN: strs["fqdn"]}
	case TypeNS:
		d = NS{Name: strs["name"], Nameserver: strs["nameserver"]}
	}
	return Record{Comment: strings.TrimSpace(comment), Data: d}, nil
}

// Fields is the inverse of Parse: it flattens r into form values, used to
// prefill an edit.
func Fields(r Record) map[string]string {
	itoa := strconv.Itoa
	switch d := r.Data.(type) {
	case A:
		return map[string]string{"name": d.Name, "ipv4": d.IPv4}
	case AAAA:
		return map[string]string{"name": d.Name, "ipv6": d.IPv6}
	case MX:
		return map[string]string{"name": d.Name, "priority": itoa(d.Priority), "mailserver": d.Mailserver}
	case CNAME:
		return map[string]string{"name": d.Name, "target": d.Target}
	case TXT:
		return map[string]string{"name": d.Name, "text": d.Text}
	case SRV:
		return map[string]string{
			"name":     d.Name,
			"priority": itoa(d.Priority),
			"weight":   itoa(d.Weight),
			"port":     itoa(d.Port),
			"target":   d.Target,
		}
	case PTR:
		return map[string]string{"ip_octet": d.IPOctet, "fqdn": d.FQDN}
	case NS:
		return map[string]string{"name": d.Name, "nameserver": d.Nameserver}
	}
	return map[string]string{}
}
