package dnsrecord

import (
	"net"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"dnsmanager/internal/failure"
)

// Validate checks a typed record before it is sent anywhere: required
// fields, address families, numeric ranges and domain-name syntax. The
// record must also render to a parseable resource record.
func Validate(r Record) error {
	if r.Data == nil {
		return failure.Validation("Record type is required")
	}

	values := Fields(r)
	for _, f := range FieldsFor(r.Type()) {
		if f.Required && f.Kind == KindText && strings.TrimSpace(values[f.Name]) == "" {
			return failure.Validation("%s is required", f.Label)
		}
	}

	if err := validateData(r.Data); err != nil {
		return err
	}

	if _, err := RR(r, ".", 300); err != nil {
		return failure.New(failure.KindValidation, "Invalid "+string(r.Type())+" record", err)
	}
	return nil
}

func validateData(data Data) error {
	switch d := data.(type) {
	case A:
		if ip := net.ParseIP(d.IPv4); ip == nil || ip.To4() == nil || strings.Contains(d.IPv4, ":") {
			return failure.Validation("Invalid IPv4 address format")
		}
		return checkOwner(d.Name)
	case AAAA:
		if ip := net.ParseIP(d.IPv6); ip == nil || !strings.Contains(d.IPv6, ":") {
			return failure.Validation("Invalid IPv6 address format")
		}
		return checkOwner(d.Name)
	case MX:
		if err := checkUint16("Priority", d.Priority); err != nil {
			return err
		}
		if err := checkHost("Mail Server", d.Mailserver); err != nil {
			return err
		}
		return checkOwner(d.Name)
	case CNAME:
		if err := checkHost("Target", d.Target); err != nil {
			return err
		}
		return checkOwner(d.Name)
	case TXT:
		return checkOwner(d.Name)
	case SRV:
		for _, n := range []struct {
			label string
			v     int
		}{{"Priority", d.Priority}, {"Weight", d.Weight}, {"Port", d.Port}} {
			if err := checkUint16(n.label, n.v); err != nil {
				return err
			}
		}
		if err := checkHost("Target", d.Target); err != nil {
			return err
		}
		return checkOwner(d.Name)
	case PTR:
		for _, part := range strings.Split(d.IPOctet, ".") {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 || n > 255 {
				return failure.Validation("Invalid IP octet: %s", d.IPOctet)
			}
		}
		return checkHost("FQDN", d.FQDN)
	case NS:
		if err := checkHost("Name Server", d.Nameserver); err != nil {
			return err
		}
		return checkOwner(d.Name)
	}
	return failure.Validation("Unsupported record type")
}

func checkUint16(label string, v int) error {
	if v < 0 || v > 65535 {
		return failure.Validation("%s must be between 0 and 65535", label)
	}
	return nil
}

func checkOwner(name string) error {
	if name == "@" || name == "*" {
		return nil
	}
	if strings.HasPrefix(name, "*.") {
		name = name[2:]
	}
	if _, ok := dns.IsDomainName(name); !ok || strings.ContainsAny(name, " \t") {
		return failure.Validation("Invalid record name: %s", name)
	}
	return nil
}

func checkHost(label, host string) error {
	if host == "@" {
		return nil
	}
	if _, ok := dns.IsDomainName(host); !ok || strings.ContainsAny(host, " \t") {
		return failure.Validation("%s is not a valid domain name", label)
	}
	return nil
}
