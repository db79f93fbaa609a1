// Package dnsrecord models the closed set of DNS record variants the zone
// service manages, together with their form schema, display codec and
// validation rules. Every consumer switches exhaustively over Data, so a new
// variant is added here and nowhere else.
package dnsrecord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Type string

const (
	TypeA     Type = "A"
	TypeAAAA  Type = "AAAA"
	TypeMX    Type = "MX"
	TypeCNAME Type = "CNAME"
	TypeTXT   Type = "TXT"
	TypeSRV   Type = "SRV"
	TypePTR   Type = "PTR"
	TypeNS    Type = "NS"
)

// Types returns the supported record types in registry order.
func Types() []Type {
	return []Type{TypeA, TypeAAAA, TypeMX, TypeCNAME, TypeTXT, TypeSRV, TypePTR, TypeNS}
}

// ParseType normalizes a type tag. It reports false for tags outside the
// closed set.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Types() {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Data is the variant payload of a Record. It is sealed: only the types in
// this package implement it.
type Data interface {
	Type() Type
	sealed()
}

type A struct {
	Name string
	IPv4 string
}

type AAAA struct {
	Name string
	IPv6 string
}

type MX struct {
	Name       string
	Priority   int
	Mailserver string
}

type CNAME struct {
	Name   string
	Target string
}

type TXT struct {
	Name string
	Text string
}

type SRV struct {
	Name     string
	Priority int
	Weight   int
	Port     int
	Target   string
}

type PTR struct {
	IPOctet string
	FQDN    string
}

type NS struct {
	Name       string
	Nameserver string
}

func (A) Type() Type     { return TypeA }
func (AAAA) Type() Type  { return TypeAAAA }
func (MX) Type() Type    { return TypeMX }
func (CNAME) Type() Type { return TypeCNAME }
func (TXT) Type() Type   { return TypeTXT }
func (SRV) Type() Type   { return TypeSRV }
func (PTR) Type() Type   { return TypePTR }
func (NS) Type() Type    { return TypeNS }

func (A) sealed()     {}
func (AAAA) sealed()  {}
func (MX) sealed()    {}
func (CNAME) sealed() {}
func (TXT) sealed()   {}
func (SRV) sealed()   {}
func (PTR) sealed()   {}
func (NS) sealed()    {}

// Record is one resource record entry of a zone. The wire form is a flat
// JSON object holding the type tag, the variant fields and an optional
// comment.
type Record struct {
	Comment string
	Data    Data
}

func New(d Data) Record {
	return Record{Data: d}
}

func (r Record) WithComment(comment string) Record {
	r.Comment = comment
	return r
}

// Type returns the variant tag, or "" for a zero Record.
func (r Record) Type() Type {
	if r.Data == nil {
		return ""
	}
	return r.Data.Type()
}

// Equal is the full-value identity used to address records remotely: same
// variant, same fields, same comment.
func (r Record) Equal(o Record) bool {
	return r.Comment == o.Comment && r.Data == o.Data
}

// Key renders the full value as a canonical string: the wire encoding of
// the raw fields. Two records have the same key exactly when Equal reports
// true. The zero Record has the empty key.
func (r Record) Key() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

type wire struct {
	Type       Type    `json:"type"`
	Name       *string `json:"name,omitempty"`
	IPOctet    *string `json:"ip_octet,omitempty"`
	IPv4       *string `json:"ipv4,omitempty"`
	IPv6       *string `json:"ipv6,omitempty"`
	Priority   *number `json:"priority,omitempty"`
	Weight     *number `json:"weight,omitempty"`
	Port       *number `json:"port,omitempty"`
	Mailserver *string `json:"mailserver,omitempty"`
	Target     *string `json:"target,omitempty"`
	Text       *string `json:"text,omitempty"`
	FQDN       *string `json:"fqdn,omitempty"`
	Nameserver *string `json:"nameserver,omitempty"`
	Comment    string  `json:"comment,omitempty"`
}

// number accepts both 10 and "10"; zone-file backed services report
// priorities as strings.
type number int

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(n))), nil
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("expected integer, got %s", b)
	}
	*n = number(v)
	return nil
}

func str(s string) *string { return &s }
func num(i int) *number    { n := number(i); return &n }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefNum(n *number) int {
	if n == nil {
		return 0
	}
	return int(*n)
}

func (r Record) MarshalJSON() ([]byte, error) {
	w := wire{Comment: r.Comment}
	switch d := r.Data.(type) {
	case A:
		w.Type, w.Name, w.IPv4 = TypeA, str(d.Name), str(d.IPv4)
	case AAAA:
		w.Type, w.Name, w.IPv6 = TypeAAAA, str(d.Name), str(d.IPv6)
	case MX:
		w.Type, w.Name, w.Priority, w.Mailserver = TypeMX, str(d.Name), num(d.Priority), str(d.Mailserver)
	case CNAME:
		w.Type, w.Name, w.Target = TypeCNAME, str(d.Name), str(d.Target)
	case TXT:
		w.Type, w.Name, w.Text = TypeTXT, str(d.Name), str(d.Text)
	case SRV:
		w.Type, w.Name = TypeSRV, str(d.Name)
		w.Priority, w.Weight, w.Port, w.Target = num(d.Priority), num(d.Weight), num(d.Port), str(d.Target)
	case PTR:
		w.Type, w.IPOctet, w.FQDN = TypePTR, str(d.IPOctet), str(d.FQDN)
	case NS:
		w.Type, w.Name, w.Nameserver = TypeNS, str(d.Name), str(d.Nameserver)
	case nil:
		return nil, fmt.Errorf("dnsrecord: marshal of empty record")
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the flat wire form. Fields that do not belong to the
// tagged variant are dropped, so a decoded Record never carries cross-type
// attributes.
func (r *Record) UnmarshalJSON(b []byte) error {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	t, ok := ParseType(string(w.Type))
	if !ok {
		return fmt.Errorf("dnsrecord: unsupported record type %q", w.Type)
	}
	var d Data
	switch t {
	case TypeA:
		d = A{Name: deref(w.Name), IPv4: deref(w.IPv4)}
	case TypeAAAA:
		d = AAAA{Name: deref(w.Name), IPv6: deref(w.IPv6)}
	case TypeMX:
		d = MX{Name: deref(w.Name), Priority: derefNum(w.Priority), Mailserver: deref(w.Mailserver)}
	case TypeCNAME:
		d = CNAME{Name: deref(w.Name), Target: deref(w.Target)}
	case TypeTXT:
		d = TXT{Name: deref(w.Name), Text: deref(w.Text)}
	case TypeSRV:
		d = SRV{
			Name:     deref(w.Name),
			Priority: derefNum(w.Priority),
			Weight:   derefNum(w.Weight),
			Port:     derefNum(w.Port),
			Target:   deref(w.Target),
		}
	case TypePTR:
		d = PTR{IPOctet: deref(w.IPOctet), FQDN: deref(w.FQDN)}
	case TypeNS:
		d = NS{Name: deref(w.Name), Nameserver: deref(w.Nameserver)}
	}
	*r = Record{Comment: w.Comment, Data: d}
	return nil
}
