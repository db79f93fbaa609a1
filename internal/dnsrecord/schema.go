package dnsrecord

type FieldKind string

const (
	KindText   FieldKind = "text"
	KindNumber FieldKind = "number"
)

// FieldSpec describes one input of the record form.
type FieldSpec struct {
	Name        string
	Label       string
	Kind        FieldKind
	Placeholder string
	Required    bool
}

func textField(name, label, placeholder string) FieldSpec {
	return FieldSpec{Name: name, Label: label, Kind: KindText, Placeholder: placeholder, Required: true}
}

func numberField(name, label, placeholder string) FieldSpec {
	return FieldSpec{Name: name, Label: label, Kind: KindNumber, Placeholder: placeholder, Required: true}
}

// FieldsFor returns the ordered form fields for t. Unknown types yield an
// empty slice.
func FieldsFor(t Type) []FieldSpec {
	switch t {
	case TypeA:
		return []FieldSpec{
			textField("name", "Name", "www"),
			textField("ipv4", "IPv4 Address", "192.168.1.1"),
		}
	case TypeAAAA:
		return []FieldSpec{
			textField("name", "Name", "www"),
			textField("ipv6", "IPv6 Address", "2001:db8::1"),
		}
	case TypeMX:
		return []FieldSpec{
			textField("name", "Name", "@"),
			numberField("priority", "Priority", "10"),
			textField("mailserver", "Mail Server", "mail.example.com."),
		}
	case TypeCNAME:
		return []FieldSpec{
			textField("name", "Name", "www"),
			textField("target", "Target", "example.com."),
		}
	case TypeTXT:
		return []FieldSpec{
			textField("name", "Name", "@"),
			textField("text", "Text Value", "v=spf1 mx -all"),
		}
	case TypeSRV:
		return []FieldSpec{
			textField("name", "Service Name", "_service._tcp"),
			numberField("priority", "Priority", "0"),
			numberField("weight", "Weight", "1"),
			numberField("port", "Port", "443"),
			textField("target", "Target", "server.example.com."),
		}
	case TypePTR:
		return []FieldSpec{
			textField("ip_octet", "IP Last Octet", "10"),
			textField("fqdn", "FQDN", "host.example.com."),
		}
	case TypeNS:
		return []FieldSpec{
			textField("name", "Name", "@"),
			textField("nameserver", "Name Server", "ns1.example.com."),
		}
	}
	return []FieldSpec{}
}
