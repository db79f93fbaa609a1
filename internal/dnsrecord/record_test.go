package dnsrecord

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMarshal_FlatShape(t *testing.T) {
	rec := New(MX{Name: "@", Priority: 10, Mailserver: "mail.example.com."}).WithComment("primary")

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, map[string]any{
		"type":       "MX",
		"name":       "@",
		"priority":   float64(10),
		"mailserver": "mail.example.com.",
		"comment":    "primary",
	}, got)
}

func TestRecordMarshal_OmitsEmptyComment(t *testing.T) {
	b, err := json.Marshal(New(PTR{IPOctet: "10", FQDN: "host.example.com."}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PTR","ip_octet":"10","fqdn":"host.example.com."}`, string(b))
}

func TestRecordMarshal_EmptyRecord(t *testing.T) {
	_, err := json.Marshal(Record{})
	assert.Error(t, err)
}

func TestRecordUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Record
	}{
		{
			name: "srv with numbers",
			in:   `{"type":"SRV","name":"_sip._tcp","priority":0,"weight":1,"port":5060,"target":"sip.example.com."}`,
			want: New(SRV{Name: "_sip._tcp", Priority: 0, Weight: 1, Port: 5060, Target: "sip.example.com."}),
		},
		{
			name: "mx priority as string",
			in:   `{"type":"MX","name":"@","priority":"20","mailserver":"mx2.example.com."}`,
			want: New(MX{Name: "@", Priority: 20, Mailserver: "mx2.example.com."}),
		},
		{
			name: "lowercase type tag",
			in:   `{"type":"a","name":"www","ipv4":"192.0.2.1","comment":"web"}`,
			want: New(A{Name: "www", IPv4: "192.0.2.1"}).WithComment("web"),
		},
		{
			name: "cross-type fields dropped",
			in:   `{"type":"CNAME","name":"www","target":"example.com.","ipv4":"192.0.2.1"}`,
			want: New(CNAME{Name: "www", Target: "example.com."}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Record
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.True(t, got.Equal(tt.want), "got %#v, want %#v", got, tt.want)
		})
	}
}

func TestRecordUnmarshal_Rejects(t *testing.T) {
	for _, in := range []string{
		`{"type":"SOA","name":"@"}`,
		`{"name":"www","ipv4":"192.0.2.1"}`,
		`{"type":"MX","name":"@","priority":"ten","mailserver":"mx."}`,
	} {
		var r Record
		assert.Error(t, json.Unmarshal([]byte(in), &r), in)
	}
}

func TestRecordEqualAndKey(t *testing.T) {
	a := New(A{Name: "www", IPv4: "192.0.2.1"})
	b := New(A{Name: "www", IPv4: "192.0.2.1"})
	c := b.WithComment("changed")
	d := New(AAAA{Name: "www", IPv6: "2001:db8::1"})

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Key(), c.Key())
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(Record{}))
	assert.Empty(t, Record{}.Key())

	apex := New(A{Name: "@", IPv4: "192.0.2.1"})
	blank := New(A{Name: "", IPv4: "192.0.2.1"})
	assert.False(t, apex.Equal(blank))
	assert.NotEqual(t, apex.Key(), blank.Key())

	piped := New(TXT{Name: "x", Text: "a|b"})
	split := New(TXT{Name: "x", Text: "a"}).WithComment("b|")
	assert.False(t, piped.Equal(split))
	assert.NotEqual(t, piped.Key(), split.Key())
}

func TestParseType(t *testing.T) {
	got, ok := ParseType(" aaaa ")
	assert.True(t, ok)
	assert.Equal(t, TypeAAAA, got)

	_, ok = ParseType("SOA")
	assert.False(t, ok)
}
