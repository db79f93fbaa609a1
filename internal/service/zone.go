package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/miekg/dns"

	"dnsmanager/internal/dnsrecord"
	"dnsmanager/internal/failure"
	"dnsmanager/internal/model"
)

type rrsetKey struct {
	name  string
	rtype types.RRType
}

// zoneState is a fresh read of one hosted zone.
type zoneState struct {
	id     string
	origin string
	soa    *dns.SOA
	soaSet types.ResourceRecordSet
	sets   map[rrsetKey]types.ResourceRecordSet
	data   model.ZoneData
}

func (b *Route53Backend) loadZone(ctx context.Context, zoneID string) (*zoneState, error) {
	var all []types.ResourceRecordSet
	input := &route53.ListResourceRecordSetsInput{HostedZoneId: aws.String(zoneID)}
	for {
		out, err := b.client.ListResourceRecordSets(ctx, input)
		if err != nil {
			return nil, awsFailure("list record sets", err)
		}
		all = append(all, out.ResourceRecordSets...)
		if !out.IsTruncated {
			break
		}
		input.StartRecordName = out.NextRecordName
		input.StartRecordType = out.NextRecordType
		input.StartRecordIdentifier = out.NextRecordIdentifier
	}

	z := &zoneState{id: zoneID, sets: make(map[rrsetKey]types.ResourceRecordSet)}
	for _, set := range all {
		if set.Type != types.RRTypeSoa || len(set.ResourceRecords) == 0 {
			continue
		}
		rr, err := parseValue(set, aws.ToString(set.ResourceRecords[0].Value))
		if err != nil {
			return nil, failure.Service("SOA record could not be parsed", err)
		}
		soa, ok := rr.(*dns.SOA)
		if !ok {
			return nil, failure.Service("SOA record could not be parsed", nil)
		}
		z.soa, z.soaSet = soa, set
		z.origin = ownerName(set)
		break
	}
	if z.soa == nil {
		return nil, failure.Service("SOA record not found in zone", nil)
	}

	comments, err := b.store.Comments(zoneID)
	if err != nil {
		return nil, failure.Service("Failed to load record comments", err)
	}

	z.data = model.ZoneData{
		SOA: model.SOA{
			Serial:     model.Serial(z.soa.Serial),
			PrimaryNS:  z.soa.Ns,
			AdminEmail: z.soa.Mbox,
		},
		Records: []dnsrecord.Record{},
	}
	for _, set := range all {
		// alias and routing-policy sets have no plain record form
		if set.Type == types.RRTypeSoa || set.AliasTarget != nil || set.SetIdentifier != nil {
			continue
		}
		z.sets[keyOf(set)] = set
		for _, v := range set.ResourceRecords {
			rr, err := parseValue(set, aws.ToString(v.Value))
			if err != nil {
				b.log.WithError(err).WithField("name", aws.ToString(set.Name)).Debug("skipping unparsable value")
				continue
			}
			rec, ok := dnsrecord.FromRR(rr, z.origin)
			if !ok {
				continue
			}
			rec.Comment = comments[commentKey(rec)]
			z.data.Records = append(z.data.Records, rec)
		}
	}
	return z, nil
}

// contains matches rec against the zone by full value, comment included.
func (z *zoneState) contains(rec dnsrecord.Record) bool {
	n, ok := normalize(rec, z.origin)
	if !ok {
		return false
	}
	for _, r := range z.data.Records {
		if r.Equal(n) {
			return true
		}
	}
	return false
}

func (z *zoneState) soaChange(serial uint32) types.Change {
	soa := *z.soa
	soa.Serial = serial
	set := types.ResourceRecordSet{
		Name:            z.soaSet.Name,
		Type:            types.RRTypeSoa,
		TTL:             z.soaSet.TTL,
		ResourceRecords: []types.ResourceRecord{{Value: aws.String(rdataOf(&soa))}},
	}
	return types.Change{Action: types.ChangeActionUpsert, ResourceRecordSet: &set}
}

type pendingSet struct {
	orig   *types.ResourceRecordSet
	key    rrsetKey
	ttl    int64
	values []string
}

// changeSet stages edits per RRset and renders the minimal Route53 changes.
type changeSet struct {
	z          *zoneState
	defaultTTL int64
	touched    map[rrsetKey]*pendingSet
	order      []rrsetKey
}

func newChangeSet(z *zoneState, defaultTTL int64) *changeSet {
	return &changeSet{z: z, defaultTTL: defaultTTL, touched: make(map[rrsetKey]*pendingSet)}
}

func (cs *changeSet) pending(key rrsetKey) *pendingSet {
	if p, ok := cs.touched[key]; ok {
		return p
	}
	p := &pendingSet{key: key, ttl: cs.defaultTTL}
	if orig, ok := cs.z.sets[key]; ok {
		p.orig = &orig
		p.ttl = aws.ToInt64(orig.TTL)
		for _, v := range orig.ResourceRecords {
			p.values = append(p.values, aws.ToString(v.Value))
		}
	}
	cs.touched[key] = p
	cs.order = append(cs.order, key)
	return p
}

func (cs *changeSet) add(rec dnsrecord.Record) error {
	rr, err := dnsrecord.RR(rec, cs.z.origin, 0)
	if err != nil {
		return failure.Validation("Invalid %s record: %v", rec.Type(), err)
	}
	p := cs.pending(rrsetKey{name: strings.ToLower(rr.Header().Name), rtype: types.RRType(rec.Type())})
	if p.index(rec, cs.z.origin) >= 0 {
		return failure.Validation("Record already exists")
	}
	p.values = append(p.values, rdataOf(rr))
	return nil
}

func (cs *changeSet) remove(rec dnsrecord.Record) bool {
	rr, err := dnsrecord.RR(rec, cs.z.origin, 0)
	if err != nil {
		return false
	}
	key := rrsetKey{name: strings.ToLower(rr.Header().Name), rtype: types.RRType(rec.Type())}
	if _, ok := cs.z.sets[key]; !ok {
		if _, staged := cs.touched[key]; !staged {
			return false
		}
	}
	p := cs.pending(key)
	i := p.index(rec, cs.z.origin)
	if i < 0 {
		return false
	}
	p.values = append(p.values[:i:i], p.values[i+1:]...)
	return true
}

func (cs *changeSet) changes() []types.Change {
	var out []types.Change
	for _, key := range cs.order {
		p := cs.touched[key]
		switch {
		case len(p.values) == 0 && p.orig != nil:
			out = append(out, types.Change{Action: types.ChangeActionDelete, ResourceRecordSet: p.orig})
		case len(p.values) == 0:
		case p.orig == nil:
			out = append(out, types.Change{Action: types.ChangeActionCreate, ResourceRecordSet: p.render()})
		default:
			out = append(out, types.Change{Action: types.ChangeActionUpsert, ResourceRecordSet: p.render()})
		}
	}
	return out
}

func (p *pendingSet) render() *types.ResourceRecordSet {
	set := &types.ResourceRecordSet{
		Name: aws.String(p.key.name),
		Type: p.key.rtype,
		TTL:  aws.Int64(p.ttl),
	}
	for _, v := range p.values {
		set.ResourceRecords = append(set.ResourceRecords, types.ResourceRecord{Value: aws.String(v)})
	}
	return set
}

// index finds the value carrying the same data as rec. Values are compared
// parsed, since the provider may format them differently.
func (p *pendingSet) index(rec dnsrecord.Record, origin string) int {
	want, ok := normalize(rec, origin)
	if !ok {
		return -1
	}
	probe := types.ResourceRecordSet{Name: aws.String(p.key.name), Type: p.key.rtype, TTL: aws.Int64(p.ttl)}
	for i, v := range p.values {
		rr, err := parseValue(probe, v)
		if err != nil {
			continue
		}
		got, ok := dnsrecord.FromRR(rr, origin)
		if ok && got.Data == want.Data {
			return i
		}
	}
	return -1
}

// normalize resolves relative names in rec against origin so it compares
// equal to the same record read back from the provider.
func normalize(rec dnsrecord.Record, origin string) (dnsrecord.Record, bool) {
	rr, err := dnsrecord.RR(rec, origin, 0)
	if err != nil {
		return dnsrecord.Record{}, false
	}
	out, ok := dnsrecord.FromRR(rr, origin)
	if !ok {
		return dnsrecord.Record{}, false
	}
	return out.WithComment(rec.Comment), true
}

// commentKey addresses a stored comment by the record's data alone.
func commentKey(rec dnsrecord.Record) string {
	return rec.WithComment("").Key()
}

func keyOf(set types.ResourceRecordSet) rrsetKey {
	return rrsetKey{name: strings.ToLower(ownerName(set)), rtype: set.Type}
}

// ownerName returns the set's name with Route53's octal escape for the
// wildcard label undone.
func ownerName(set types.ResourceRecordSet) string {
	return dns.Fqdn(strings.ReplaceAll(aws.ToString(set.Name), `\052`, "*"))
}

func parseValue(set types.ResourceRecordSet, value string) (dns.RR, error) {
	return dns.NewRR(fmt.Sprintf("%s %d IN %s %s", ownerName(set), aws.ToInt64(set.TTL), set.Type, value))
}

func rdataOf(rr dns.RR) string {
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}
