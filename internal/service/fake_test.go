package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"dnsmanager/internal/model"
)

// fakeRoute53 keeps hosted zones in memory and applies change batches the
// way Route53 validates them.
type fakeRoute53 struct {
	mu       sync.Mutex
	zones    []types.HostedZone
	sets     map[string][]types.ResourceRecordSet
	batches  []*types.ChangeBatch
	refs     []string
	pageSize int
	getErrs  []error
	calls    map[string]int
}

func newFakeRoute53() *fakeRoute53 {
	return &fakeRoute53{sets: map[string][]types.ResourceRecordSet{}, calls: map[string]int{}}
}

func (f *fakeRoute53) addZone(id, name string, sets ...types.ResourceRecordSet) {
	f.zones = append(f.zones, types.HostedZone{
		Id:   aws.String("/hostedzone/" + id),
		Name: aws.String(name + "."),
	})
	f.sets[id] = append(f.sets[id], sets...)
}

func rrset(name string, t types.RRType, ttl int64, values ...string) types.ResourceRecordSet {
	set := types.ResourceRecordSet{Name: aws.String(name), Type: t, TTL: aws.Int64(ttl)}
	for _, v := range values {
		set.ResourceRecords = append(set.ResourceRecords, types.ResourceRecord{Value: aws.String(v)})
	}
	return set
}

func (f *fakeRoute53) ListHostedZones(_ context.Context, in *route53.ListHostedZonesInput, _ ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListHostedZones"]++

	start := 0
	if in.Marker != nil {
		start, _ = strconv.Atoi(*in.Marker)
	}
	end := len(f.zones)
	out := &route53.ListHostedZonesOutput{}
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
		out.IsTruncated = true
		out.NextMarker = aws.String(fmt.Sprint(end))
	}
	out.HostedZones = append(out.HostedZones, f.zones[start:end]...)
	return out, nil
}

func (f *fakeRoute53) GetHostedZone(_ context.Context, in *route53.GetHostedZoneInput, _ ...func(*route53.Options)) (*route53.GetHostedZoneOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetHostedZone"]++

	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	for _, z := range f.zones {
		if extractZoneID(aws.ToString(z.Id)) == aws.ToString(in.Id) {
			hz := z
			return &route53.GetHostedZoneOutput{HostedZone: &hz}, nil
		}
	}
	return nil, &types.NoSuchHostedZone{Message: aws.String("No hosted zone found with ID: " + aws.ToString(in.Id))}
}

func (f *fakeRoute53) CreateHostedZone(_ context.Context, in *route53.CreateHostedZoneInput, _ ...func(*route53.Options)) (*route53.CreateHostedZoneOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateHostedZone"]++

	f.refs = append(f.refs, aws.ToString(in.CallerReference))
	id := fmt.Sprintf("ZNEW%d", len(f.zones))
	name := aws.ToString(in.Name)
	hz := types.HostedZone{Id: aws.String("/hostedzone/" + id), Name: aws.String(name + ".")}
	f.zones = append(f.zones, hz)
	f.sets[id] = []types.ResourceRecordSet{
		rrset(name+".", types.RRTypeSoa, 900, "ns-1.awsdns-01.org. awsdns-hostmaster.amazon.com. 1 7200 900 1209600 86400"),
		rrset(name+".", types.RRTypeNs, 172800, "ns-1.awsdns-01.org."),
	}
	return &route53.CreateHostedZoneOutput{HostedZone: &hz}, nil
}

func (f *fakeRoute53) ListResourceRecordSets(_ context.Context, in *route53.ListResourceRecordSetsInput, _ ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListResourceRecordSets"]++

	sets, ok := f.sets[aws.ToString(in.HostedZoneId)]
	if !ok {
		return nil, &types.NoSuchHostedZone{Message: aws.String("No hosted zone found")}
	}
	start := 0
	if in.StartRecordName != nil {
		for i, s := range sets {
			if aws.ToString(s.Name) == aws.ToString(in.StartRecordName) && s.Type == in.StartRecordType {
				start = i
				break
			}
		}
	}
	out := &route53.ListResourceRecordSetsOutput{}
	end := len(sets)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
		out.IsTruncated = true
		out.NextRecordName = sets[end].Name
		out.NextRecordType = sets[end].Type
	}
	out.ResourceRecordSets = append(out.ResourceRecordSets, sets[start:end]...)
	return out, nil
}

func (f *fakeRoute53) ChangeResourceRecordSets(_ context.Context, in *route53.ChangeResourceRecordSetsInput, _ ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ChangeResourceRecordSets"]++

	id := aws.ToString(in.HostedZoneId)
	sets := append([]types.ResourceRecordSet(nil), f.sets[id]...)
	find := func(s *types.ResourceRecordSet) int {
		for i, cur := range sets {
			if strings.EqualFold(aws.ToString(cur.Name), aws.ToString(s.Name)) && cur.Type == s.Type {
				return i
			}
		}
		return -1
	}

	for _, c := range in.ChangeBatch.Changes {
		i := find(c.ResourceRecordSet)
		switch c.Action {
		case types.ChangeActionCreate:
			if i >= 0 {
				return nil, &types.InvalidChangeBatch{Messages: []string{"Tried to create resource record set but it already exists"}}
			}
			sets = append(sets, *c.ResourceRecordSet)
		case types.ChangeActionUpsert:
			if i >= 0 {
				sets[i] = *c.ResourceRecordSet
			} else {
				sets = append(sets, *c.ResourceRecordSet)
			}
		case types.ChangeActionDelete:
			if i < 0 || len(sets[i].ResourceRecords) != len(c.ResourceRecordSet.ResourceRecords) {
				return nil, &types.InvalidChangeBatch{Messages: []string{"Tried to delete resource record set but it was not found"}}
			}
			sets = append(sets[:i], sets[i+1:]...)
		}
	}

	f.sets[id] = sets
	f.batches = append(f.batches, in.ChangeBatch)
	return &route53.ChangeResourceRecordSetsOutput{}, nil
}

func (f *fakeRoute53) lastBatch() *types.ChangeBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

func (f *fakeRoute53) values(zoneID, name string, t types.RRType) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sets[zoneID] {
		if aws.ToString(s.Name) == name && s.Type == t {
			var out []string
			for _, v := range s.ResourceRecords {
				out = append(out, aws.ToString(v.Value))
			}
			sort.Strings(out)
			return out
		}
	}
	return nil
}

// memStore is an in-memory Store.
type memStore struct {
	mu          sync.Mutex
	zones       []model.CachedZone
	data        map[string]model.ZoneData
	comments    map[string]map[string]string
	invalidated []string
}

func newMemStore() *memStore {
	return &memStore{data: map[string]model.ZoneData{}, comments: map[string]map[string]string{}}
}

func (m *memStore) GetCachedZones() ([]model.CachedZone, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zones, len(m.zones) > 0
}

func (m *memStore) CacheZones(zones []model.CachedZone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range zones {
		zones[i].CachedAt = time.Now()
	}
	m.zones = zones
	return nil
}

func (m *memStore) InvalidateZoneCache() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones = nil
	m.invalidated = append(m.invalidated, "zones")
	return nil
}

func (m *memStore) GetCachedZoneData(zoneID string) (model.ZoneData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	zd, ok := m.data[zoneID]
	return zd, ok
}

func (m *memStore) CacheZoneData(zoneID string, zd model.ZoneData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[zoneID] = zd
	return nil
}

func (m *memStore) InvalidateRecordCache(zoneID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, zoneID)
	m.invalidated = append(m.invalidated, zoneID)
	return nil
}

func (m *memStore) InvalidateAllCache() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones = nil
	m.data = map[string]model.ZoneData{}
	m.invalidated = append(m.invalidated, "all")
	return nil
}

func (m *memStore) Comments(zoneID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.comments[zoneID] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) SetComment(zoneID, key, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.comments[zoneID] == nil {
		m.comments[zoneID] = map[string]string{}
	}
	m.comments[zoneID][key] = comment
	return nil
}

func (m *memStore) DeleteComment(zoneID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.comments[zoneID], key)
	return nil
}
