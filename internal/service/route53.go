package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/google/uuid"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"

	"dnsmanager/internal/config"
	"dnsmanager/internal/dnsrecord"
	"dnsmanager/internal/failure"
	"dnsmanager/internal/metrics"
	"dnsmanager/internal/model"
)

const (
	zoneTypeMaster = "master"
	changeComment  = "Changed via dnsmanager"
	defaultRetry   = time.Second
)

// route53API is the part of the Route53 client the backend calls.
type route53API interface {
	ListHostedZones(ctx context.Context, params *route53.ListHostedZonesInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error)
	GetHostedZone(ctx context.Context, params *route53.GetHostedZoneInput, optFns ...func(*route53.Options)) (*route53.GetHostedZoneOutput, error)
	CreateHostedZone(ctx context.Context, params *route53.CreateHostedZoneInput, optFns ...func(*route53.Options)) (*route53.CreateHostedZoneOutput, error)
	ListResourceRecordSets(ctx context.Context, params *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
}

// Route53Backend serves zones from Route53 hosted zones. The hosted zone id
// is the zone "file".
type Route53Backend struct {
	client      route53API
	store       Store
	defaultTTL  int64
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
	log         *logrus.Entry

	mu      sync.RWMutex
	allowed map[string]string
}

func NewRoute53Backend(ctx context.Context, cfg *config.Config, store Store, log *logrus.Entry) (*Route53Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWS.Region)}
	if cfg.AWS.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newRoute53Backend(route53.NewFromConfig(awsCfg), cfg, store, log), nil
}

func newRoute53Backend(client route53API, cfg *config.Config, store Store, log *logrus.Entry) *Route53Backend {
	allowed := make(map[string]string)
	for _, z := range cfg.HostedZones {
		allowed[z.ID] = z.Label
	}
	return &Route53Backend{
		client:      client,
		store:       store,
		defaultTTL:  cfg.AWS.DefaultTTL,
		maxAttempts: cfg.MaxReloadAttempts,
		retryDelay:  defaultRetry,
		now:         time.Now,
		log:         log.WithField("component", "route53"),
		allowed:     allowed,
	}
}

func (b *Route53Backend) ListZones(ctx context.Context) ([]model.Zone, error) {
	cached, ok := b.store.GetCachedZones()
	metrics.CacheHit("zones", ok)
	if ok {
		zones := make([]model.Zone, 0, len(cached))
		for _, c := range cached {
			zones = append(zones, model.Zone{Name: c.Name, File: c.ZoneID, Type: zoneTypeMaster})
		}
		return zones, nil
	}

	zones := []model.Zone{}
	var rows []model.CachedZone
	input := &route53.ListHostedZonesInput{}
	for {
		out, err := b.client.ListHostedZones(ctx, input)
		if err != nil {
			return nil, awsFailure("list hosted zones", err)
		}
		for _, hz := range out.HostedZones {
			id := extractZoneID(aws.ToString(hz.Id))
			if !b.isAllowed(id) {
				continue
			}
			name := strings.TrimSuffix(aws.ToString(hz.Name), ".")
			zones = append(zones, model.Zone{Name: name, File: id, Type: zoneTypeMaster})
			rows = append(rows, model.CachedZone{ZoneID: id, Name: name})
		}
		if !out.IsTruncated {
			break
		}
		input.Marker = out.NextMarker
	}

	if err := b.store.CacheZones(rows); err != nil {
		b.log.WithError(err).Warn("failed to cache zone list")
	}
	return zones, nil
}

func (b *Route53Backend) CreateZone(ctx context.Context, nz model.NewZone) (model.Zone, error) {
	name := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(nz.Name), "."))
	if name == "" || strings.ContainsAny(name, " \t") {
		return model.Zone{}, failure.Validation("Invalid zone name")
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return model.Zone{}, failure.Validation("Invalid zone name")
	}
	switch nz.Type {
	case ZoneTypeForward:
	case ZoneTypeReverse:
		if !strings.HasSuffix(name, ".in-addr.arpa") && !strings.HasSuffix(name, ".ip6.arpa") {
			return model.Zone{}, failure.Validation("Reverse zone name must end in .in-addr.arpa or .ip6.arpa")
		}
	default:
		return model.Zone{}, failure.Validation("Invalid zone type")
	}

	existing, err := b.ListZones(ctx)
	if err != nil {
		return model.Zone{}, err
	}
	for _, z := range existing {
		if strings.EqualFold(z.Name, name) {
			return model.Zone{}, failure.Validation("Zone %s already exists", name)
		}
	}

	out, err := b.client.CreateHostedZone(ctx, &route53.CreateHostedZoneInput{
		Name:            aws.String(name),
		CallerReference: aws.String(uuid.NewString()),
		HostedZoneConfig: &types.HostedZoneConfig{
			Comment: aws.String(fmt.Sprintf("%s zone managed by dnsmanager", nz.Type)),
		},
	})
	if err != nil {
		return model.Zone{}, awsFailure("create hosted zone", err)
	}

	id := extractZoneID(aws.ToString(out.HostedZone.Id))
	b.mu.Lock()
	if len(b.allowed) > 0 {
		b.allowed[id] = name
		b.log.WithField("zone_id", id).Warn("zone added to the allow-list until restart; add it to hosted_zones to keep it")
	}
	b.mu.Unlock()

	if err := b.store.InvalidateZoneCache(); err != nil {
		b.log.WithError(err).Warn("failed to invalidate zone cache")
	}
	return model.Zone{Name: name, File: id, Type: zoneTypeMaster}, nil
}

func (b *Route53Backend) GetRecords(ctx context.Context, zoneID string) (model.ZoneData, error) {
	if !b.isAllowed(zoneID) {
		return model.ZoneData{}, zoneNotFound(zoneID)
	}
	zd, ok := b.store.GetCachedZoneData(zoneID)
	metrics.CacheHit("records", ok)
	if ok {
		return zd, nil
	}

	z, err := b.loadZone(ctx, zoneID)
	if err != nil {
		return model.ZoneData{}, err
	}
	if err := b.store.CacheZoneData(zoneID, z.data); err != nil {
		b.log.WithError(err).Warn("failed to cache zone data")
	}
	return z.data, nil
}

func (b *Route53Backend) AddRecord(ctx context.Context, zoneID string, rec dnsrecord.Record) (model.Serial, error) {
	if err := dnsrecord.Validate(rec); err != nil {
		return 0, err
	}
	var stored dnsrecord.Record
	serial, err := b.mutate(ctx, zoneID, func(z *zoneState, cs *changeSet) error {
		stored, _ = normalize(rec, z.origin)
		return cs.add(rec)
	})
	if err != nil {
		return 0, err
	}
	b.setComment(zoneID, stored)
	return serial, nil
}

func (b *Route53Backend) UpdateRecord(ctx context.Context, zoneID string, old, updated dnsrecord.Record) (model.Serial, error) {
	if err := dnsrecord.Validate(updated); err != nil {
		return 0, err
	}
	var before, after dnsrecord.Record
	serial, err := b.mutate(ctx, zoneID, func(z *zoneState, cs *changeSet) error {
		if !z.contains(old) || !cs.remove(old) {
			return failure.NotFound("Record not found")
		}
		before, _ = normalize(old, z.origin)
		after, _ = normalize(updated, z.origin)
		return cs.add(updated)
	})
	if err != nil {
		return 0, err
	}
	b.deleteComment(zoneID, before)
	b.setComment(zoneID, after)
	return serial, nil
}

func (b *Route53Backend) DeleteRecord(ctx context.Context, zoneID string, rec dnsrecord.Record) (model.Serial, error) {
	var stored dnsrecord.Record
	serial, err := b.mutate(ctx, zoneID, func(z *zoneState, cs *changeSet) error {
		if !z.contains(rec) || !cs.remove(rec) {
			return failure.NotFound("Record not found")
		}
		stored, _ = normalize(rec, z.origin)
		return nil
	})
	if err != nil {
		return 0, err
	}
	b.deleteComment(zoneID, stored)
	return serial, nil
}

// mutate reads the zone fresh from Route53, lets edit stage changes and
// submits them in one change batch together with the SOA serial bump.
func (b *Route53Backend) mutate(ctx context.Context, zoneID string, edit func(*zoneState, *changeSet) error) (model.Serial, error) {
	if !b.isAllowed(zoneID) {
		return 0, zoneNotFound(zoneID)
	}
	z, err := b.loadZone(ctx, zoneID)
	if err != nil {
		return 0, err
	}

	cs := newChangeSet(z, b.defaultTTL)
	if err := edit(z, cs); err != nil {
		return 0, err
	}

	serial := NextSerial(model.Serial(z.soa.Serial), b.now())
	changes := append(cs.changes(), z.soaChange(uint32(serial)))

	_, err = b.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String(changeComment),
			Changes: changes,
		},
	})
	if cerr := b.store.InvalidateRecordCache(zoneID); cerr != nil {
		b.log.WithError(cerr).Warn("failed to invalidate record cache")
	}
	if err != nil {
		return 0, awsFailure("change record sets", err)
	}
	return serial, nil
}

func (b *Route53Backend) ReloadZone(ctx context.Context, name string) (int, error) {
	zone, err := b.findZone(ctx, name)
	if err != nil {
		return 0, err
	}
	if err := b.store.InvalidateRecordCache(zone.File); err != nil {
		b.log.WithError(err).Warn("failed to invalidate record cache")
	}

	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		_, lastErr = b.client.GetHostedZone(ctx, &route53.GetHostedZoneInput{Id: aws.String(zone.File)})
		if lastErr == nil {
			metrics.ReloadAttempts.Observe(float64(attempt))
			return attempt, nil
		}
		var noZone *types.NoSuchHostedZone
		if errors.As(lastErr, &noZone) {
			return attempt, zoneNotFound(name)
		}
		b.log.WithError(lastErr).WithFields(logrus.Fields{"zone": name, "attempt": attempt}).Warn("zone reload check failed")
		if attempt < b.maxAttempts {
			select {
			case <-ctx.Done():
				return attempt, failure.Transport(ctx.Err())
			case <-time.After(b.retryDelay):
			}
		}
	}
	return b.maxAttempts, failure.Service(fmt.Sprintf("Zone reload failed after %d attempts", b.maxAttempts), lastErr)
}

func (b *Route53Backend) Restart(ctx context.Context) error {
	if err := b.store.InvalidateAllCache(); err != nil {
		return failure.Service("Failed to restart service", err)
	}
	b.log.Info("all caches dropped")
	return nil
}

// ValidateZone reads the zone fresh from Route53 and checks each plain
// record set: every value must parse, supported types must pass record
// validation, and a CNAME owner may hold no other data.
func (b *Route53Backend) ValidateZone(ctx context.Context, name string) (model.ZoneCheck, error) {
	zone, err := b.findZone(ctx, name)
	if err != nil {
		return model.ZoneCheck{}, err
	}
	z, err := b.loadZone(ctx, zone.File)
	if err != nil {
		return model.ZoneCheck{}, err
	}

	keys := make([]rrsetKey, 0, len(z.sets))
	owners := make(map[string][]types.RRType)
	for k := range z.sets {
		keys = append(keys, k)
		owners[k.name] = append(owners[k.name], k.rtype)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].rtype < keys[j].rtype
	})

	check := model.ZoneCheck{Zone: zone.Name, Errors: []string{}}
	for _, k := range keys {
		set := z.sets[k]
		if k.rtype == types.RRTypeCname && len(owners[k.name]) > 1 {
			check.Errors = append(check.Errors, fmt.Sprintf("%s: CNAME and other data", k.name))
		}
		for _, v := range set.ResourceRecords {
			value := aws.ToString(v.Value)
			rr, err := parseValue(set, value)
			if err != nil {
				check.Errors = append(check.Errors, fmt.Sprintf("%s %s %q: %v", k.name, k.rtype, value, err))
				continue
			}
			rec, ok := dnsrecord.FromRR(rr, z.origin)
			if !ok {
				continue
			}
			if err := dnsrecord.Validate(rec); err != nil {
				check.Errors = append(check.Errors, fmt.Sprintf("%s %s %q: %s", k.name, k.rtype, value, failure.Message(err)))
			}
		}
	}
	check.Valid = len(check.Errors) == 0
	b.log.WithFields(logrus.Fields{"zone": zone.Name, "errors": len(check.Errors)}).Debug("zone validated")
	return check, nil
}

func (b *Route53Backend) findZone(ctx context.Context, name string) (model.Zone, error) {
	want := strings.TrimSuffix(strings.TrimSpace(name), ".")
	zones, err := b.ListZones(ctx)
	if err != nil {
		return model.Zone{}, err
	}
	for _, z := range zones {
		if strings.EqualFold(z.Name, want) {
			return z, nil
		}
	}
	return model.Zone{}, zoneNotFound(name)
}

func (b *Route53Backend) setComment(zoneID string, rec dnsrecord.Record) {
	if rec.Comment == "" {
		return
	}
	if err := b.store.SetComment(zoneID, commentKey(rec), rec.Comment); err != nil {
		b.log.WithError(err).Warn("failed to store record comment")
	}
}

func (b *Route53Backend) deleteComment(zoneID string, rec dnsrecord.Record) {
	if err := b.store.DeleteComment(zoneID, commentKey(rec)); err != nil {
		b.log.WithError(err).Warn("failed to delete record comment")
	}
}

func (b *Route53Backend) isAllowed(zoneID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[zoneID]
	return ok
}

func zoneNotFound(zone string) error {
	return failure.NotFound(fmt.Sprintf("Zone %s not found", zone))
}

// awsFailure classifies a Route53 error. Provider messages for rejected
// input are passed through.
func awsFailure(op string, err error) error {
	var (
		noZone  *types.NoSuchHostedZone
		batch   *types.InvalidChangeBatch
		input   *types.InvalidInput
		domain  *types.InvalidDomainName
		exists  *types.HostedZoneAlreadyExists
		pending *types.PriorRequestNotComplete
	)
	switch {
	case errors.As(err, &noZone):
		return failure.NotFound("Zone not found")
	case errors.As(err, &batch):
		msg := batch.ErrorMessage()
		if len(batch.Messages) > 0 {
			msg = strings.Join(batch.Messages, "; ")
		}
		return failure.New(failure.KindValidation, msg, err)
	case errors.As(err, &input):
		return failure.New(failure.KindValidation, input.ErrorMessage(), err)
	case errors.As(err, &domain):
		return failure.New(failure.KindValidation, "Invalid zone name", err)
	case errors.As(err, &exists):
		return failure.New(failure.KindValidation, "Zone already exists", err)
	case errors.As(err, &pending):
		return failure.Service("A previous change is still in progress, try again", err)
	}
	return failure.Service(op+" failed", err)
}

func extractZoneID(fullID string) string {
	parts := strings.Split(fullID, "/")
	return parts[len(parts)-1]
}
