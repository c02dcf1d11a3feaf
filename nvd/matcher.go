package nvd

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/quay/zlog"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/pkg/cpe"
)

// Store is the graph surface the matcher writes through. Software versions
// are identified by their vendor:product:version key, vulnerabilities by
// their description.
type Store interface {
	CVEExists(ctx context.Context, id string) (bool, error)
	SoftwareVersionExists(ctx context.Context, key string) (bool, error)
	CreateVulnerability(ctx context.Context, description string) error
	LinkVulnerabilityToVersion(ctx context.Context, description, versionKey string) error
	CreateCVE(ctx context.Context, rec *Record) error
	UpdateCVE(ctx context.Context, rec *Record) error
	LinkCVEToVulnerability(ctx context.Context, cveID, description string) error
	VersionsOfProduct(ctx context.Context, productKey string) ([]string, error)
}

// Matcher links CVE records to the software versions already present in the
// graph. The client is only consulted for cpematch expansions of unbounded
// wildcard criteria.
type Matcher struct {
	store  Store
	client *Client
}

// NewMatcher returns a Matcher over the store and client.
func NewMatcher(store Store, client *Client) *Matcher {
	return &Matcher{store: store, client: client}
}

// MoveCVEData stores the records and links each one to the software version
// it was searched for, then walks the applicability statements to link any
// other stored versions the record covers. Per-criteria problems are logged
// and skipped; store errors on the main path abort.
func (m *Matcher) MoveCVEData(ctx context.Context, recs []*Record, versionKey string) error {
	const op = `nvd/Matcher.MoveCVEData`
	ctx = zlog.ContextWithValues(ctx, "component", op, "version", versionKey)
	var created, updated int
	for _, rec := range recs {
		desc := "Assumed vulnerability with ID " + rec.ID
		exists, err := m.store.CVEExists(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("checking %s: %w", rec.ID, err)
		}
		// The flag tracks whether a vulnerability node for this record
		// was made during this call; the criteria walk creates one
		// lazily the first time it links.
		vulnerabilityCreated := false
		if !exists {
			if err := m.store.CreateVulnerability(ctx, desc); err != nil {
				return fmt.Errorf("creating vulnerability for %s: %w", rec.ID, err)
			}
			if err := m.store.LinkVulnerabilityToVersion(ctx, desc, versionKey); err != nil {
				return fmt.Errorf("linking vulnerability for %s: %w", rec.ID, err)
			}
			if err := m.store.CreateCVE(ctx, rec); err != nil {
				return fmt.Errorf("creating %s: %w", rec.ID, err)
			}
			if err := m.store.LinkCVEToVulnerability(ctx, rec.ID, desc); err != nil {
				return fmt.Errorf("linking %s: %w", rec.ID, err)
			}
			vulnerabilityCreated = true
			created++
		} else {
			if err := m.store.UpdateCVE(ctx, rec); err != nil {
				return fmt.Errorf("updating %s: %w", rec.ID, err)
			}
			if err := m.store.LinkVulnerabilityToVersion(ctx, desc, versionKey); err != nil {
				return fmt.Errorf("linking vulnerability for %s: %w", rec.ID, err)
			}
			updated++
		}
		m.processConfigurations(ctx, rec, desc, vulnerabilityCreated)
	}
	zlog.Info(ctx).
		Int("created", created).
		Int("updated", updated).
		Msg("stored CVE records")
	return nil
}

// processConfigurations walks the applicability statements of a record. An
// AND statement must be exactly two OR nodes, with the vulnerable node
// deciding which criteria are processed; anything deeper is skipped.
func (m *Matcher) processConfigurations(ctx context.Context, rec *Record, desc string, created bool) {
	for _, cfg := range rec.Configurations {
		switch {
		case cfg.Operator == "AND":
			if len(cfg.Nodes) != 2 {
				zlog.Warn(ctx).
					Str("cve", rec.ID).
					Int("nodes", len(cfg.Nodes)).
					Msg("AND configuration without exactly two nodes")
				continue
			}
			if cfg.Nodes[0].Operator != "OR" || cfg.Nodes[1].Operator != "OR" {
				zlog.Warn(ctx).
					Str("cve", rec.ID).
					Msg("configuration nested deeper than one level")
				continue
			}
			node := cfg.Nodes[1]
			if len(cfg.Nodes[0].CPEMatch) != 0 && cfg.Nodes[0].CPEMatch[0].Vulnerable {
				node = cfg.Nodes[0]
			}
			for i := range node.CPEMatch {
				created = m.processCPEMatch(ctx, &node.CPEMatch[i], desc, created)
			}
		default:
			for _, node := range cfg.Nodes {
				if node.Operator != "OR" {
					continue
				}
				for i := range node.CPEMatch {
					created = m.processCPEMatch(ctx, &node.CPEMatch[i], desc, created)
				}
			}
		}
	}
}

// processCPEMatch links the stored software versions one criteria covers.
// Failures are logged and leave the graph as-is. Returns whether a
// vulnerability node exists after the call.
func (m *Matcher) processCPEMatch(ctx context.Context, cm *CPEMatch, desc string, created bool) bool {
	id, err := cpe.FromString(cm.Criteria)
	if err != nil {
		zlog.Warn(ctx).Err(err).Str("criteria", cm.Criteria).Msg("skipping criteria")
		return created
	}
	link := func(key string) bool {
		if !created {
			if err := m.store.CreateVulnerability(ctx, desc); err != nil {
				zlog.Warn(ctx).Err(err).Msg("creating vulnerability")
				return false
			}
			created = true
		}
		if err := m.store.LinkVulnerabilityToVersion(ctx, desc, key); err != nil {
			zlog.Warn(ctx).Err(err).Str("key", key).Msg("linking version")
		}
		return true
	}
	// Versions pinned past minor get a major.minor alias link as well.
	if strings.Count(id.Version, ".") > 1 {
		fs := strings.SplitN(id.Version, ".", 3)
		link(id.ProductKey() + ":" + fs[0] + "." + fs[1])
	}
	for _, key := range []string{
		id.Key(),
		id.ProductKey() + ":*",
		id.Vendor + ":*:*",
	} {
		ok, err := m.store.SoftwareVersionExists(ctx, key)
		if err != nil {
			zlog.Warn(ctx).Err(err).Str("key", key).Msg("checking version")
			continue
		}
		if ok {
			link(key)
		}
	}
	if id.Version != "*" {
		return created
	}
	// Wildcard criteria: test every stored version of the product against
	// the bounds.
	keys, err := m.store.VersionsOfProduct(ctx, id.ProductKey())
	if err != nil {
		zlog.Warn(ctx).Err(err).Str("product", id.ProductKey()).Msg("listing versions")
		return created
	}
	for _, key := range keys {
		possible := key[strings.LastIndex(key, ":")+1:]
		ok, err := m.checkRanges(ctx, cm, possible)
		if err != nil {
			zlog.Warn(ctx).Err(err).Str("key", key).Msg("skipping version")
			continue
		}
		if ok {
			link(key)
		}
	}
	return created
}

// checkRanges reports whether version falls inside the criteria's bounds.
// When the criteria carries no bounds at all, the cpematch expansion decides
// by exact version equality.
func (m *Matcher) checkRanges(ctx context.Context, cm *CPEMatch, version string) (bool, error) {
	const op = `nvd/Matcher.checkRanges`
	id, err := cpe.FromString(cm.Criteria)
	if err != nil {
		return false, err
	}
	if id.Version != "*" {
		return false, &casm.Error{
			Kind:    casm.ErrBadInput,
			Op:      op,
			Message: fmt.Sprintf("criteria %q pins a version", cm.Criteria),
		}
	}
	bounded := cm.VersionStartIncluding != "" || cm.VersionStartExcluding != "" ||
		cm.VersionEndIncluding != "" || cm.VersionEndExcluding != ""
	if !bounded {
		page, err := m.client.MatchData(ctx, cm.MatchCriteriaID)
		if err != nil {
			return false, err
		}
		for _, ms := range page.MatchStrings {
			for _, match := range ms.MatchString.Matches {
				mid, err := cpe.FromString(match.CPEName)
				if err != nil {
					continue
				}
				if mid.Version == version {
					return true, nil
				}
			}
		}
		return false, nil
	}
	cur, err := semver.NewVersion(version)
	if err != nil {
		return false, err
	}
	if b := cm.VersionStartIncluding; b != "" {
		cond, err := semver.NewVersion(b)
		if err != nil {
			return false, err
		}
		if cur.LessThan(cond) {
			return false, nil
		}
	}
	if b := cm.VersionStartExcluding; b != "" {
		cond, err := semver.NewVersion(b)
		if err != nil {
			return false, err
		}
		if cur.LessThan(cond) || cur.Equal(cond) {
			return false, nil
		}
	}
	if b := cm.VersionEndIncluding; b != "" {
		cond, err := semver.NewVersion(b)
		if err != nil {
			return false, err
		}
		if cur.GreaterThan(cond) {
			return false, nil
		}
	}
	if b := cm.VersionEndExcluding; b != "" {
		cond, err := semver.NewVersion(b)
		if err != nil {
			return false, err
		}
		if cur.GreaterThan(cond) || cur.Equal(cond) {
			return false, nil
		}
	}
	return true, nil
}
