package duplicate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"customerIntel/business/customer"
	"customerIntel/domain"
	"customerIntel/pkg/logger"
	"customerIntel/pkg/metrics"
)

const (
	ThresholdHigh   = 0.90
	ThresholdMedium = 0.70
	ThresholdLow    = 0.50

	// an exact phone collision outside any email group counts as definite
	phoneGroupScore = 0.95

	locationSampleSize = 100
	statsGroupLimit    = 1000
	defaultGroupLimit  = 100
	defaultMergeLimit  = 50
)

var (
	ErrMatchNotFound = errors.New("duplicate match not found")
	ErrGroupTooSmall = errors.New("duplicate group needs at least two customers")
)

// Location is a country and city pair holding more than one named profile.
type Location struct {
	CountryCode string
	City        string
}

// ---- Repository interfaces ----

// DuplicateRepository reads analyzable profiles only, most orders first.
type DuplicateRepository interface {
	FindByID(ctx context.Context, id uint) (domain.CustomerProfile, bool, error)
	FindByEmailHash(ctx context.Context, hash string) ([]domain.CustomerProfile, error)
	FindByPhoneHash(ctx context.Context, hash string) ([]domain.CustomerProfile, error)
	FindByDevice(ctx context.Context, deviceID string) ([]domain.CustomerProfile, error)
	// FindInLocation filters on the non-empty parts of loc.
	FindInLocation(ctx context.Context, loc Location, limit int) ([]domain.CustomerProfile, error)

	SharedEmailHashes(ctx context.Context, limit int) ([]string, error)
	SharedPhoneHashes(ctx context.Context, limit int) ([]string, error)
	LocationClusters(ctx context.Context, limit int) ([]Location, error)
	CountAnalyzable(ctx context.Context) (int64, error)

	UpsertMatch(ctx context.Context, m *domain.DuplicateMatch) error
	FindMatch(ctx context.Context, id uint) (domain.DuplicateMatch, bool, error)
	SaveMatch(ctx context.Context, m *domain.DuplicateMatch) error
	// ResolvePair sets the status of a stored pair; a missing pair is not an error.
	ResolvePair(ctx context.Context, idA, idB uint, status domain.MatchStatus, at time.Time) error
	CountMatches(ctx context.Context, status domain.MatchStatus) (int64, error)
}

// Merger performs the physical merge of one profile into another.
type Merger interface {
	Merge(ctx context.Context, sourceID, targetID uint) (domain.CustomerProfile, error)
}

// ---- Service ----

type Config struct {
	Threshold  float64
	GroupLimit int
}

type DuplicateService struct {
	repo   DuplicateRepository
	merger Merger
	cipher customer.PIICipher
	cfg    Config
	now    func() time.Time
}

func NewDuplicateService(repo DuplicateRepository, merger Merger, cipher customer.PIICipher, cfg Config) *DuplicateService {
	if cfg.Threshold <= 0 {
		cfg.Threshold = ThresholdMedium
	}
	if cfg.GroupLimit <= 0 {
		cfg.GroupLimit = defaultGroupLimit
	}
	return &DuplicateService{repo: repo, merger: merger, cipher: cipher, cfg: cfg, now: time.Now}
}

func (s *DuplicateService) subject(p domain.CustomerProfile) (Subject, error) {
	name, err := customer.FullName(p, s.cipher)
	if err != nil {
		return Subject{}, fmt.Errorf("decrypt name of customer %d: %w", p.ID, err)
	}
	return Subject{Profile: p, Name: name}, nil
}

func (s *DuplicateService) subjects(profiles []domain.CustomerProfile) ([]Subject, error) {
	out := make([]Subject, 0, len(profiles))
	for _, p := range profiles {
		sub, err := s.subject(p)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func candidate(p domain.CustomerProfile, score float64, t domain.MatchType) domain.DuplicateCandidate {
	return domain.DuplicateCandidate{
		Customer:   p,
		Score:      round4(score),
		MatchType:  t,
		Confidence: domain.MatchConfidenceFor(score),
		Band:       domain.BandFor(score),
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// FindForCustomer returns candidate duplicates of one profile scoring at
// least threshold, best first. Email collisions are always returned.
func (s *DuplicateService) FindForCustomer(ctx context.Context, customerID uint, threshold float64) ([]domain.DuplicateCandidate, error) {
	if threshold <= 0 {
		threshold = s.cfg.Threshold
	}
	p, ok, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, customer.ErrNotFound
	}
	subj, err := s.subject(p)
	if err != nil {
		return nil, err
	}

	var out []domain.DuplicateCandidate
	seen := map[uint]bool{p.ID: true}
	collect := func(profiles []domain.CustomerProfile, t domain.MatchType, keep func(domain.CustomerProfile) bool) error {
		for _, other := range profiles {
			if seen[other.ID] || (keep != nil && !keep(other)) {
				continue
			}
			sub, err := s.subject(other)
			if err != nil {
				return err
			}
			score := Score(subj, sub)
			if t != domain.MatchExactEmail && score < threshold {
				continue
			}
			seen[other.ID] = true
			out = append(out, candidate(other, score, t))
		}
		return nil
	}

	if p.EmailHash != "" {
		matches, err := s.repo.FindByEmailHash(ctx, p.EmailHash)
		if err != nil {
			return nil, err
		}
		if err := collect(matches, domain.MatchExactEmail, nil); err != nil {
			return nil, err
		}
	}

	if p.PhoneHash != "" {
		matches, err := s.repo.FindByPhoneHash(ctx, p.PhoneHash)
		if err != nil {
			return nil, err
		}
		differentEmail := func(o domain.CustomerProfile) bool { return !sameEmail(p, o) }
		if err := collect(matches, domain.MatchExactPhone, differentEmail); err != nil {
			return nil, err
		}
	}

	if subj.Name != "" {
		matches, err := s.repo.FindInLocation(ctx, Location{CountryCode: p.CountryCode, City: p.City}, locationSampleSize)
		if err != nil {
			return nil, err
		}
		if err := collect(matches, domain.MatchFuzzyNameLocation, nil); err != nil {
			return nil, err
		}
	}

	for device := range deviceSet(p) {
		matches, err := s.repo.FindByDevice(ctx, device)
		if err != nil {
			return nil, err
		}
		if err := collect(matches, domain.MatchDeviceOverlap, nil); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if out == nil {
		out = []domain.DuplicateCandidate{}
	}
	return out, nil
}

// newGroup orders members so the profile with the most orders leads.
func newGroup(t domain.MatchType, score float64, members []domain.CustomerProfile) domain.DuplicateGroup {
	sort.SliceStable(members, func(i, j int) bool { return members[i].TotalOrders > members[j].TotalOrders })
	return domain.DuplicateGroup{
		MatchType:  t,
		Score:      round4(score),
		Confidence: domain.MatchConfidenceFor(score),
		Band:       domain.BandFor(score),
		Customers:  members,
		PrimaryID:  members[0].ID,
	}
}

type groupSet struct {
	groups  []domain.DuplicateGroup
	members map[uint]bool
}

func (g *groupSet) overlaps(profiles []domain.CustomerProfile) bool {
	for _, p := range profiles {
		if g.members[p.ID] {
			return true
		}
	}
	return false
}

func (g *groupSet) add(group domain.DuplicateGroup) {
	g.groups = append(g.groups, group)
	for _, p := range group.Customers {
		g.members[p.ID] = true
	}
}

// FindAll discovers duplicate groups across the population: shared email,
// then shared phone, then same name within one country and city. A profile
// belongs to at most one group.
func (s *DuplicateService) FindAll(ctx context.Context, threshold float64, limit int) ([]domain.DuplicateGroup, error) {
	if threshold <= 0 {
		threshold = s.cfg.Threshold
	}
	if limit <= 0 {
		limit = s.cfg.GroupLimit
	}
	set := &groupSet{members: make(map[uint]bool)}

	emails, err := s.repo.SharedEmailHashes(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, hash := range emails {
		members, err := s.repo.FindByEmailHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		if len(members) > 1 && !set.overlaps(members) {
			set.add(newGroup(domain.MatchExactEmail, 1, members))
		}
	}

	phones, err := s.repo.SharedPhoneHashes(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, hash := range phones {
		members, err := s.repo.FindByPhoneHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		if len(members) > 1 && !set.overlaps(members) {
			set.add(newGroup(domain.MatchExactPhone, phoneGroupScore, members))
		}
	}

	clusters, err := s.repo.LocationClusters(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, loc := range clusters {
		groups, err := s.nameGroups(ctx, loc, threshold)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			if !set.overlaps(g.Customers) {
				set.add(g)
			}
		}
	}

	out := set.groups
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []domain.DuplicateGroup{}
	}
	return out, nil
}

// nameGroups splits one location cluster by exact full name and keeps the
// groups whose average pairwise score reaches threshold.
func (s *DuplicateService) nameGroups(ctx context.Context, loc Location, threshold float64) ([]domain.DuplicateGroup, error) {
	members, err := s.repo.FindInLocation(ctx, loc, 0)
	if err != nil {
		return nil, err
	}
	subs, err := s.subjects(members)
	if err != nil {
		return nil, err
	}

	byName := make(map[string][]Subject)
	var names []string
	for _, sub := range subs {
		if sub.Name == "" {
			continue
		}
		if _, ok := byName[sub.Name]; !ok {
			names = append(names, sub.Name)
		}
		byName[sub.Name] = append(byName[sub.Name], sub)
	}

	var groups []domain.DuplicateGroup
	for _, name := range names {
		same := byName[name]
		if len(same) < 2 {
			continue
		}
		score := averagePairScore(same)
		if score < threshold {
			continue
		}
		profiles := make([]domain.CustomerProfile, 0, len(same))
		for _, sub := range same {
			profiles = append(profiles, sub.Profile)
		}
		groups = append(groups, newGroup(domain.MatchFuzzyNameLocation, score, profiles))
	}
	return groups, nil
}

func averagePairScore(subs []Subject) float64 {
	var sum float64
	pairs := 0
	for i := 0; i < len(subs)-1; i++ {
		for j := i + 1; j < len(subs); j++ {
			sum += Score(subs[i], subs[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// StoreMatch upserts the pair in canonical order.
func (s *DuplicateService) StoreMatch(ctx context.Context, idA, idB uint, score float64, t domain.MatchType, fields []string) (domain.DuplicateMatch, error) {
	m := domain.NewDuplicateMatch(idA, idB, round4(score), t, fields)
	if err := s.repo.UpsertMatch(ctx, &m); err != nil {
		return domain.DuplicateMatch{}, err
	}
	return m, nil
}

func (s *DuplicateService) Dismiss(ctx context.Context, matchID uint) (domain.DuplicateMatch, error) {
	m, ok, err := s.repo.FindMatch(ctx, matchID)
	if err != nil {
		return domain.DuplicateMatch{}, err
	}
	if !ok {
		return domain.DuplicateMatch{}, ErrMatchNotFound
	}

	now := s.now()
	m.Status = domain.MatchDismissed
	m.ResolvedAt = &now
	if err := s.repo.SaveMatch(ctx, &m); err != nil {
		return domain.DuplicateMatch{}, err
	}
	return m, nil
}

func (s *DuplicateService) Statistics(ctx context.Context) (domain.DuplicateStats, error) {
	total, err := s.repo.CountAnalyzable(ctx)
	if err != nil {
		return domain.DuplicateStats{}, err
	}
	pending, err := s.repo.CountMatches(ctx, domain.MatchPending)
	if err != nil {
		return domain.DuplicateStats{}, err
	}
	groups, err := s.FindAll(ctx, ThresholdMedium, statsGroupLimit)
	if err != nil {
		return domain.DuplicateStats{}, err
	}

	stats := domain.DuplicateStats{
		TotalGroups: len(groups),
		ByConfidence: map[domain.Confidence]int{
			domain.ConfidenceHigh:   0,
			domain.ConfidenceMedium: 0,
			domain.ConfidenceLow:    0,
		},
		ByType:         make(map[domain.MatchType]int),
		TotalCustomers: total,
		PendingMatches: pending,
	}
	for _, g := range groups {
		stats.ByConfidence[g.Confidence]++
		stats.ByType[g.MatchType]++
		stats.PotentialDuplicates += len(g.Customers) - 1
		if g.Band == domain.BandDefinite {
			stats.AutoMergeableGroups++
		}
	}
	if total > 0 {
		stats.DuplicatePercentage = math.Round(float64(stats.PotentialDuplicates)/float64(total)*1000) / 10
	}
	return stats, nil
}

// mergeGroup folds every member into the group's primary profile.
func (s *DuplicateService) mergeGroup(ctx context.Context, g domain.DuplicateGroup) (int, error) {
	if len(g.Customers) < 2 {
		return 0, ErrGroupTooSmall
	}
	merged := 0
	now := s.now()
	for _, p := range g.Customers {
		if p.ID == g.PrimaryID {
			continue
		}
		if _, err := s.merger.Merge(ctx, p.ID, g.PrimaryID); err != nil {
			return merged, fmt.Errorf("merge %d into %d: %w", p.ID, g.PrimaryID, err)
		}
		merged++
		if err := s.repo.ResolvePair(ctx, p.ID, g.PrimaryID, domain.MatchMerged, now); err != nil {
			logger.Warn("duplicate match status update failed", "customer_id", p.ID, "error", err)
		}
	}
	return merged, nil
}

// AutoMerge merges the groups in the definite band only. A failing group is
// logged and counted; the remaining groups still run.
func (s *DuplicateService) AutoMerge(ctx context.Context, limit int) (domain.AutoMergeResult, error) {
	if limit <= 0 {
		limit = defaultMergeLimit
	}
	groups, err := s.FindAll(ctx, ThresholdHigh, limit)
	if err != nil {
		return domain.AutoMergeResult{}, err
	}

	var res domain.AutoMergeResult
	for _, g := range groups {
		if g.Band != domain.BandDefinite || len(g.Customers) < 2 {
			res.Skipped++
			continue
		}
		merged, err := s.mergeGroup(ctx, g)
		res.Merged += merged
		if err != nil {
			logger.Error("auto-merge failed", "match_type", g.MatchType, "primary_id", g.PrimaryID, "error", err)
			res.Errors++
		}
	}

	logger.Info("auto-merge finished", "merged", res.Merged, "skipped", res.Skipped, "errors", res.Errors)
	return res, nil
}

// ScanAndStore finds all groups and records every member pair as a match.
func (s *DuplicateService) ScanAndStore(ctx context.Context) (domain.BatchResult, error) {
	started := time.Now()
	var res domain.BatchResult

	groups, err := s.FindAll(ctx, s.cfg.Threshold, s.cfg.GroupLimit)
	if err != nil {
		return res, err
	}

	for _, g := range groups {
		subs, err := s.subjects(g.Customers)
		if err != nil {
			logger.Warn("duplicate scan skipped group", "primary_id", g.PrimaryID, "error", err)
			res.Errors++
			continue
		}
		for i := 0; i < len(subs)-1; i++ {
			for j := i + 1; j < len(subs); j++ {
				a, b := subs[i], subs[j]
				score := Score(a, b)
				if g.MatchType == domain.MatchExactPhone {
					score = math.Max(score, phoneGroupScore)
				}
				if _, err := s.StoreMatch(ctx, a.Profile.ID, b.Profile.ID, score, g.MatchType, MatchedFields(a, b)); err != nil {
					logger.Warn("duplicate match store failed", "customer_id", a.Profile.ID, "other_id", b.Profile.ID, "error", err)
					res.Errors++
					continue
				}
				res.Updated++
			}
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}

	metrics.ObserveBatch("duplicates", res.Updated, res.Errors)
	metrics.BatchDuration.WithLabelValues("duplicates").Observe(time.Since(started).Seconds())
	logger.Info("duplicate scan finished", "groups", len(groups), "updated", res.Updated, "errors", res.Errors)

	return res, nil
}
