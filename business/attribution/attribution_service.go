package attribution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"customerIntel/domain"
	"customerIntel/pkg/logger"
)

const (
	DefaultWindowDays   = 30
	DefaultHalfLifeDays = 7.0

	// variance between models above which a channel gets an insight
	insightVariancePct = 20.0
	strongVariancePct  = 50.0
)

var (
	ErrConversionNotFound = errors.New("conversion event not found")
	ErrCustomerNotFound   = errors.New("customer not found")
)

// ---- Repository interfaces ----

type EventRepository interface {
	FindEvent(ctx context.Context, id uint) (domain.Event, bool, error)
	// EventsBetween returns a customer's events in [from, before) oldest first.
	EventsBetween(ctx context.Context, customerID uint, from, before time.Time) ([]domain.Event, error)
	// ConvertedEvents returns converted events created in [start, end].
	ConvertedEvents(ctx context.Context, tenantID *uint, start, end time.Time, positiveValueOnly bool) ([]domain.Event, error)
	CustomerEvents(ctx context.Context, customerID uint) ([]domain.Event, error)
	CustomerExists(ctx context.Context, customerID uint) (bool, error)
}

// ---- Service ----

type Config struct {
	WindowDays   int
	HalfLifeDays float64
}

type AttributionService struct {
	repo EventRepository
	cfg  Config
}

func NewAttributionService(repo EventRepository, cfg Config) *AttributionService {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultWindowDays
	}
	if cfg.HalfLifeDays <= 0 {
		cfg.HalfLifeDays = DefaultHalfLifeDays
	}
	return &AttributionService{repo: repo, cfg: cfg}
}

func toTouchpoint(e domain.Event) domain.Touchpoint {
	source := e.Source
	if source == "" {
		source = "direct"
	}
	return domain.Touchpoint{
		EventID:    e.ID,
		OccurredAt: e.OccurredAt,
		EventType:  e.Type,
		Channel:    EventChannel(e),
		Source:     source,
		Medium:     e.Medium,
		Campaign:   e.Campaign,
		Referrer:   e.Referrer,
		ClickIDs:   e.ClickIDs,
	}
}

// touchpoints loads the events of the converting customer inside the window
// strictly before the conversion.
func (s *AttributionService) touchpoints(ctx context.Context, conversion domain.Event) ([]domain.Touchpoint, error) {
	if conversion.CustomerID == nil {
		return []domain.Touchpoint{}, nil
	}
	from := conversion.OccurredAt.AddDate(0, 0, -s.cfg.WindowDays)
	events, err := s.repo.EventsBetween(ctx, *conversion.CustomerID, from, conversion.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("load touchpoints: %w", err)
	}
	out := make([]domain.Touchpoint, 0, len(events))
	for _, e := range events {
		out = append(out, toTouchpoint(e))
	}
	return out, nil
}

func (s *AttributionService) attribute(model domain.AttributionModel, conversion domain.Event, tps []domain.Touchpoint) (domain.Attribution, error) {
	attributed, err := Allocate(model, tps, conversion.ConversionValue, conversion.OccurredAt, s.cfg.HalfLifeDays)
	if err != nil {
		return domain.Attribution{}, err
	}
	return domain.Attribution{
		Model:             model,
		ConversionEventID: conversion.ID,
		ConversionValue:   conversion.ConversionValue,
		Touchpoints:       tps,
		Attributed:        attributed,
	}, nil
}

// Attribute returns the credit breakdown of one conversion event.
func (s *AttributionService) Attribute(ctx context.Context, conversionEventID uint, model domain.AttributionModel) (domain.Attribution, error) {
	conversion, ok, err := s.repo.FindEvent(ctx, conversionEventID)
	if err != nil {
		return domain.Attribution{}, err
	}
	if !ok {
		return domain.Attribution{}, ErrConversionNotFound
	}

	tps, err := s.touchpoints(ctx, conversion)
	if err != nil {
		return domain.Attribution{}, err
	}
	return s.attribute(model, conversion, tps)
}

type bucketSet map[string]*domain.ValueBucket

func (b bucketSet) add(key string, value, conversions float64) {
	bucket, ok := b[key]
	if !ok {
		bucket = &domain.ValueBucket{Key: key}
		b[key] = bucket
	}
	bucket.Value += value
	bucket.Conversions += conversions
}

func (b bucketSet) sorted() []domain.ValueBucket {
	out := make([]domain.ValueBucket, 0, len(b))
	for _, bucket := range b {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value == out[j].Value {
			return out[i].Key < out[j].Key
		}
		return out[i].Value > out[j].Value
	})
	return out
}

// CompareModels runs every compared model over the valued conversions of
// the range and flags channels whose credit swings between models.
func (s *AttributionService) CompareModels(ctx context.Context, start, end time.Time, tenantID *uint) (domain.ModelComparison, error) {
	conversions, err := s.repo.ConvertedEvents(ctx, tenantID, start, end, true)
	if err != nil {
		return domain.ModelComparison{}, fmt.Errorf("load conversions: %w", err)
	}

	var totalValue float64
	for _, c := range conversions {
		totalValue += c.ConversionValue
	}

	type modelBuckets struct{ channel, source, campaign bucketSet }
	buckets := make(map[domain.AttributionModel]*modelBuckets, len(comparedModels))
	for _, m := range comparedModels {
		buckets[m] = &modelBuckets{bucketSet{}, bucketSet{}, bucketSet{}}
	}

	for _, conversion := range conversions {
		tps, err := s.touchpoints(ctx, conversion)
		if err != nil {
			return domain.ModelComparison{}, err
		}
		for _, m := range comparedModels {
			attribution, err := s.attribute(m, conversion, tps)
			if err != nil {
				return domain.ModelComparison{}, err
			}
			b := buckets[m]
			for _, a := range attribution.Attributed {
				campaign := a.Campaign
				if campaign == "" {
					campaign = "none"
				}
				b.channel.add(string(a.Channel), a.AttributedValue, a.AttributedConversion)
				b.source.add(a.Source, a.AttributedValue, a.AttributedConversion)
				b.campaign.add(campaign, a.AttributedValue, a.AttributedConversion)
			}
		}
	}

	out := domain.ModelComparison{
		Start:            start,
		End:              end,
		WindowDays:       s.cfg.WindowDays,
		TotalConversions: len(conversions),
		TotalValue:       totalValue,
		Models:           make([]domain.ModelResult, 0, len(comparedModels)),
		ChannelValues:    map[string]map[domain.AttributionModel]float64{},
	}
	for _, m := range comparedModels {
		b := buckets[m]
		result := domain.ModelResult{
			Model:            m,
			ModelName:        ModelName(m),
			TotalConversions: len(conversions),
			TotalValue:       totalValue,
			ByChannel:        b.channel.sorted(),
			BySource:         b.source.sorted(),
			ByCampaign:       b.campaign.sorted(),
		}
		out.Models = append(out.Models, result)

		for _, bucket := range result.ByChannel {
			if out.ChannelValues[bucket.Key] == nil {
				out.ChannelValues[bucket.Key] = map[domain.AttributionModel]float64{}
			}
			out.ChannelValues[bucket.Key][m] = bucket.Value
		}
	}
	out.Insights = varianceInsights(out.ChannelValues)

	logger.Debug("attribution models compared", "conversions", len(conversions), "insights", len(out.Insights))
	return out, nil
}

// varianceInsights flags channels whose attributed value differs by more
// than 20% of its maximum across models.
func varianceInsights(values map[string]map[domain.AttributionModel]float64) []domain.ModelInsight {
	channels := make([]string, 0, len(values))
	for ch := range values {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	insights := []domain.ModelInsight{}
	for _, ch := range channels {
		byModel := values[ch]
		if len(byModel) < 2 {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range byModel {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi <= 0 {
			continue
		}
		variance := (hi - lo) / hi * 100
		if variance <= insightVariancePct {
			continue
		}

		rec := "Models are relatively consistent"
		if variance > strongVariancePct {
			rec = "Consider using multiple models for budgeting decisions"
		}
		rounded := math.Round(variance*10) / 10
		insights = append(insights, domain.ModelInsight{
			Type:           "channel_variance",
			Channel:        ch,
			VariancePct:    rounded,
			Message:        fmt.Sprintf("Channel '%s' shows %.1f%% variance between attribution models", ch, rounded),
			Recommendation: rec,
		})
	}
	return insights
}

// ChannelReport aggregates one model's credit per channel over a range.
func (s *AttributionService) ChannelReport(ctx context.Context, model domain.AttributionModel, start, end time.Time, tenantID *uint) (domain.ChannelReport, error) {
	conversions, err := s.repo.ConvertedEvents(ctx, tenantID, start, end, false)
	if err != nil {
		return domain.ChannelReport{}, fmt.Errorf("load conversions: %w", err)
	}

	rows := map[domain.Channel]*domain.ChannelReportRow{}
	for _, conversion := range conversions {
		tps, err := s.touchpoints(ctx, conversion)
		if err != nil {
			return domain.ChannelReport{}, err
		}
		attribution, err := s.attribute(model, conversion, tps)
		if err != nil {
			return domain.ChannelReport{}, err
		}

		for _, a := range attribution.Attributed {
			row, ok := rows[a.Channel]
			if !ok {
				row = &domain.ChannelReportRow{Channel: a.Channel}
				rows[a.Channel] = row
			}
			row.AttributedConversions += a.AttributedConversion
			row.Revenue += a.AttributedValue
			row.Touchpoints++
			switch a.Position {
			case domain.PositionFirst:
				row.FirstTouches++
			case domain.PositionLast:
				row.LastTouches++
			case domain.PositionMiddle:
				row.AssistedConversions++
			}
		}
	}

	report := domain.ChannelReport{
		Model:    model,
		Start:    start,
		End:      end,
		Channels: make([]domain.ChannelReportRow, 0, len(rows)),
	}
	for _, row := range rows {
		row.AttributedConversions = round2(row.AttributedConversions)
		if row.AttributedConversions > 0 {
			row.AvgTouchpoints = round2(float64(row.Touchpoints) / row.AttributedConversions)
		}
		if row.Revenue > 0 {
			row.ROAS = round2(row.Revenue / math.Max(1, float64(row.Touchpoints)))
		}
		report.Channels = append(report.Channels, *row)
	}
	sort.Slice(report.Channels, func(i, j int) bool {
		if report.Channels[i].Revenue == report.Channels[j].Revenue {
			return report.Channels[i].Channel < report.Channels[j].Channel
		}
		return report.Channels[i].Revenue > report.Channels[j].Revenue
	})
	return report, nil
}

// AnalyzeJourney lays out every event of a customer as an ordered path.
func (s *AttributionService) AnalyzeJourney(ctx context.Context, customerID uint) (domain.CustomerJourney, error) {
	exists, err := s.repo.CustomerExists(ctx, customerID)
	if err != nil {
		return domain.CustomerJourney{}, err
	}
	if !exists {
		return domain.CustomerJourney{}, ErrCustomerNotFound
	}

	events, err := s.repo.CustomerEvents(ctx, customerID)
	if err != nil {
		return domain.CustomerJourney{}, fmt.Errorf("load journey: %w", err)
	}

	journey := domain.CustomerJourney{
		CustomerID:          customerID,
		Path:                make([]domain.JourneyStep, 0, len(events)),
		ChannelDistribution: map[domain.Channel]int{},
		TotalTouchpoints:    len(events),
	}

	var firstConversion *time.Time
	for _, e := range events {
		tp := toTouchpoint(e)
		journey.Path = append(journey.Path, domain.JourneyStep{
			OccurredAt: e.OccurredAt,
			EventType:  e.Type,
			Channel:    tp.Channel,
			Source:     tp.Source,
			Campaign:   e.Campaign,
			PageURL:    e.PageURL,
			Converted:  e.IsConverted,
			Value:      e.ConversionValue,
		})
		journey.ChannelDistribution[tp.Channel]++
		if e.IsConverted {
			journey.TotalConversions++
			journey.TotalValue += e.ConversionValue
			if firstConversion == nil {
				at := e.OccurredAt
				firstConversion = &at
			}
		}
	}

	if n := len(journey.Path); n > 0 {
		first, last := journey.Path[0], journey.Path[n-1]
		journey.FirstTouch = &first
		journey.LastTouch = &last
		if firstConversion != nil {
			journey.AvgTimeToConversion = formatElapsed(firstConversion.Sub(first.OccurredAt))
		}
	}
	return journey, nil
}

// formatElapsed renders whole hours below one day, otherwise days with one decimal.
func formatElapsed(d time.Duration) string {
	hours := int(d.Hours())
	if hours < 24 {
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%.1f days", math.Round(float64(hours)/24*10)/10)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
