package attribution

import (
	"errors"
	"fmt"
	"math"
	"time"

	"customerIntel/domain"
)

var ErrUnknownModel = errors.New("unknown attribution model")

// position-based split: first, interior share, last
const (
	positionFirstWeight  = 0.4
	positionMiddleWeight = 0.2
	positionLastWeight   = 0.4
)

var modelInfo = []domain.ModelInfo{
	{Model: domain.ModelFirstTouch, Name: "First Touch", Description: "All credit to the first touchpoint in the window."},
	{Model: domain.ModelLastTouch, Name: "Last Touch", Description: "All credit to the touchpoint right before the conversion."},
	{Model: domain.ModelLinear, Name: "Linear", Description: "Equal credit to every touchpoint."},
	{Model: domain.ModelTimeDecay, Name: "Time Decay", Description: "Credit halves for every half-life between touch and conversion."},
	{Model: domain.ModelPositionBased, Name: "Position Based (U-Shaped)", Description: "40% first, 40% last, 20% split across the middle."},
	{Model: domain.ModelDataDriven, Name: "Data Driven", Description: "Credit proportional to channel effectiveness."},
}

// comparedModels are the models a comparison runs. Data-driven is left out.
var comparedModels = []domain.AttributionModel{
	domain.ModelFirstTouch,
	domain.ModelLastTouch,
	domain.ModelLinear,
	domain.ModelTimeDecay,
	domain.ModelPositionBased,
}

func Models() []domain.ModelInfo {
	out := make([]domain.ModelInfo, len(modelInfo))
	copy(out, modelInfo)
	return out
}

func ModelName(m domain.AttributionModel) string {
	for _, info := range modelInfo {
		if info.Model == m {
			return info.Name
		}
	}
	return string(m)
}

// ParseModel rejects anything outside the supported set.
func ParseModel(s string) (domain.AttributionModel, error) {
	m := domain.AttributionModel(s)
	for _, info := range modelInfo {
		if info.Model == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
}

func positionOf(i, n int) domain.TouchPosition {
	switch {
	case i == 0:
		return domain.PositionFirst
	case i == n-1:
		return domain.PositionLast
	default:
		return domain.PositionMiddle
	}
}

func credit(tp domain.Touchpoint, weight, value float64, pos domain.TouchPosition) domain.AttributedTouchpoint {
	return domain.AttributedTouchpoint{
		Touchpoint:           tp,
		Weight:               weight,
		AttributedValue:      value * weight,
		AttributedConversion: weight,
		Position:             pos,
	}
}

// Allocate splits one conversion's credit across touchpoints ordered oldest
// first. An empty journey gets no credit.
func Allocate(model domain.AttributionModel, touchpoints []domain.Touchpoint, value float64, convertedAt time.Time, halfLifeDays float64) ([]domain.AttributedTouchpoint, error) {
	n := len(touchpoints)
	if n == 0 {
		return []domain.AttributedTouchpoint{}, nil
	}

	switch model {
	case domain.ModelFirstTouch:
		return []domain.AttributedTouchpoint{credit(touchpoints[0], 1, value, domain.PositionFirst)}, nil

	case domain.ModelLastTouch:
		return []domain.AttributedTouchpoint{credit(touchpoints[n-1], 1, value, positionOf(n-1, n))}, nil

	case domain.ModelLinear:
		return weighted(touchpoints, value, func(int) float64 { return 1 }), nil

	case domain.ModelTimeDecay:
		if halfLifeDays <= 0 {
			halfLifeDays = DefaultHalfLifeDays
		}
		return weighted(touchpoints, value, func(i int) float64 {
			days := math.Floor(convertedAt.Sub(touchpoints[i].OccurredAt).Hours() / 24)
			return math.Pow(2, -days/halfLifeDays)
		}), nil

	case domain.ModelPositionBased:
		return positionBased(touchpoints, value), nil

	case domain.ModelDataDriven:
		return weighted(touchpoints, value, func(i int) float64 {
			return channelScore(touchpoints[i].Channel)
		}), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
}

// weighted normalizes raw scores into weights summing to one.
func weighted(touchpoints []domain.Touchpoint, value float64, score func(i int) float64) []domain.AttributedTouchpoint {
	n := len(touchpoints)
	raw := make([]float64, n)
	var total float64
	for i := range touchpoints {
		raw[i] = score(i)
		total += raw[i]
	}

	out := make([]domain.AttributedTouchpoint, n)
	for i, tp := range touchpoints {
		w := 1 / float64(n)
		if total > 0 {
			w = raw[i] / total
		}
		out[i] = credit(tp, w, value, positionOf(i, n))
	}
	return out
}

func positionBased(touchpoints []domain.Touchpoint, value float64) []domain.AttributedTouchpoint {
	n := len(touchpoints)
	switch n {
	case 1:
		return []domain.AttributedTouchpoint{credit(touchpoints[0], 1, value, domain.PositionFirst)}
	case 2:
		return []domain.AttributedTouchpoint{
			credit(touchpoints[0], 0.5, value, domain.PositionFirst),
			credit(touchpoints[1], 0.5, value, domain.PositionLast),
		}
	}

	middle := positionMiddleWeight / float64(n-2)
	out := make([]domain.AttributedTouchpoint, n)
	for i, tp := range touchpoints {
		w := middle
		switch i {
		case 0:
			w = positionFirstWeight
		case n - 1:
			w = positionLastWeight
		}
		out[i] = credit(tp, w, value, positionOf(i, n))
	}
	return out
}
