// internal/scoring/engine.go
package scoring

import (
	"dealflow-workers/internal/models"
)

// Composite floors applied when a soft geography gate fires.
const (
	preferredGateMultiplier = 0.6
	preferredGateFloor      = 30
	minimalGateMultiplier   = 0.25
	minimalGateFloor        = 50
)

// ScoreInputs carries score parts computed outside the engine: capped
// engagement points, the thesis-alignment bonus from the extraction
// service, deal-team adjustments, and the learning penalty from
// historical pass decisions (0 down to -LearningPenaltyMax).
type ScoreInputs struct {
	EngagementPoints     int `json:"engagementPoints"`
	ThesisAlignmentBonus int `json:"thesisAlignmentBonus"`
	KPIBonus             int `json:"kpiBonus"`
	CustomBonus          int `json:"customBonus"`
	LearningPenalty      int `json:"learningPenalty"`
}

// Engine computes buyer-deal fit scores. It is pure: no I/O, no clock,
// no randomness, so identical inputs always produce identical scores.
// Callers stamp ScoreID and ScoredAt on the result before persisting.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Score runs the full pipeline: hard gates, weighted base score, soft
// geography handling, bonuses, clamping, tier and review flags. A
// disqualified pairing still yields a complete row with every component
// filled in; only the composite is zeroed.
func (e *Engine) Score(buyer models.BuyerCriteria, deal models.DealListing, inputs ScoreInputs, cfg models.WeightConfig) models.Score {
	tolerance := cfg.SizeTolerancePct
	if tolerance <= 0 {
		tolerance = 0.20
	}

	sizeGate := e.sizeGate(buyer, deal, tolerance)
	serviceGate := e.serviceGate(buyer, deal)
	geoGate := e.geographyGate(buyer, deal)

	sizeFit := e.sizeFitSubScore(buyer, deal, tolerance)
	dataQuality := clampSubScore(deal.DataCompleteness)
	motivation := clampSubScore(deal.MotivationScore)
	engagement := clampSubScore(inputs.EngagementPoints)

	base := float64(sizeFit)*float64(cfg.SizeFitWeight)/100 +
		float64(dataQuality)*float64(cfg.DataQualityWeight)/100 +
		float64(motivation)*float64(cfg.MotivationWeight)/100 +
		float64(engagement)*float64(cfg.EngagementWeight)/100

	thesisBonus := e.thesisBonus(buyer, inputs.ThesisAlignmentBonus, cfg.ThesisBonusCap)
	dataQualityBonus := e.dataQualityBonus(deal.DataCompleteness, cfg.DataQualityBonusCap)
	kpiBonus := clampNonNegative(inputs.KPIBonus)
	customBonus := clampNonNegative(inputs.CustomBonus)
	penalty := e.learningPenalty(inputs.LearningPenalty, cfg.LearningPenaltyMax)

	score := models.Score{
		BuyerID:              buyer.BuyerID,
		ListingID:            deal.ListingID,
		SizeGate:             sizeGate,
		ServiceGate:          serviceGate,
		GeographyGate:        geoGate,
		SizeFitScore:         sizeFit,
		DataQualityScore:     dataQuality,
		MotivationScore:      motivation,
		EngagementScore:      engagement,
		ThesisAlignmentBonus: thesisBonus,
		DataQualityBonus:     dataQualityBonus,
		KPIBonus:             kpiBonus,
		CustomBonus:          customBonus,
		LearningPenalty:      penalty,
		WeightConfigID:       cfg.ID,
		Confidence:           e.confidence(deal.DataCompleteness, inputs.EngagementPoints),
	}

	if reason := disqualifyReason(sizeGate, serviceGate, geoGate); reason != "" {
		score.IsDisqualified = true
		score.DisqualificationReason = reason
		score.CompositeScore = 0
		score.Tier = models.TierF
		return score
	}

	gated := base * sizeGate * serviceGate * geoGate
	switch geoGate {
	case preferredGateMultiplier:
		if gated < preferredGateFloor {
			gated = preferredGateFloor
		}
	case minimalGateMultiplier:
		if gated < minimalGateFloor {
			gated = minimalGateFloor
		}
	}

	composite := gated + float64(thesisBonus) + float64(dataQualityBonus) +
		float64(kpiBonus) + float64(customBonus) + float64(penalty)

	score.CompositeScore = clampComposite(composite)
	score.Tier = tierFor(score.CompositeScore)
	score.NeedsReview = e.needsReview(score.CompositeScore, score.Confidence, deal.DataCompleteness)

	return score
}

// sizeGate returns 0 when revenue or EBITDA sits outside the buyer's
// bounds by more than the tolerance, 1 otherwise. A zero bound means
// the buyer expressed no limit on that side and can never disqualify.
func (e *Engine) sizeGate(buyer models.BuyerCriteria, deal models.DealListing, tolerance float64) float64 {
	if !withinBounds(deal.Revenue, buyer.RevenueMin, buyer.RevenueMax, tolerance) {
		return 0
	}
	if !withinBounds(deal.EBITDA, buyer.EBITDAMin, buyer.EBITDAMax, tolerance) {
		return 0
	}
	return 1
}

func withinBounds(value, min, max int64, tolerance float64) bool {
	if min > 0 && float64(value) < float64(min)*(1-tolerance) {
		return false
	}
	if max > 0 && float64(value) > float64(max)*(1+tolerance) {
		return false
	}
	return true
}

// serviceGate returns 0 when none of the deal's categories relate to
// the buyer's target services, directly or through the adjacency map.
// A buyer with no target services has no preference.
func (e *Engine) serviceGate(buyer models.BuyerCriteria, deal models.DealListing) float64 {
	if len(buyer.TargetServices) == 0 {
		return 1
	}
	if servicesOverlap(deal.AllCategories(), buyer.TargetServices) {
		return 1
	}
	return 0
}

// geographyGate maps a geography miss through the buyer's declared
// mode: critical kills the score, preferred and minimal soften it.
func (e *Engine) geographyGate(buyer models.BuyerCriteria, deal models.DealListing) float64 {
	if len(buyer.TargetGeographies) == 0 {
		return 1
	}
	if geographyOverlap(deal.Location, buyer.TargetGeographies) {
		return 1
	}

	switch buyer.GeographyMode {
	case models.GeographyModePreferred:
		return preferredGateMultiplier
	case models.GeographyModeMinimal:
		return minimalGateMultiplier
	default:
		// critical, or an unset mode treated as critical
		return 0
	}
}

// sizeFitSubScore measures how well the deal sits inside the buyer's
// financial range: centered deals score toward 100, deals at the edges
// toward 50, tolerance-band deals 35, and out-of-bounds deals 10.
// Metrics with no bounds contribute a neutral 50.
func (e *Engine) sizeFitSubScore(buyer models.BuyerCriteria, deal models.DealListing, tolerance float64) int {
	revenueBounded := buyer.RevenueMin > 0 || buyer.RevenueMax > 0
	ebitdaBounded := buyer.EBITDAMin > 0 || buyer.EBITDAMax > 0

	if !revenueBounded && !ebitdaBounded {
		return 50
	}

	total, count := 0, 0
	if revenueBounded {
		total += metricFit(deal.Revenue, buyer.RevenueMin, buyer.RevenueMax, tolerance)
		count++
	}
	if ebitdaBounded {
		total += metricFit(deal.EBITDA, buyer.EBITDAMin, buyer.EBITDAMax, tolerance)
		count++
	}
	return total / count
}

func metricFit(value, min, max int64, tolerance float64) int {
	if min > 0 && max > min {
		if value >= min && value <= max {
			center := (min + max) / 2
			half := (max - min) / 2
			dist := value - center
			if dist < 0 {
				dist = -dist
			}
			return 100 - int(50*float64(dist)/float64(half)+0.5)
		}
		if withinBounds(value, min, max, tolerance) {
			return 35
		}
		return 10
	}

	// One-sided bound: inside is a solid fit, the tolerance band a
	// marginal one.
	switch {
	case min > 0 && value >= min, max > 0 && value <= max && min == 0:
		return 75
	case withinBounds(value, min, max, tolerance):
		return 35
	default:
		return 10
	}
}

func (e *Engine) thesisBonus(buyer models.BuyerCriteria, bonus, cap int) int {
	// A thesis under 50 characters is boilerplate, not a thesis.
	if len(buyer.ThesisText) <= 50 {
		return 0
	}
	if cap <= 0 {
		cap = 20
	}
	if bonus < 0 {
		return 0
	}
	if bonus > cap {
		return cap
	}
	return bonus
}

func (e *Engine) dataQualityBonus(completeness, cap int) int {
	if cap <= 0 {
		cap = 10
	}
	var bonus int
	switch {
	case completeness >= 95:
		bonus = 10
	case completeness >= 90:
		bonus = 8
	case completeness >= 80:
		bonus = 5
	case completeness >= 70:
		bonus = 2
	default:
		bonus = 0
	}
	if bonus > cap {
		bonus = cap
	}
	return bonus
}

func (e *Engine) learningPenalty(penalty, maxPenalty int) int {
	if maxPenalty <= 0 {
		maxPenalty = 25
	}
	if penalty > 0 {
		return 0
	}
	if penalty < -maxPenalty {
		return -maxPenalty
	}
	return penalty
}

func (e *Engine) confidence(completeness, engagementPoints int) string {
	switch {
	case completeness >= 80 && engagementPoints > 0:
		return models.ConfidenceHigh
	case completeness < 50:
		return models.ConfidenceLow
	default:
		return models.ConfidenceMedium
	}
}

// needsReview flags mid-band scores we are not confident about and any
// deal too sparse to trust at all.
func (e *Engine) needsReview(composite int, confidence string, completeness int) bool {
	if completeness < 40 {
		return true
	}
	return composite >= 50 && composite <= 65 && confidence == models.ConfidenceLow
}

func disqualifyReason(sizeGate, serviceGate, geoGate float64) string {
	switch {
	case sizeGate == 0:
		return models.DisqualifySizeMismatch
	case serviceGate == 0:
		return models.DisqualifyServiceMismatch
	case geoGate == 0:
		return models.DisqualifyGeographyMismatch
	default:
		return ""
	}
}

// TierFor maps a composite score to its letter tier. Exposed for
// callers that need to cross-check a tier against a score without
// running the full engine.
func TierFor(composite int) string {
	return tierFor(composite)
}

func tierFor(composite int) string {
	switch {
	case composite >= 85:
		return models.TierA
	case composite >= 70:
		return models.TierB
	case composite >= 55:
		return models.TierC
	case composite >= 40:
		return models.TierD
	default:
		return models.TierF
	}
}

func clampSubScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clampComposite(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v + 0.5)
}
