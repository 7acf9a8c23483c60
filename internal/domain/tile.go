package domain

import "math"

// Classification buckets an instrument by its percentage change.
type Classification int

const (
	ClassNeutral Classification = iota
	ClassGain
	ClassStrongGain
	ClassLoss
	ClassStrongLoss
)

// Classification thresholds applied to ChangePct.
const (
	ThresholdStrongGain = 3.0
	ThresholdMildGain   = 0.5
	ThresholdMildLoss   = -0.5
	ThresholdStrongLoss = -3.0
)

func (c Classification) String() string {
	switch c {
	case ClassStrongGain:
		return "STRONG_GAIN"
	case ClassGain:
		return "GAIN"
	case ClassLoss:
		return "LOSS"
	case ClassStrongLoss:
		return "STRONG_LOSS"
	default:
		return "NEUTRAL"
	}
}

// Classify maps a percentage change to its bucket.
func Classify(changePct float64) Classification {
	switch {
	case changePct >= ThresholdStrongGain:
		return ClassStrongGain
	case changePct >= ThresholdMildGain:
		return ClassGain
	case changePct <= ThresholdStrongLoss:
		return ClassStrongLoss
	case changePct <= ThresholdMildLoss:
		return ClassLoss
	default:
		return ClassNeutral
	}
}

// SessionStatus is the market-openness state shown per instrument.
type SessionStatus int

const (
	SessionClosed SessionStatus = iota
	SessionOpen
	SessionPre
	SessionPost
	SessionStandby
)

func (s SessionStatus) String() string {
	switch s {
	case SessionOpen:
		return "OPEN"
	case SessionPre:
		return "PRE"
	case SessionPost:
		return "POST"
	case SessionStandby:
		return "STANDBY"
	default:
		return "CLOSED"
	}
}

// TileState holds the current price state of a single instrument.
// One TileState exists per catalog entry for the process lifetime;
// it is mutated in place by the engine loop and copied out for readers.
type TileState struct {
	Ticker           string         `json:"ticker"`
	Price            float64        `json:"price"`
	BasePrice        float64        `json:"base_price"`
	ChangePct        float64        `json:"change_pct"`
	IsLive           bool           `json:"is_live"`
	Classification   Classification `json:"classification"`
	SessionStatus    SessionStatus  `json:"session_status"`
	LastUpdateUnixMs int64          `json:"last_update"`
}

// ApplyChangePct sets a new percentage change and recomputes the price
// from the base price. Price is never compounded tick over tick, so
// repeated writes cannot drift away from BasePrice.
func (t *TileState) ApplyChangePct(changePct float64, nowMs int64) {
	t.ChangePct = changePct
	t.Price = t.BasePrice * (1 + changePct/100)
	t.Classification = Classify(changePct)
	t.LastUpdateUnixMs = nowMs
}

// ApplyQuote overwrites the tile from a live sample. A positive prior
// close replaces the base price. When the provider percent is absent or
// not finite the change is derived from price against the base.
func (t *TileState) ApplyQuote(price, priorClose float64, providerPct *float64, nowMs int64) {
	if priorClose > 0 {
		t.BasePrice = priorClose
	}
	t.Price = price
	if providerPct != nil && !math.IsNaN(*providerPct) && !math.IsInf(*providerPct, 0) {
		t.ChangePct = *providerPct
	} else if t.BasePrice > 0 {
		t.ChangePct = (price - t.BasePrice) / t.BasePrice * 100
	} else {
		t.ChangePct = 0
	}
	t.Classification = Classify(t.ChangePct)
	t.LastUpdateUnixMs = nowMs
}
