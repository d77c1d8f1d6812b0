package sizemodel

import "fmt"

// Decision is what the size policy recommends for a capture.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionOffer
	DecisionSuggest
	DecisionRequire
)

func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionOffer:
		return "offer"
	case DecisionSuggest:
		return "suggest"
	case DecisionRequire:
		return "require"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Policy holds the tunable thresholds, all in bytes.
type Policy struct {
	OfferAbove   int64
	SuggestAbove int64
	RequireAbove int64
	TargetBytes  int64
	// ResampleCeiling bounds inputs the decode-resample path will load.
	ResampleCeiling int64
}

func DefaultPolicy() Policy {
	return Policy{
		OfferAbove:      25 * MB,
		SuggestAbove:    50 * MB,
		RequireAbove:    200 * MB,
		TargetBytes:     25 * MiB,
		ResampleCeiling: 150 * MB,
	}
}

// Decide maps a byte size onto the threshold bands.
func (p Policy) Decide(byteSize int64) Decision {
	switch {
	case byteSize >= p.RequireAbove:
		return DecisionRequire
	case byteSize >= p.SuggestAbove:
		return DecisionSuggest
	case byteSize >= p.OfferAbove:
		return DecisionOffer
	default:
		return DecisionNone
	}
}

func (p Policy) Validate() error {
	if p.TargetBytes <= 0 {
		return fmt.Errorf("target size must be positive")
	}
	if !(p.OfferAbove <= p.SuggestAbove && p.SuggestAbove <= p.RequireAbove) {
		return fmt.Errorf("thresholds must be ordered offer <= suggest <= require")
	}
	return nil
}
