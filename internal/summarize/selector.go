package summarize

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lifewrapped/lw-engine/internal/model"
)

// Policy is the tier-selection policy, built once from configuration and
// passed in explicitly so selection stays deterministic and testable.
type Policy struct {
	// Order is the preference order tiers are evaluated in.
	Order []model.EngineTier
	// PrivateOnly excludes the external tier entirely. Forcing a tier does
	// not override this: sending audio-derived text off-device without
	// consent is never permitted.
	PrivateOnly bool
	// FallbackToBasic permits the pipeline to degrade to the basic tier
	// after a selected engine fails. Degrading to any other tier is not a
	// thing: silently switching providers has privacy implications.
	FallbackToBasic bool
}

// Selector picks the summarization engine for a run.
type Selector struct {
	engines map[model.EngineTier]Engine
	policy  Policy
	log     zerolog.Logger
}

// NewSelector builds a selector over the registered engines. The basic engine
// must be among them; it is the universal fallback.
func NewSelector(policy Policy, engines []Engine, log zerolog.Logger) *Selector {
	m := make(map[model.EngineTier]Engine, len(engines))
	for _, e := range engines {
		m[e.Tier()] = e
	}
	return &Selector{engines: m, policy: policy, log: log}
}

// Policy returns the selection policy in effect.
func (s *Selector) Policy() Policy { return s.policy }

// Select returns the engine for this run. forced, when non-empty, bypasses
// the preference order but not the privacy exclusion. With no applicable tier
// the basic engine is returned: it performs local extraction with no external
// dependency and is never unavailable.
func (s *Selector) Select(ctx context.Context, forced model.EngineTier) (Engine, error) {
	if forced != "" {
		if !forced.Valid() {
			return nil, fmt.Errorf("unknown tier %q", forced)
		}
		if forced == model.TierExternal && s.policy.PrivateOnly {
			return nil, model.NewNotAvailable(model.StateSelectingTier,
				"external tier excluded by privacy preference")
		}
		eng, ok := s.engines[forced]
		if !ok || !eng.Available(ctx) {
			return nil, model.NewNotAvailable(model.StateSelectingTier,
				fmt.Sprintf("%s tier is not available", forced))
		}
		return eng, nil
	}

	for _, tier := range s.policy.Order {
		if tier == model.TierExternal && s.policy.PrivateOnly {
			s.log.Debug().Msg("skipping external tier: privacy preference")
			continue
		}
		eng, ok := s.engines[tier]
		if !ok {
			continue
		}
		if !eng.Available(ctx) {
			s.log.Debug().Str("tier", string(tier)).Msg("tier not available, trying next")
			continue
		}
		return eng, nil
	}

	// Universal fallback.
	eng, ok := s.engines[model.TierBasic]
	if !ok {
		return nil, fmt.Errorf("basic engine not registered")
	}
	return eng, nil
}

// Basic returns the registered basic engine, used for explicit
// fallback-after-failure when the policy allows it.
func (s *Selector) Basic() Engine { return s.engines[model.TierBasic] }
