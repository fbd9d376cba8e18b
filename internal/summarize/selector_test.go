package summarize

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifewrapped/lw-engine/internal/model"
)

// fakeEngine lets tests control availability per tier.
type fakeEngine struct {
	tier      model.EngineTier
	available bool
}

func (f *fakeEngine) Tier() model.EngineTier             { return f.tier }
func (f *fakeEngine) Name() string                       { return "fake:" + string(f.tier) }
func (f *fakeEngine) Available(ctx context.Context) bool { return f.available }
func (f *fakeEngine) Phase() string                      { return "faking it" }
func (f *fakeEngine) Summarize(ctx context.Context, t *model.Transcript, lang string, p ProgressFunc) (*model.SummaryResult, error) {
	return &model.SummaryResult{Text: "fake", Tier: f.tier, GeneratedAt: time.Now()}, nil
}

func defaultOrder() []model.EngineTier {
	return []model.EngineTier{model.TierExternal, model.TierPlatform, model.TierLocal, model.TierBasic}
}

func TestSelect(t *testing.T) {
	ctx := context.Background()

	t.Run("first_available_tier_wins", func(t *testing.T) {
		s := NewSelector(Policy{Order: defaultOrder()}, []Engine{
			&fakeEngine{tier: model.TierExternal, available: true},
			&fakeEngine{tier: model.TierPlatform, available: true},
			NewBasicEngine(),
		}, zerolog.Nop())
		eng, err := s.Select(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if eng.Tier() != model.TierExternal {
			t.Errorf("tier = %s, want external", eng.Tier())
		}
	})

	t.Run("privacy_excludes_external", func(t *testing.T) {
		s := NewSelector(Policy{Order: defaultOrder(), PrivateOnly: true}, []Engine{
			&fakeEngine{tier: model.TierExternal, available: true},
			&fakeEngine{tier: model.TierPlatform, available: true},
			NewBasicEngine(),
		}, zerolog.Nop())
		eng, err := s.Select(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if eng.Tier() != model.TierPlatform {
			t.Errorf("tier = %s, want platform", eng.Tier())
		}
	})

	t.Run("falls_through_unavailable_tiers_to_basic", func(t *testing.T) {
		// Privacy excludes external; local and platform are down.
		// Nothing applicable means basic, always.
		s := NewSelector(Policy{Order: defaultOrder(), PrivateOnly: true}, []Engine{
			&fakeEngine{tier: model.TierExternal, available: true},
			&fakeEngine{tier: model.TierPlatform, available: false},
			&fakeEngine{tier: model.TierLocal, available: false},
			NewBasicEngine(),
		}, zerolog.Nop())
		eng, err := s.Select(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if eng.Tier() != model.TierBasic {
			t.Errorf("tier = %s, want basic", eng.Tier())
		}
	})

	t.Run("basic_fallback_when_order_exhausted", func(t *testing.T) {
		s := NewSelector(Policy{Order: []model.EngineTier{model.TierPlatform}}, []Engine{
			&fakeEngine{tier: model.TierPlatform, available: false},
			NewBasicEngine(),
		}, zerolog.Nop())
		eng, err := s.Select(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if eng.Tier() != model.TierBasic {
			t.Errorf("tier = %s, want basic", eng.Tier())
		}
	})

	t.Run("forced_tier_bypasses_order", func(t *testing.T) {
		s := NewSelector(Policy{Order: defaultOrder()}, []Engine{
			&fakeEngine{tier: model.TierExternal, available: true},
			&fakeEngine{tier: model.TierLocal, available: true},
			NewBasicEngine(),
		}, zerolog.Nop())
		eng, err := s.Select(ctx, model.TierLocal)
		if err != nil {
			t.Fatal(err)
		}
		if eng.Tier() != model.TierLocal {
			t.Errorf("tier = %s, want local", eng.Tier())
		}
	})

	t.Run("forced_external_still_blocked_by_privacy", func(t *testing.T) {
		s := NewSelector(Policy{Order: defaultOrder(), PrivateOnly: true}, []Engine{
			&fakeEngine{tier: model.TierExternal, available: true},
			NewBasicEngine(),
		}, zerolog.Nop())
		_, err := s.Select(ctx, model.TierExternal)
		if model.KindOf(err) != model.ErrNotAvailable {
			t.Errorf("err = %v, want not_available", err)
		}
	})

	t.Run("forced_unavailable_tier_errors", func(t *testing.T) {
		s := NewSelector(Policy{Order: defaultOrder()}, []Engine{
			&fakeEngine{tier: model.TierPlatform, available: false},
			NewBasicEngine(),
		}, zerolog.Nop())
		_, err := s.Select(ctx, model.TierPlatform)
		if model.KindOf(err) != model.ErrNotAvailable {
			t.Errorf("err = %v, want not_available", err)
		}
	})
}
