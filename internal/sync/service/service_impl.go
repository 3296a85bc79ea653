package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/groupsync/internal/clock"
	commercedomain "github.com/smallbiznis/groupsync/internal/commerce/domain"
	"github.com/smallbiznis/groupsync/internal/config"
	journaldomain "github.com/smallbiznis/groupsync/internal/journal/domain"
	obsmetrics "github.com/smallbiznis/groupsync/internal/observability/metrics"
	platformdomain "github.com/smallbiznis/groupsync/internal/platform/domain"
	"github.com/smallbiznis/groupsync/internal/sync/applier"
	syncdomain "github.com/smallbiznis/groupsync/internal/sync/domain"
	"github.com/smallbiznis/groupsync/internal/sync/normalizer"
	"github.com/smallbiznis/groupsync/internal/sync/resolver"
	"github.com/smallbiznis/groupsync/internal/sync/rules"
	"github.com/smallbiznis/groupsync/internal/userlock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	normalizer *normalizer.Normalizer
	resolver   *resolver.Resolver
	rules      *rules.Engine
	applier    *applier.Applier

	policy  *config.SyncPolicyHolder
	locker  userlock.Locker
	journal journaldomain.Repository
	metrics *obsmetrics.Metrics
}

type Params struct {
	fx.In

	DB    *gorm.DB `optional:"true"`
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	Commerce   commercedomain.Provider
	Membership platformdomain.Membership
	Policy     *config.SyncPolicyHolder
	Locker     userlock.Locker
	Journal    journaldomain.Repository `optional:"true"`
	Metrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewService(p Params) syncdomain.Service {
	log := p.Log.Named("sync.service")
	return &Service{
		db:    p.DB,
		log:   log,
		genID: p.GenID,
		clock: p.Clock,

		normalizer: normalizer.New(),
		resolver:   resolver.New(p.Commerce, p.Log),
		rules:      rules.New(p.Commerce, p.Log),
		applier:    applier.New(p.Membership, p.Policy, p.Log),

		policy:  p.Policy,
		locker:  p.Locker,
		journal: p.Journal,
		metrics: p.Metrics,
	}
}

// HandleCommerceEvent runs the full pipeline for one event: normalize,
// resolve, expand, apply, journal. Stages run strictly in sequence and the
// command batch is applied in order; an event is the unit of work and a
// command is the unit of failure.
func (s *Service) HandleCommerceEvent(ctx context.Context, event syncdomain.CommerceEvent) (syncdomain.ProcessingResult, error) {
	if prior, ok, err := s.findPriorDelivery(ctx, event); err != nil {
		return syncdomain.ProcessingResult{}, err
	} else if ok {
		s.log.Info("duplicate delivery, replay suppressed",
			zap.String("source", event.Source),
			zap.String("delivery_id", event.DeliveryID),
		)
		s.metrics.RecordEvent(ctx, string(event.Type), "duplicate")
		return prior, nil
	}

	req, err := s.normalizer.Normalize(event)
	if err != nil {
		s.metrics.RecordEvent(ctx, string(event.Type), "invalid")
		return syncdomain.ProcessingResult{}, err
	}

	entitlements, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		s.metrics.RecordEvent(ctx, string(event.Type), "error")
		return syncdomain.ProcessingResult{}, fmt.Errorf("resolve %s: %w", event.Type, err)
	}

	result := syncdomain.ProcessingResult{}
	if len(entitlements) > 0 {
		unlock, err := s.lockUser(ctx, entitlements[0].UserID)
		if err != nil {
			s.metrics.RecordEvent(ctx, string(event.Type), "error")
			return syncdomain.ProcessingResult{}, fmt.Errorf("acquire user lock: %w", err)
		}
		defer unlock()

		commands := make([]syncdomain.MembershipCommand, 0, len(entitlements))
		for _, ent := range entitlements {
			expanded, err := s.rules.Expand(ctx, ent)
			if err != nil {
				s.metrics.RecordEvent(ctx, string(event.Type), "error")
				return syncdomain.ProcessingResult{}, fmt.Errorf("expand rules for product %s: %w", ent.ProductID, err)
			}
			commands = append(commands, expanded...)
		}

		result = s.applier.Apply(ctx, commands)
	}

	s.recordDelivery(ctx, event, result)
	s.metrics.RecordEvent(ctx, string(event.Type), "ok")
	s.metrics.RecordCommands(ctx, result.CommandsApplied, result.CommandsSkipped, result.CommandsFailed)

	s.log.Info("event processed",
		zap.String("event_type", string(event.Type)),
		zap.Int("entitlements", len(entitlements)),
		zap.Int("applied", result.CommandsApplied),
		zap.Int("skipped", result.CommandsSkipped),
		zap.Int("failed", result.CommandsFailed),
	)
	return result, nil
}

func (s *Service) lockUser(ctx context.Context, userID string) (userlock.UnlockFunc, error) {
	unlock, err := s.locker.Lock(ctx, userID, s.policy.Get().LockTTL)
	if err != nil {
		return nil, err
	}
	return unlock, nil
}

// findPriorDelivery reports whether the delivery was already processed and,
// if so, replays its recorded outcome.
func (s *Service) findPriorDelivery(ctx context.Context, event syncdomain.CommerceEvent) (syncdomain.ProcessingResult, bool, error) {
	if s.db == nil || s.journal == nil || event.DeliveryID == "" {
		return syncdomain.ProcessingResult{}, false, nil
	}

	prior, err := s.journal.FindByDedupeKey(ctx, s.db, event.Source, event.DeliveryID)
	if err != nil {
		return syncdomain.ProcessingResult{}, false, err
	}
	if prior == nil {
		return syncdomain.ProcessingResult{}, false, nil
	}

	result := syncdomain.ProcessingResult{
		CommandsApplied: prior.CommandsApplied,
		CommandsSkipped: prior.CommandsSkipped,
		CommandsFailed:  prior.CommandsFailed,
		Duplicate:       true,
	}
	if len(prior.Failures) > 0 {
		_ = json.Unmarshal(prior.Failures, &result.Failures)
	}
	return result, true, nil
}

// recordDelivery journals the processed delivery. Failure to journal is
// logged but never fails the event: membership changes were already applied.
func (s *Service) recordDelivery(ctx context.Context, event syncdomain.CommerceEvent, result syncdomain.ProcessingResult) {
	if s.db == nil || s.journal == nil || event.DeliveryID == "" {
		return
	}

	var failures datatypes.JSON
	if len(result.Failures) > 0 {
		if raw, err := json.Marshal(result.Failures); err == nil {
			failures = raw
		}
	}

	payload := datatypes.JSONMap{}
	if raw, err := json.Marshal(event); err == nil {
		_ = json.Unmarshal(raw, (*map[string]any)(&payload))
	}

	delivery := &journaldomain.Delivery{
		ID:              s.genID.Generate(),
		Source:          event.Source,
		DeliveryID:      event.DeliveryID,
		EventType:       string(event.Type),
		Payload:         payload,
		CommandsApplied: result.CommandsApplied,
		CommandsSkipped: result.CommandsSkipped,
		CommandsFailed:  result.CommandsFailed,
		Failures:        failures,
		ProcessedAt:     s.clock.Now(),
	}

	if err := s.journal.Insert(ctx, s.db, delivery); err != nil {
		if errors.Is(err, journaldomain.ErrDuplicateDelivery) {
			s.log.Warn("delivery journaled concurrently",
				zap.String("source", event.Source),
				zap.String("delivery_id", event.DeliveryID),
			)
			return
		}
		s.log.Error("journal write failed", zap.Error(err))
	}
}
