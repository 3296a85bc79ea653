// Package applier executes membership commands against the discussion
// platform, in order, with per-command failure isolation.
package applier

import (
	"context"
	"errors"
	"time"

	commercedomain "github.com/smallbiznis/groupsync/internal/commerce/domain"
	"github.com/smallbiznis/groupsync/internal/config"
	platformdomain "github.com/smallbiznis/groupsync/internal/platform/domain"
	syncdomain "github.com/smallbiznis/groupsync/internal/sync/domain"
	"go.uber.org/zap"
)

// errUnknownAction marks a rule whose action is neither add nor remove.
// The command is permanently unprocessable and skipped.
var errUnknownAction = errors.New("unknown_membership_action")

type Applier struct {
	membership platformdomain.Membership
	policy     *config.SyncPolicyHolder
	log        *zap.Logger
}

func New(membership platformdomain.Membership, policy *config.SyncPolicyHolder, log *zap.Logger) *Applier {
	return &Applier{
		membership: membership,
		policy:     policy,
		log:        log.Named("sync.applier"),
	}
}

// Apply runs the commands sequentially. Order is part of the contract:
// conflicting rules for the same group rely on the later command overwriting
// the earlier one. A command whose target does not exist is skipped; a
// command that keeps failing transiently is recorded as failed. Neither
// aborts the rest of the batch.
func (a *Applier) Apply(ctx context.Context, commands []syncdomain.MembershipCommand) syncdomain.ProcessingResult {
	var result syncdomain.ProcessingResult

	for _, cmd := range commands {
		err := a.applyOne(ctx, cmd)
		switch {
		case err == nil:
			result.CommandsApplied++
		case errors.Is(err, platformdomain.ErrUserNotFound), errors.Is(err, platformdomain.ErrGroupNotFound), errors.Is(err, errUnknownAction):
			a.log.Warn("skipping command, target unknown to platform",
				zap.String("user_id", cmd.UserID),
				zap.String("group_id", cmd.GroupID),
				zap.String("action", string(cmd.Action)),
				zap.Error(err),
			)
			result.CommandsSkipped++
			result.Failures = append(result.Failures, syncdomain.CommandFailure{
				Command: cmd,
				Kind:    syncdomain.FailureSkipped,
				Reason:  err.Error(),
			})
		default:
			a.log.Error("command failed after retries",
				zap.String("user_id", cmd.UserID),
				zap.String("group_id", cmd.GroupID),
				zap.String("action", string(cmd.Action)),
				zap.Error(err),
			)
			result.CommandsFailed++
			result.Failures = append(result.Failures, syncdomain.CommandFailure{
				Command: cmd,
				Kind:    syncdomain.FailureFailed,
				Reason:  err.Error(),
			})
		}
	}

	return result
}

// applyOne retries transient failures with a bounded attempt budget taken
// from the live sync policy. Target-absence errors are permanent and
// returned immediately.
func (a *Applier) applyOne(ctx context.Context, cmd syncdomain.MembershipCommand) error {
	policy := a.policy.Get()

	var lastErr error
	for attempt := 1; attempt <= policy.RetryAttempts; attempt++ {
		var err error
		switch cmd.Action {
		case commercedomain.RuleActionAdd:
			err = a.membership.AddUserToGroup(ctx, cmd.UserID, cmd.GroupID)
		case commercedomain.RuleActionRemove:
			err = a.membership.RemoveUserFromGroup(ctx, cmd.UserID, cmd.GroupID)
		default:
			return errUnknownAction
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, platformdomain.ErrUserNotFound) || errors.Is(err, platformdomain.ErrGroupNotFound) {
			return err
		}

		lastErr = err
		if attempt == policy.RetryAttempts {
			break
		}
		a.log.Debug("transient failure, retrying",
			zap.String("group_id", cmd.GroupID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(policy.RetryDelay):
		}
	}
	return lastErr
}
