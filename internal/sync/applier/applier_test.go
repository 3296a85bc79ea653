package applier

import (
	"context"
	"fmt"
	"testing"

	commercedomain "github.com/smallbiznis/groupsync/internal/commerce/domain"
	"github.com/smallbiznis/groupsync/internal/config"
	platformdomain "github.com/smallbiznis/groupsync/internal/platform/domain"
	syncdomain "github.com/smallbiznis/groupsync/internal/sync/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeMembership tracks membership state and can simulate unknown targets
// and transient failures.
type fakeMembership struct {
	members       map[string]map[string]bool // groupID -> userID -> member
	unknownGroups map[string]bool
	unknownUsers  map[string]bool
	transient     map[string]int // groupID -> remaining failures
	calls         []string
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{
		members:       map[string]map[string]bool{},
		unknownGroups: map[string]bool{},
		unknownUsers:  map[string]bool{},
		transient:     map[string]int{},
	}
}

func (f *fakeMembership) check(userID, groupID string) error {
	if f.transient[groupID] > 0 {
		f.transient[groupID]--
		return fmt.Errorf("connection reset")
	}
	if f.unknownGroups[groupID] {
		return platformdomain.ErrGroupNotFound
	}
	if f.unknownUsers[userID] {
		return platformdomain.ErrUserNotFound
	}
	return nil
}

func (f *fakeMembership) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	f.calls = append(f.calls, "add:"+groupID+":"+userID)
	if err := f.check(userID, groupID); err != nil {
		return err
	}
	if f.members[groupID] == nil {
		f.members[groupID] = map[string]bool{}
	}
	f.members[groupID][userID] = true
	return nil
}

func (f *fakeMembership) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	f.calls = append(f.calls, "remove:"+groupID+":"+userID)
	if err := f.check(userID, groupID); err != nil {
		return err
	}
	delete(f.members[groupID], userID)
	return nil
}

func (f *fakeMembership) isMember(userID, groupID string) bool {
	return f.members[groupID][userID]
}

func testPolicy() *config.SyncPolicyHolder {
	return config.NewStaticSyncPolicyHolder(config.SyncPolicy{
		RetryAttempts:  3,
		RetryDelay:     0,
		RequestTimeout: 0,
		LockTTL:        1,
	})
}

func newApplier(membership *fakeMembership) *Applier {
	return New(membership, testPolicy(), zap.NewNop())
}

func TestApplyLastRuleWins(t *testing.T) {
	membership := newFakeMembership()

	result := newApplier(membership).Apply(context.Background(), []syncdomain.MembershipCommand{
		{UserID: "user-1", GroupID: "vip", Action: commercedomain.RuleActionAdd},
		{UserID: "user-1", GroupID: "vip", Action: commercedomain.RuleActionRemove},
	})

	require.Equal(t, 2, result.CommandsApplied)
	require.False(t, membership.isMember("user-1", "vip"))
	require.Equal(t, []string{"add:vip:user-1", "remove:vip:user-1"}, membership.calls)
}

func TestApplyIsIdempotent(t *testing.T) {
	membership := newFakeMembership()
	a := newApplier(membership)

	commands := []syncdomain.MembershipCommand{
		{UserID: "user-1", GroupID: "members", Action: commercedomain.RuleActionAdd},
		{UserID: "user-1", GroupID: "legacy", Action: commercedomain.RuleActionRemove},
	}

	first := a.Apply(context.Background(), commands)
	second := a.Apply(context.Background(), commands)

	require.Equal(t, first.CommandsApplied, second.CommandsApplied)
	require.True(t, membership.isMember("user-1", "members"))
	require.False(t, membership.isMember("user-1", "legacy"))
}

func TestApplySkipsUnknownTargetAndContinues(t *testing.T) {
	membership := newFakeMembership()
	membership.unknownGroups["ghost"] = true

	result := newApplier(membership).Apply(context.Background(), []syncdomain.MembershipCommand{
		{UserID: "user-1", GroupID: "ghost", Action: commercedomain.RuleActionAdd},
		{UserID: "user-1", GroupID: "members", Action: commercedomain.RuleActionAdd},
	})

	require.Equal(t, 1, result.CommandsApplied)
	require.Equal(t, 1, result.CommandsSkipped)
	require.Len(t, result.Failures, 1)
	require.Equal(t, syncdomain.FailureSkipped, result.Failures[0].Kind)
	require.Equal(t, "ghost", result.Failures[0].Command.GroupID)
	require.True(t, membership.isMember("user-1", "members"), "batch continues past the bad command")
}

func TestApplyRetriesTransientThenSucceeds(t *testing.T) {
	membership := newFakeMembership()
	membership.transient["members"] = 2 // fails twice, succeeds on third attempt

	result := newApplier(membership).Apply(context.Background(), []syncdomain.MembershipCommand{
		{UserID: "user-1", GroupID: "members", Action: commercedomain.RuleActionAdd},
	})

	require.Equal(t, 1, result.CommandsApplied)
	require.Zero(t, result.CommandsFailed)
	require.True(t, membership.isMember("user-1", "members"))
	require.Len(t, membership.calls, 3)
}

func TestApplyRecordsExhaustedTransientFailure(t *testing.T) {
	membership := newFakeMembership()
	membership.transient["flaky"] = 10

	result := newApplier(membership).Apply(context.Background(), []syncdomain.MembershipCommand{
		{UserID: "user-1", GroupID: "flaky", Action: commercedomain.RuleActionAdd},
		{UserID: "user-1", GroupID: "members", Action: commercedomain.RuleActionAdd},
	})

	require.Zero(t, result.CommandsSkipped)
	require.Equal(t, 1, result.CommandsFailed)
	require.Equal(t, 1, result.CommandsApplied)
	require.Len(t, result.Failures, 1)
	require.Equal(t, syncdomain.FailureFailed, result.Failures[0].Kind)
}

func TestApplyNoRetryOnPermanentError(t *testing.T) {
	membership := newFakeMembership()
	membership.unknownUsers["deleted-user"] = true

	newApplier(membership).Apply(context.Background(), []syncdomain.MembershipCommand{
		{UserID: "deleted-user", GroupID: "members", Action: commercedomain.RuleActionAdd},
	})

	require.Len(t, membership.calls, 1, "target absence must not be retried")
}

func TestApplyUnknownActionSkipped(t *testing.T) {
	membership := newFakeMembership()

	result := newApplier(membership).Apply(context.Background(), []syncdomain.MembershipCommand{
		{UserID: "user-1", GroupID: "members", Action: "promote"},
	})

	require.Equal(t, 1, result.CommandsSkipped)
	require.Equal(t, syncdomain.FailureSkipped, result.Failures[0].Kind)
	require.Empty(t, membership.calls)
}
