// Package domain defines the membership surface the sync pipeline needs from
// the discussion platform.
package domain

import (
	"context"
	"errors"
)

// Membership mutates group membership on the discussion platform. Both
// operations are idempotent: adding an existing member or removing a
// non-member succeeds without effect.
type Membership interface {
	AddUserToGroup(ctx context.Context, userID, groupID string) error
	RemoveUserFromGroup(ctx context.Context, userID, groupID string) error
}

var (
	// ErrUserNotFound and ErrGroupNotFound mark a permanently unprocessable
	// command; the applier skips it and moves on. Any other error from a
	// Membership implementation is treated as transient and retried.
	ErrUserNotFound  = errors.New("platform_user_not_found")
	ErrGroupNotFound = errors.New("platform_group_not_found")
)
