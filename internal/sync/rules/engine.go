// Package rules expands an entitlement into the membership commands its
// product's group rules prescribe.
package rules

import (
	"context"

	commercedomain "github.com/smallbiznis/groupsync/internal/commerce/domain"
	syncdomain "github.com/smallbiznis/groupsync/internal/sync/domain"
	"go.uber.org/zap"
)

type Engine struct {
	commerce commercedomain.Provider
	log      *zap.Logger
}

func New(commerce commercedomain.Provider, log *zap.Logger) *Engine {
	return &Engine{
		commerce: commerce,
		log:      log.Named("sync.rules"),
	}
}

// Expand emits one command per configured rule, in configured order. Rules
// are never deduplicated or reordered: when two rules target the same group
// the later command overwrites the earlier one's effect, so the last rule
// wins at application time. Rules missing a group or action are skipped.
func (e *Engine) Expand(ctx context.Context, ent syncdomain.Entitlement) ([]syncdomain.MembershipCommand, error) {
	configured, err := e.commerce.GetProductGroupRules(ctx, ent.ProductID)
	if err != nil {
		return nil, err
	}

	commands := make([]syncdomain.MembershipCommand, 0, len(configured))
	for _, rule := range configured {
		if rule.GroupID == "" || rule.Action == "" {
			e.log.Debug("skipping incomplete group rule",
				zap.String("product_id", ent.ProductID),
				zap.String("group_id", rule.GroupID),
				zap.String("action", string(rule.Action)),
			)
			continue
		}
		commands = append(commands, syncdomain.MembershipCommand{
			UserID:  ent.UserID,
			GroupID: rule.GroupID,
			Action:  rule.Action,
		})
	}
	return commands, nil
}
