package platform

import (
	"github.com/smallbiznis/groupsync/internal/config"
	"github.com/smallbiznis/groupsync/internal/platform/discourse"
	"github.com/smallbiznis/groupsync/internal/platform/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("platform",
	fx.Provide(func(cfg config.Config, policy *config.SyncPolicyHolder, log *zap.Logger) domain.Membership {
		return discourse.NewClient(cfg, policy, log)
	}),
)
