package commerce

import (
	"github.com/smallbiznis/groupsync/internal/commerce/domain"
	"github.com/smallbiznis/groupsync/internal/commerce/edd"
	"github.com/smallbiznis/groupsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("commerce",
	fx.Provide(func(cfg config.Config, policy *config.SyncPolicyHolder, log *zap.Logger) domain.Provider {
		return edd.NewClient(cfg, policy, log)
	}),
)
