package sync

import (
	"github.com/smallbiznis/groupsync/internal/sync/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sync",
	fx.Provide(service.NewService),
)
