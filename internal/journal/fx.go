package journal

import (
	"github.com/smallbiznis/groupsync/internal/journal/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("journal",
	fx.Provide(repository.Provide),
)
