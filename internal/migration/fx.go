// Package migration keeps the journal schema current on startup, so the
// service is usable out of the box for local and self-hosted deployments.
package migration

import (
	journaldomain "github.com/smallbiznis/groupsync/internal/journal/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		return conn.AutoMigrate(&journaldomain.Delivery{})
	}),
)
