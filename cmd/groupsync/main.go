package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/groupsync/internal/clock"
	"github.com/smallbiznis/groupsync/internal/commerce"
	"github.com/smallbiznis/groupsync/internal/config"
	"github.com/smallbiznis/groupsync/internal/journal"
	"github.com/smallbiznis/groupsync/internal/migration"
	"github.com/smallbiznis/groupsync/internal/observability"
	"github.com/smallbiznis/groupsync/internal/platform"
	"github.com/smallbiznis/groupsync/internal/server"
	"github.com/smallbiznis/groupsync/internal/sync"
	"github.com/smallbiznis/groupsync/internal/userlock"
	"github.com/smallbiznis/groupsync/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// External collaborators
		commerce.Module,
		platform.Module,

		// Sync pipeline
		userlock.Module,
		journal.Module,
		sync.Module,
		migration.Module,

		// Ingress
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
