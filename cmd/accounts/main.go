package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/internal/clock"
	"github.com/smallbiznis/accounts/internal/config"
	"github.com/smallbiznis/accounts/internal/migration"
	"github.com/smallbiznis/accounts/internal/observability"
	"github.com/smallbiznis/accounts/internal/scheduler"
	"github.com/smallbiznis/accounts/internal/server"
	"github.com/smallbiznis/accounts/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domains and HTTP surface
		server.Module,
		migration.Module,

		// Background jobs
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
