package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cuotas/internal/clock"
	"github.com/smallbiznis/cuotas/internal/config"
	"github.com/smallbiznis/cuotas/internal/logger"
	"github.com/smallbiznis/cuotas/internal/migration"
	"github.com/smallbiznis/cuotas/internal/observability"
	"github.com/smallbiznis/cuotas/internal/scheduler"
	"github.com/smallbiznis/cuotas/internal/server"
	"github.com/smallbiznis/cuotas/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
