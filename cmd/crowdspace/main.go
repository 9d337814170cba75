package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crowdspace/internal/clock"
	"github.com/smallbiznis/crowdspace/internal/config"
	"github.com/smallbiznis/crowdspace/internal/migration"
	"github.com/smallbiznis/crowdspace/internal/observability"
	"github.com/smallbiznis/crowdspace/internal/server"
	"github.com/smallbiznis/crowdspace/pkg/db"
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

		// Domains and HTTP
		server.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
