package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/promptlab/internal/audit"
	"github.com/smallbiznis/promptlab/internal/auth"
	"github.com/smallbiznis/promptlab/internal/authorization"
	"github.com/smallbiznis/promptlab/internal/clock"
	"github.com/smallbiznis/promptlab/internal/config"
	"github.com/smallbiznis/promptlab/internal/invitation"
	"github.com/smallbiznis/promptlab/internal/migration"
	"github.com/smallbiznis/promptlab/internal/observability"
	"github.com/smallbiznis/promptlab/internal/organization"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
	"github.com/smallbiznis/promptlab/internal/ratelimit"
	"github.com/smallbiznis/promptlab/internal/scenario"
	"github.com/smallbiznis/promptlab/internal/scheduler"
	"github.com/smallbiznis/promptlab/internal/server"
	"github.com/smallbiznis/promptlab/pkg/db"
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
		migration.Module,

		// Functional Domains
		auth.Module,
		organization.Module,
		orgcontext.Module,
		authorization.Module,
		invitation.Module,
		scenario.Module,
		audit.Module,
		ratelimit.Module,
		scheduler.Module,

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
