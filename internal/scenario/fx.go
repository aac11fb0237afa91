package scenario

import (
	"github.com/smallbiznis/promptlab/internal/scenario/repository"
	"github.com/smallbiznis/promptlab/internal/scenario/service"
	"go.uber.org/fx"
)

var Module = fx.Module("scenario.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
