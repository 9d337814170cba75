package membership

import (
	"github.com/smallbiznis/crowdspace/internal/membership/repository"
	"github.com/smallbiznis/crowdspace/internal/membership/service"
	"go.uber.org/fx"
)

var Module = fx.Module("membership.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
