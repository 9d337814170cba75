package invitation

import (
	followerrepository "github.com/smallbiznis/crowdspace/internal/follower/repository"
	"github.com/smallbiznis/crowdspace/internal/invitation/repository"
	"github.com/smallbiznis/crowdspace/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(followerrepository.NewRepository),
	fx.Provide(service.NewService),
)
