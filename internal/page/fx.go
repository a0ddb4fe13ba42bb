package page

import (
	"github.com/smallbiznis/makerhub/internal/page/repository"
	"github.com/smallbiznis/makerhub/internal/page/service"
	"go.uber.org/fx"
)

var Module = fx.Module("page.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
