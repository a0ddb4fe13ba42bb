package sale

import (
	"github.com/smallbiznis/makerhub/internal/sale/repository"
	"github.com/smallbiznis/makerhub/internal/sale/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sale.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
