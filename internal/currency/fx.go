package currency

import (
	"github.com/smallbiznis/makerhub/internal/currency/service"
	"go.uber.org/fx"
)

var Module = fx.Module("currency.service",
	fx.Provide(service.New),
)
