package providers

import (
	"github.com/smallbiznis/makerhub/internal/providers/email"
	"github.com/smallbiznis/makerhub/internal/providers/payment"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	payment.Module,
)
