package payment

import (
	"github.com/smallbiznis/accounts/internal/payment/service"
	"github.com/smallbiznis/accounts/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(pdf.New),
	fx.Provide(service.NewService),
)
