package otp

import (
	"github.com/smallbiznis/accounts/internal/otp/repository"
	"github.com/smallbiznis/accounts/internal/otp/service"
	"go.uber.org/fx"
)

var Module = fx.Module("otp.service",
	fx.Provide(repository.ProvideTokenCipher),
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
