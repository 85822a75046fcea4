package user

import (
	"github.com/ledgerline/ledgerline/internal/user/repository"
	"github.com/ledgerline/ledgerline/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
