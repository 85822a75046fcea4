package tenant

import (
	"github.com/ledgerline/ledgerline/internal/tenant/repository"
	"github.com/ledgerline/ledgerline/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
