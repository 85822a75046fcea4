package inventory

import (
	"github.com/ledgerline/ledgerline/internal/inventory/repository"
	"github.com/ledgerline/ledgerline/internal/inventory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inventory.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
