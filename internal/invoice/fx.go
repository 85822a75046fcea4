package invoice

import (
	"github.com/ledgerline/ledgerline/internal/invoice/repository"
	"github.com/ledgerline/ledgerline/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
