package customer

import (
	"github.com/ledgerline/ledgerline/internal/customer/repository"
	"github.com/ledgerline/ledgerline/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
