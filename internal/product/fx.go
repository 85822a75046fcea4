package product

import (
	"github.com/ledgerline/ledgerline/internal/product/repository"
	"github.com/ledgerline/ledgerline/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
