package audit

import (
	"github.com/ledgerline/ledgerline/internal/audit/repository"
	"github.com/ledgerline/ledgerline/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
