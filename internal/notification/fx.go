package notification

import (
	"github.com/ledgerline/ledgerline/internal/notification/repository"
	"github.com/ledgerline/ledgerline/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
