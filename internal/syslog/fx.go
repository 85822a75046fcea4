package syslog

import (
	"github.com/ledgerline/ledgerline/internal/syslog/repository"
	"github.com/ledgerline/ledgerline/internal/syslog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("syslog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
