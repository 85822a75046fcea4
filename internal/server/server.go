// Package server wires the HTTP surface: route registration, identity
// resolution, role gates and error mapping. Handlers stay thin; every rule
// that matters lives in the services below them.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/ledgerline/ledgerline/internal/audit/domain"
	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/config"
	customerdomain "github.com/ledgerline/ledgerline/internal/customer/domain"
	"github.com/ledgerline/ledgerline/internal/identity"
	inventorydomain "github.com/ledgerline/ledgerline/internal/inventory/domain"
	invoicedomain "github.com/ledgerline/ledgerline/internal/invoice/domain"
	notificationdomain "github.com/ledgerline/ledgerline/internal/notification/domain"
	productdomain "github.com/ledgerline/ledgerline/internal/product/domain"
	"github.com/ledgerline/ledgerline/internal/ratelimit"
	syslogdomain "github.com/ledgerline/ledgerline/internal/syslog/domain"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
	userdomain "github.com/ledgerline/ledgerline/internal/user/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(cors.Default())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	tokens          *identity.TokenCodec
	limiter         *ratelimit.RequestLimiter
	tenantSvc       tenantdomain.Service
	userSvc         userdomain.Service
	customerSvc     customerdomain.Service
	productSvc      productdomain.Service
	inventorySvc    inventorydomain.Service
	invoiceSvc      invoicedomain.Service
	notificationSvc notificationdomain.Service
	auditSvc        auditdomain.Service
	syslogSvc       syslogdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	Tokens          *identity.TokenCodec
	Limiter         *ratelimit.RequestLimiter `optional:"true"`
	TenantSvc       tenantdomain.Service
	UserSvc         userdomain.Service
	CustomerSvc     customerdomain.Service
	ProductSvc      productdomain.Service
	InventorySvc    inventorydomain.Service
	InvoiceSvc      invoicedomain.Service
	NotificationSvc notificationdomain.Service
	AuditSvc        auditdomain.Service
	SyslogSvc       syslogdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("server"),
		clock:           p.Clock,
		tokens:          p.Tokens,
		limiter:         p.Limiter,
		tenantSvc:       p.TenantSvc,
		userSvc:         p.UserSvc,
		customerSvc:     p.CustomerSvc,
		productSvc:      p.ProductSvc,
		inventorySvc:    p.InventorySvc,
		invoiceSvc:      p.InvoiceSvc,
		notificationSvc: p.NotificationSvc,
		auditSvc:        p.AuditSvc,
		syslogSvc:       p.SyslogSvc,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// pathID parses the :id route segment. A malformed id can never name a row,
// so it maps to the same not-found the lookup would produce.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		AbortWithError(c, ErrNotFound)
		return 0, false
	}
	return id, true
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

// registerAPIRoutes is the tenant-scoped surface. Everything behind it runs
// with the caller's tenant stamped into the request context.
func (s *Server) registerAPIRoutes() {
	tenantRoles := []identity.Role{identity.RoleStaff, identity.RoleManager, identity.RoleAdmin}
	managerUp := []identity.Role{identity.RoleManager, identity.RoleAdmin}
	adminOnly := []identity.Role{identity.RoleAdmin}

	api := s.engine.Group("/api/v1", s.AuthRequired(), s.TenantRateLimit())

	customers := api.Group("/customers", s.RequireRole(tenantRoles...))
	customers.POST("", s.CreateCustomer)
	customers.GET("", s.ListCustomers)
	customers.GET("/:id", s.GetCustomer)
	customers.PATCH("/:id", s.UpdateCustomer)
	customers.DELETE("/:id", s.RequireRole(managerUp...), s.DeleteCustomer)

	products := api.Group("/products", s.RequireRole(tenantRoles...))
	products.GET("", s.ListProducts)
	products.GET("/:id", s.GetProduct)
	products.POST("", s.RequireRole(managerUp...), s.CreateProduct)
	products.PATCH("/:id", s.RequireRole(managerUp...), s.UpdateProduct)
	products.DELETE("/:id", s.RequireRole(managerUp...), s.DeleteProduct)

	stock := api.Group("/stock-movements", s.RequireRole(tenantRoles...))
	stock.GET("", s.ListStockMovements)
	stock.POST("", s.RequireRole(managerUp...), s.RecordStockMovement)
	api.POST("/products/:id/reconcile", s.RequireRole(managerUp...), s.ReconcileStock)

	invoices := api.Group("/invoices", s.RequireRole(tenantRoles...))
	invoices.POST("", s.CreateInvoice)
	invoices.GET("", s.ListInvoices)
	invoices.GET("/:id", s.GetInvoice)
	invoices.PATCH("/:id", s.UpdateInvoice)
	invoices.DELETE("/:id", s.RequireRole(managerUp...), s.DeleteInvoice)
	invoices.POST("/:id/issue", s.IssueInvoice)
	invoices.POST("/:id/pay", s.PayInvoice)
	invoices.POST("/:id/void", s.RequireRole(managerUp...), s.VoidInvoice)

	notifications := api.Group("/notifications", s.RequireRole(tenantRoles...))
	notifications.GET("", s.ListNotifications)
	notifications.GET("/:id", s.GetNotification)
	notifications.POST("/:id/read", s.MarkNotificationRead)

	users := api.Group("/users", s.RequireRole(adminOnly...))
	users.POST("", s.CreateUser)
	users.GET("", s.ListUsers)
	users.GET("/:id", s.GetUser)
	users.PATCH("/:id", s.UpdateUser)
	users.DELETE("/:id", s.DeleteUser)

	api.GET("/audit-logs", s.RequireRole(managerUp...), s.ListAuditLogs)

	settings := api.Group("/settings", s.RequireRole(adminOnly...))
	settings.GET("", s.GetSettings)
	settings.PATCH("", s.UpdateSettings)
	settings.GET("/connectors", s.ListConnectors)
	settings.PUT("/connectors", s.UpsertConnector)
}

// registerAdminRoutes is the superadmin-only platform surface: tenant
// management and cross-tenant observability. It never shares handlers with
// the tenant-scoped code path.
func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin/v1", s.AuthRequired(), s.RequireRole(identity.RoleSuperadmin))

	admin.POST("/tenants", s.CreateTenant)
	admin.GET("/tenants", s.ListTenants)
	admin.GET("/tenants/:id", s.GetTenant)
	admin.POST("/tenants/:id/suspend", s.SuspendTenant)
	admin.POST("/tenants/:id/activate", s.ActivateTenant)
	admin.DELETE("/tenants/:id", s.DeleteTenant)

	admin.GET("/audit-logs", s.ListAllAuditLogs)
	admin.GET("/system-logs", s.ListSystemLogs)
}
