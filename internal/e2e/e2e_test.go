// Package e2e drives the assembled HTTP surface end to end: real router,
// real services, sqlite storage with the tenant guard and audit capture
// plugins installed, exactly as the binary wires them.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/ledgerline/ledgerline/internal/audit/capture"
	auditrepo "github.com/ledgerline/ledgerline/internal/audit/repository"
	auditsvc "github.com/ledgerline/ledgerline/internal/audit/service"
	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/config"
	customerdomain "github.com/ledgerline/ledgerline/internal/customer/domain"
	customerrepo "github.com/ledgerline/ledgerline/internal/customer/repository"
	customersvc "github.com/ledgerline/ledgerline/internal/customer/service"
	"github.com/ledgerline/ledgerline/internal/identity"
	inventoryrepo "github.com/ledgerline/ledgerline/internal/inventory/repository"
	inventorysvc "github.com/ledgerline/ledgerline/internal/inventory/service"
	invoicedomain "github.com/ledgerline/ledgerline/internal/invoice/domain"
	invoicerepo "github.com/ledgerline/ledgerline/internal/invoice/repository"
	invoicesvc "github.com/ledgerline/ledgerline/internal/invoice/service"
	"github.com/ledgerline/ledgerline/internal/migration"
	notificationrepo "github.com/ledgerline/ledgerline/internal/notification/repository"
	notificationsvc "github.com/ledgerline/ledgerline/internal/notification/service"
	productdomain "github.com/ledgerline/ledgerline/internal/product/domain"
	productrepo "github.com/ledgerline/ledgerline/internal/product/repository"
	productsvc "github.com/ledgerline/ledgerline/internal/product/service"
	"github.com/ledgerline/ledgerline/internal/seed"
	"github.com/ledgerline/ledgerline/internal/server"
	syslogrepo "github.com/ledgerline/ledgerline/internal/syslog/repository"
	syslogsvc "github.com/ledgerline/ledgerline/internal/syslog/service"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
	tenantrepo "github.com/ledgerline/ledgerline/internal/tenant/repository"
	tenantsvc "github.com/ledgerline/ledgerline/internal/tenant/service"
	userdomain "github.com/ledgerline/ledgerline/internal/user/domain"
	userrepo "github.com/ledgerline/ledgerline/internal/user/repository"
	usersvc "github.com/ledgerline/ledgerline/internal/user/service"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"github.com/ledgerline/ledgerline/pkg/tenantguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type testApp struct {
	t     *testing.T
	srv   *httptest.Server
	db    *gorm.DB
	users userdomain.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	require.NoError(t, db.Use(tenantguard.New()))
	require.NoError(t, db.Use(capture.New(log, node,
		&invoicedomain.Invoice{},
		&customerdomain.Customer{},
		&productdomain.Product{},
		&userdomain.User{},
		&tenantdomain.ConnectorConfig{},
		&tenantdomain.Settings{},
	)))
	require.NoError(t, seed.EnsureSuperadmin(db, "", ""))

	clk := clock.SystemClock{}
	alertCfg := config.NewStaticAlertConfigHolder(config.DefaultAlertConfig())

	notifications := notificationsvc.NewService(notificationsvc.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: notificationrepo.Provide(),
	})
	inventory := inventorysvc.NewService(inventorysvc.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: inventoryrepo.Provide(), Products: productrepo.Provide(),
		Notifications: notifications, AlertConfig: alertCfg,
	})
	invoices := invoicesvc.NewService(invoicesvc.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: invoicerepo.Provide(), Customers: customerrepo.Provide(),
		Products: productrepo.Provide(), Inventory: inventory,
		Notifications: notifications, AlertConfig: alertCfg,
	})
	users := usersvc.NewService(usersvc.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: userrepo.Provide(), TenantRepo: tenantrepo.Provide(),
	})
	syslogs := syslogsvc.NewService(syslogsvc.Params{
		DB: db, Log: log, GenID: node, Repo: syslogrepo.Provide(),
	})

	engine := server.NewEngine(log)
	server.NewServer(server.ServerParams{
		Gin:    engine,
		Cfg:    config.Config{},
		DB:     db,
		Log:    log,
		Clock:  clk,
		Tokens: identity.NewTokenCodec("e2e-secret", time.Hour),
		TenantSvc: tenantsvc.NewService(tenantsvc.Params{
			DB: db, Log: log, GenID: node, Clock: clk, Repo: tenantrepo.Provide(),
			Syslog: syslogs,
		}),
		UserSvc: users,
		CustomerSvc: customersvc.NewService(customersvc.Params{
			DB: db, Log: log, GenID: node, Clock: clk, Repo: customerrepo.Provide(),
		}),
		ProductSvc: productsvc.NewService(productsvc.Params{
			DB: db, Log: log, GenID: node, Clock: clk, Repo: productrepo.Provide(),
		}),
		InventorySvc:    inventory,
		InvoiceSvc:      invoices,
		NotificationSvc: notifications,
		AuditSvc: auditsvc.NewService(auditsvc.Params{
			DB: db, Log: log, Repo: auditrepo.Provide(),
		}),
		SyslogSvc: syslogs,
	})

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return &testApp{t: t, srv: srv, db: db, users: users}
}

// request issues one API call and decodes the JSON body with number
// fidelity preserved; ids are snowflakes that do not survive float64.
func (a *testApp) request(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()

	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, payload)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp.StatusCode, decoded
}

func (a *testApp) must(method, path, token string, body any) map[string]any {
	a.t.Helper()
	status, decoded := a.request(method, path, token, body)
	require.Equal(a.t, http.StatusOK, status, "%s %s: %v", method, path, decoded)
	return decoded
}

func (a *testApp) login(email, password string) string {
	a.t.Helper()
	resp := a.must(http.MethodPost, "/auth/login", "", map[string]any{
		"email": email, "password": password,
	})
	token, _ := resp["token"].(string)
	require.NotEmpty(a.t, token)
	return token
}

func data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	d, ok := resp["data"].(map[string]any)
	require.True(t, ok, "missing data object: %v", resp)
	return d
}

func jsonID(t *testing.T, m map[string]any, key string) json.Number {
	t.Helper()
	n, ok := m[key].(json.Number)
	require.True(t, ok, "field %q is not a number: %v", key, m)
	return n
}

// provisionTenant creates a tenant over the admin API and its first admin
// user directly through the service, the way an operator bootstraps one.
func (a *testApp) provisionTenant(t *testing.T, superToken, name, adminEmail string) (json.Number, string) {
	t.Helper()
	resp := a.must(http.MethodPost, "/admin/v1/tenants", superToken, map[string]any{
		"name": name, "plan": "starter",
	})
	tenantID := jsonID(t, data(t, resp), "id")

	id, err := tenantID.Int64()
	require.NoError(t, err)
	ctx := tenantctx.WithTenantID(context.Background(), id)
	_, err = a.users.Create(ctx, userdomain.CreateRequest{
		Email:    adminEmail,
		Name:     "Tenant Admin",
		Password: "correct-horse",
		Role:     "admin",
	})
	require.NoError(t, err)

	return tenantID, a.login(adminEmail, "correct-horse")
}

func TestInvoiceLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	superToken := app.login("admin@ledgerline.local", "admin")

	me := data(t, app.must(http.MethodGet, "/auth/me", superToken, nil))
	assert.Equal(t, "superadmin", me["role"])
	assert.NotContains(t, me, "tenant_id")

	_, adminToken := app.provisionTenant(t, superToken, "Acme Retail", "admin@acme.test")

	product := data(t, app.must(http.MethodPost, "/api/v1/products", adminToken, map[string]any{
		"sku": "wdg-001", "name": "Widget", "unit_price": "25",
	}))
	productID := jsonID(t, product, "id")
	assert.Equal(t, "WDG-001", product["sku"])

	app.must(http.MethodPost, "/api/v1/stock-movements", adminToken, map[string]any{
		"product_id": productID, "type": "purchase", "quantity": 10,
	})
	stocked := data(t, app.must(http.MethodGet, "/api/v1/products/"+productID.String(), adminToken, nil))
	assert.Equal(t, json.Number("10"), stocked["stock_quantity"])

	customer := data(t, app.must(http.MethodPost, "/api/v1/customers", adminToken, map[string]any{
		"name": "Corner Cafe",
	}))
	customerID := jsonID(t, customer, "id")

	invoice := data(t, app.must(http.MethodPost, "/api/v1/invoices", adminToken, map[string]any{
		"customer_id": customerID,
		"lines":       []map[string]any{{"product_id": productID, "quantity": 4}},
	}))
	invoiceID := jsonID(t, invoice, "id")
	assert.Equal(t, "draft", invoice["status"])
	assert.Equal(t, "100", invoice["subtotal"])

	issued := data(t, app.must(http.MethodPost, "/api/v1/invoices/"+invoiceID.String()+"/issue", adminToken, nil))
	assert.Equal(t, "issued", issued["status"])
	assert.Equal(t, "INV-000001", issued["number"])

	stocked = data(t, app.must(http.MethodGet, "/api/v1/products/"+productID.String(), adminToken, nil))
	assert.Equal(t, json.Number("6"), stocked["stock_quantity"])

	paid := data(t, app.must(http.MethodPost, "/api/v1/invoices/"+invoiceID.String()+"/pay", adminToken, nil))
	assert.Equal(t, "paid", paid["status"])

	notifications := app.must(http.MethodGet, "/api/v1/notifications", adminToken, nil)
	rows, ok := notifications["data"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, rows)

	audit := app.must(http.MethodGet, "/api/v1/audit-logs", adminToken, nil)
	entries, ok := audit["entries"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, entries)
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	app := newTestApp(t)
	superToken := app.login("admin@ledgerline.local", "admin")

	_, tokenA := app.provisionTenant(t, superToken, "Tenant A", "admin@a.test")
	_, tokenB := app.provisionTenant(t, superToken, "Tenant B", "admin@b.test")

	customer := data(t, app.must(http.MethodPost, "/api/v1/customers", tokenA, map[string]any{
		"name": "Private Customer",
	}))
	customerID := jsonID(t, customer, "id")

	// The other tenant's token cannot see the row, by id or in a listing.
	status, _ := app.request(http.MethodGet, "/api/v1/customers/"+customerID.String(), tokenB, nil)
	assert.Equal(t, http.StatusNotFound, status)

	listing := app.must(http.MethodGet, "/api/v1/customers", tokenB, nil)
	rows, ok := listing["data"].([]any)
	require.True(t, ok)
	assert.Empty(t, rows)
}

func TestRoleAndAuthGates(t *testing.T) {
	app := newTestApp(t)
	superToken := app.login("admin@ledgerline.local", "admin")
	tenantID, adminToken := app.provisionTenant(t, superToken, "Gated", "admin@gated.test")

	status, _ := app.request(http.MethodGet, "/api/v1/customers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = app.request(http.MethodGet, "/api/v1/customers", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Tenant admins have no business on the platform surface.
	status, _ = app.request(http.MethodGet, "/admin/v1/tenants", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	product := data(t, app.must(http.MethodPost, "/api/v1/products", adminToken, map[string]any{
		"sku": "GT-1", "name": "Gadget", "unit_price": "5",
	}))
	productID := jsonID(t, product, "id")

	id, err := tenantID.Int64()
	require.NoError(t, err)
	ctx := tenantctx.WithTenantID(context.Background(), id)
	_, err = app.users.Create(ctx, userdomain.CreateRequest{
		Email: "staff@gated.test", Name: "Staff", Password: "correct-horse", Role: "staff",
	})
	require.NoError(t, err)
	staffToken := app.login("staff@gated.test", "correct-horse")

	// Staff can read products but not delete them.
	app.must(http.MethodGet, "/api/v1/products/"+productID.String(), staffToken, nil)
	status, _ = app.request(http.MethodDelete, "/api/v1/products/"+productID.String(), staffToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = app.request(http.MethodGet, "/api/v1/users", staffToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}
