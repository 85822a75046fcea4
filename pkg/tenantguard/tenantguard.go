// Package tenantguard enforces multi-tenant isolation at the data-access
// boundary. Every query, update and delete against a model carrying a
// tenant_id column is automatically scoped to the tenant resolved into the
// request context, so no call site can forget the filter. A mismatch simply
// finds no rows; callers translate that into NotFound, which keeps another
// tenant's rows indistinguishable from absent ones.
//
// Raw SQL is not covered; repositories that drop to Exec/Raw must carry the
// tenant predicate themselves. Superadmin paths opt out explicitly through
// tenantctx.WithBypass.
package tenantguard

import (
	"strings"

	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tenantColumn = "tenant_id"

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "tenant_guard" }

func (p *Plugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", scopeToTenant); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", scopeToTenant); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", scopeToTenant); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", scopeToTenant)
}

func scopeToTenant(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if tenantctx.Bypassed(ctx) {
		return
	}
	if !hasTenantColumn(db) {
		return
	}

	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok || tenantID == 0 {
		// A tenant-scoped table touched without a resolved tenant is a
		// programming error, not an empty result.
		_ = db.AddError(tenantctx.ErrNoTenant)
		return
	}

	if whereHasTenant(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: tenantColumn},
				Value:  tenantID,
			},
		},
	})
}

func hasTenantColumn(db *gorm.DB) bool {
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, tenantColumn) {
			return true
		}
	}
	return false
}

func whereHasTenant(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasTenant(e) {
			return true
		}
	}
	return false
}

func exprHasTenant(e clause.Expression) bool {
	switch typed := e.(type) {
	case clause.Eq:
		if col, ok := typed.Column.(clause.Column); ok {
			return strings.EqualFold(col.Name, tenantColumn)
		}
		if col, ok := typed.Column.(string); ok {
			return strings.EqualFold(col, tenantColumn)
		}
	case clause.IN:
		if col, ok := typed.Column.(clause.Column); ok {
			return strings.EqualFold(col.Name, tenantColumn)
		}
	case clause.Expr:
		return strings.Contains(strings.ToLower(typed.SQL), tenantColumn)
	case clause.AndConditions:
		for _, sub := range typed.Exprs {
			if exprHasTenant(sub) {
				return true
			}
		}
	}
	return false
}
