// Package capture records every insert, update and delete on the registered
// entity types as an audit log entry, regardless of which code path performed
// the mutation. It is the Go equivalent of database triggers: GORM callbacks
// snapshot the full row state around each write and append the entry inside
// the same transaction, so the mutation and its log line commit or roll back
// together. Call sites cannot skip it.
package capture

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/ledgerline/internal/audit/domain"
	"github.com/ledgerline/ledgerline/internal/audit/masking"
	"github.com/ledgerline/ledgerline/internal/identity"
	pkgdb "github.com/ledgerline/ledgerline/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const (
	oldRowsKey   = "audit:old_rows"
	tenantColumn = "tenant_id"
)

// ConfigurationError reports a broken audited-table registration. It is
// raised at Initialize, never per mutation.
type ConfigurationError struct {
	Model  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("audit capture: cannot register %s: %s", e.Model, e.Reason)
}

type auditedTable struct {
	entityType    string
	primaryKey    string
	maskedColumns []string
}

// maskRow redacts the table's secret columns so credentials never land in a
// snapshot verbatim.
func (t auditedTable) maskRow(row map[string]any) map[string]any {
	for _, column := range t.maskedColumns {
		raw, ok := row[column]
		if !ok || raw == nil {
			continue
		}
		if jm, ok := raw.(datatypes.JSONMap); ok {
			row[column] = masking.MaskJSON(jm)
			continue
		}
		row[column] = masking.MaskValue(raw)
	}
	return row
}

// SecretCarrier marks audited models with columns that hold credentials.
// Named columns are masked in every captured snapshot, old and new alike.
type SecretCarrier interface {
	AuditMaskedColumns() []string
}

// Plugin is a gorm.Plugin wired once at database setup with the explicit list
// of audited models.
type Plugin struct {
	log    *zap.Logger
	node   *snowflake.Node
	models []any
	tables map[string]auditedTable
}

func New(log *zap.Logger, node *snowflake.Node, models ...any) *Plugin {
	return &Plugin{
		log:    log.Named("audit.capture"),
		node:   node,
		models: models,
		tables: make(map[string]auditedTable, len(models)),
	}
}

func (p *Plugin) Name() string { return "audit_capture" }

func (p *Plugin) Initialize(db *gorm.DB) error {
	for _, model := range p.models {
		s, err := schema.Parse(model, &sync.Map{}, db.NamingStrategy)
		if err != nil {
			return &ConfigurationError{Model: fmt.Sprintf("%T", model), Reason: err.Error()}
		}
		if s.PrioritizedPrimaryField == nil {
			return &ConfigurationError{Model: s.Table, Reason: "no primary key"}
		}
		table := auditedTable{
			entityType: s.Table,
			primaryKey: s.PrioritizedPrimaryField.DBName,
		}
		if carrier, ok := model.(SecretCarrier); ok {
			table.maskedColumns = carrier.AuditMaskedColumns()
		}
		p.tables[s.Table] = table
	}

	if err := db.Callback().Create().After("gorm:create").Register("audit:after_create", p.afterCreate); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("audit:before_update", p.snapshotBefore); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("audit:after_update", p.afterUpdate); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("audit:before_delete", p.snapshotBefore); err != nil {
		return err
	}
	return db.Callback().Delete().After("gorm:delete").Register("audit:after_delete", p.afterDelete)
}

// snapshotBefore captures the full prior row state of everything the pending
// update/delete statement is about to touch.
func (p *Plugin) snapshotBefore(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt == nil || stmt.Schema == nil {
		return
	}
	table, ok := p.tables[stmt.Table]
	if !ok {
		return
	}

	rows, err := p.selectRows(db, table)
	if err != nil {
		p.log.Warn("prior-state snapshot failed",
			zap.String("entity_type", table.entityType), zap.Error(err))
		return
	}
	db.InstanceSet(oldRowsKey, rows)
}

func (p *Plugin) afterCreate(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt == nil || stmt.Schema == nil || db.RowsAffected == 0 {
		return
	}
	table, ok := p.tables[stmt.Table]
	if !ok {
		return
	}

	var entries []*domain.Entry
	eachStructValue(stmt.ReflectValue, func(rv reflect.Value) {
		snapshot := table.maskRow(structSnapshot(stmt, rv))
		entries = append(entries, &domain.Entry{
			Action:     domain.ActionInsert,
			EntityType: table.entityType,
			EntityID:   entityID(snapshot, table.primaryKey),
			NewValues:  datatypes.JSONMap(snapshot),
			TenantID:   tenantRef(snapshot, nil),
		})
	})
	p.appendEntries(db, table, entries)
}

func (p *Plugin) afterUpdate(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt == nil || stmt.Schema == nil || db.RowsAffected == 0 {
		return
	}
	table, ok := p.tables[stmt.Table]
	if !ok {
		return
	}
	oldRows := p.storedRows(db)
	if len(oldRows) == 0 {
		return
	}

	newByID, err := p.reselectByID(db, table, oldRows)
	if err != nil {
		p.log.Warn("post-update snapshot failed",
			zap.String("entity_type", table.entityType), zap.Error(err))
		return
	}

	var entries []*domain.Entry
	for _, oldRow := range oldRows {
		id := entityID(oldRow, table.primaryKey)
		newRow := newByID[id]
		entries = append(entries, &domain.Entry{
			Action:     domain.ActionUpdate,
			EntityType: table.entityType,
			EntityID:   id,
			OldValues:  datatypes.JSONMap(oldRow),
			NewValues:  datatypes.JSONMap(newRow),
			TenantID:   tenantRef(newRow, oldRow),
		})
	}
	p.appendEntries(db, table, entries)
}

func (p *Plugin) afterDelete(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt == nil || stmt.Schema == nil || db.RowsAffected == 0 {
		return
	}
	table, ok := p.tables[stmt.Table]
	if !ok {
		return
	}

	var entries []*domain.Entry
	for _, oldRow := range p.storedRows(db) {
		entries = append(entries, &domain.Entry{
			Action:     domain.ActionDelete,
			EntityType: table.entityType,
			EntityID:   entityID(oldRow, table.primaryKey),
			OldValues:  datatypes.JSONMap(oldRow),
			// Only the prior row exists on DELETE; attribute from it.
			TenantID: tenantRef(nil, oldRow),
		})
	}
	p.appendEntries(db, table, entries)
}

// appendEntries writes the log rows through the statement's own connection,
// which inside a write is the surrounding transaction. An integrity violation
// (an entry referencing a ghost tenant) aborts that transaction; any other
// log-write failure is reported but does not fail the mutation.
func (p *Plugin) appendEntries(db *gorm.DB, table auditedTable, entries []*domain.Entry) {
	if len(entries) == 0 {
		return
	}
	stmt := db.Statement

	var userID *int64
	if id, ok := identity.FromContext(stmt.Context); ok && id.UserID != 0 {
		uid := id.UserID
		userID = &uid
	}

	now := time.Now().UTC()
	for _, entry := range entries {
		entry.ID = p.node.Generate()
		entry.UserID = userID
		entry.CreatedAt = now
	}

	if err := freshSession(db).Create(&entries).Error; err != nil {
		if pkgdb.IsIntegrityErr(err) {
			_ = db.AddError(err)
			return
		}
		p.log.Warn("audit log write failed",
			zap.String("entity_type", table.entityType), zap.Error(err))
	}
}

// freshSession derives a clean handle on the statement's connection, which
// inside a write is the surrounding transaction. The parent handle is
// mid-statement; chaining off it clones its half-built SQL and clauses, and a
// query issued through such a clone re-executes the original mutation instead
// of its own. The replacement Statement keeps only the ConnPool and Context.
func freshSession(db *gorm.DB) *gorm.DB {
	stmt := db.Statement
	tx := db.Session(&gorm.Session{NewDB: true, SkipHooks: true})
	tx.Statement = &gorm.Statement{
		DB:        tx,
		ConnPool:  stmt.ConnPool,
		Context:   stmt.Context,
		Clauses:   map[string]clause.Clause{},
		Vars:      make([]any, 0, 8),
		SkipHooks: true,
	}
	return tx
}

// selectRows re-runs the statement's conditions as a SELECT on the same
// connection, yielding complete row state the way a row trigger would see it.
func (p *Plugin) selectRows(db *gorm.DB, table auditedTable) ([]map[string]any, error) {
	stmt := db.Statement

	sel := freshSession(db).Table(stmt.Table)
	if c, ok := stmt.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok && len(where.Exprs) > 0 {
			sel = sel.Clauses(clause.Where{Exprs: where.Exprs})
		}
	}
	// Model values carry the primary key outside the WHERE clause until GORM
	// finalizes the statement; fold it in here.
	if pk := stmt.Schema.PrioritizedPrimaryField; pk != nil && stmt.ReflectValue.IsValid() && stmt.ReflectValue.Kind() == reflect.Struct {
		if v, zero := pk.ValueOf(stmt.Context, stmt.ReflectValue); !zero {
			sel = sel.Where(fmt.Sprintf("%s = ?", table.primaryKey), v)
		}
	}

	var rows []map[string]any
	if err := sel.Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i] = table.maskRow(rows[i])
	}
	return rows, nil
}

func (p *Plugin) reselectByID(db *gorm.DB, table auditedTable, oldRows []map[string]any) (map[string]map[string]any, error) {
	stmt := db.Statement

	ids := make([]any, 0, len(oldRows))
	for _, row := range oldRows {
		ids = append(ids, row[table.primaryKey])
	}

	var rows []map[string]any
	err := freshSession(db).
		Table(stmt.Table).
		Where(fmt.Sprintf("%s IN ?", table.primaryKey), ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		byID[entityID(row, table.primaryKey)] = table.maskRow(row)
	}
	return byID, nil
}

func (p *Plugin) storedRows(db *gorm.DB) []map[string]any {
	v, ok := db.InstanceGet(oldRowsKey)
	if !ok {
		return nil
	}
	rows, _ := v.([]map[string]any)
	return rows
}

func eachStructValue(rv reflect.Value, fn func(reflect.Value)) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			for elem.Kind() == reflect.Ptr {
				elem = elem.Elem()
			}
			if elem.Kind() == reflect.Struct {
				fn(elem)
			}
		}
	case reflect.Struct:
		fn(rv)
	}
}

func structSnapshot(stmt *gorm.Statement, rv reflect.Value) map[string]any {
	snapshot := make(map[string]any, len(stmt.Schema.Fields))
	for _, field := range stmt.Schema.Fields {
		if field.DBName == "" {
			continue
		}
		value, _ := field.ValueOf(stmt.Context, rv)
		snapshot[field.DBName] = value
	}
	return snapshot
}

func entityID(row map[string]any, primaryKey string) string {
	if row == nil {
		return ""
	}
	return fmt.Sprint(row[primaryKey])
}

// tenantRef resolves tenant attribution: the new row's tenant if present,
// else the prior row's (covers DELETE, where only the old row exists).
func tenantRef(newRow, oldRow map[string]any) *int64 {
	if id := tenantFrom(newRow); id != nil {
		return id
	}
	return tenantFrom(oldRow)
}

func tenantFrom(row map[string]any) *int64 {
	if row == nil {
		return nil
	}
	raw, ok := row[tenantColumn]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case int64:
		if v != 0 {
			return &v
		}
	case int:
		id := int64(v)
		if id != 0 {
			return &id
		}
	case *int64:
		if v != nil && *v != 0 {
			id := *v
			return &id
		}
	case snowflake.ID:
		id := v.Int64()
		if id != 0 {
			return &id
		}
	case float64:
		id := int64(v)
		if id != 0 {
			return &id
		}
	}
	return nil
}
