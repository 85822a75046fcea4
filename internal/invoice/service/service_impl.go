package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/config"
	customerdomain "github.com/ledgerline/ledgerline/internal/customer/domain"
	inventorydomain "github.com/ledgerline/ledgerline/internal/inventory/domain"
	"github.com/ledgerline/ledgerline/internal/invoice/domain"
	notificationdomain "github.com/ledgerline/ledgerline/internal/notification/domain"
	productdomain "github.com/ledgerline/ledgerline/internal/product/domain"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// defaultDueDays applies when an invoice is issued without a due date.
const defaultDueDays = 14

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	Customers     customerdomain.Repository
	Products      productdomain.Repository
	Inventory     inventorydomain.Service
	Notifications notificationdomain.Service
	AlertConfig   *config.AlertConfigHolder
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	customers     customerdomain.Repository
	products      productdomain.Repository
	inventory     inventorydomain.Service
	notifications notificationdomain.Service
	alertCfg      *config.AlertConfigHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("invoice.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		customers:     p.Customers,
		products:      p.Products,
		inventory:     p.Inventory,
		notifications: p.Notifications,
		alertCfg:      p.AlertConfig,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Invoice, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, tenantctx.ErrNoTenant
	}

	taxRate := decimal.Zero
	if req.TaxRate != nil {
		if req.TaxRate.IsNegative() {
			return nil, domain.ErrInvalidLine
		}
		taxRate = *req.TaxRate
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:         s.genID.Generate().Int64(),
		TenantID:   tenantID,
		CustomerID: req.CustomerID,
		Status:     domain.StatusDraft,
		DueDate:    req.DueDate,
		TaxRate:    taxRate,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customers.FindByID(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return domain.ErrCustomerNotFound
		}

		lines, err := s.buildLines(ctx, tx, &invoice, req.Lines)
		if err != nil {
			return err
		}
		invoice.Lines = lines
		s.total(&invoice)

		return s.repo.Insert(ctx, tx, &invoice)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, invoice.ID)
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Invoice, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if req.Limit <= 0 {
		req.Limit = 100
	}
	if req.Limit > 500 {
		req.Limit = 500
	}
	return s.repo.FindAll(ctx, s.db, req)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Invoice, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Status != domain.StatusDraft {
			return domain.ErrNotDraft
		}

		if req.CustomerID != nil {
			customer, err := s.customers.FindByID(ctx, tx, *req.CustomerID)
			if err != nil {
				return err
			}
			if customer == nil {
				return domain.ErrCustomerNotFound
			}
			invoice.CustomerID = *req.CustomerID
		}
		if req.DueDate != nil {
			invoice.DueDate = req.DueDate
		}
		if req.TaxRate != nil {
			if req.TaxRate.IsNegative() {
				return domain.ErrInvalidLine
			}
			invoice.TaxRate = *req.TaxRate
		}
		if req.Notes != nil {
			invoice.Notes = req.Notes
		}

		if req.Lines != nil {
			if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&domain.LineItem{}).Error; err != nil {
				return err
			}
			lines, err := s.buildLines(ctx, tx, invoice, req.Lines)
			if err != nil {
				return err
			}
			if err := tx.Create(&lines).Error; err != nil {
				return err
			}
			invoice.Lines = lines
		}
		s.total(invoice)

		return tx.Model(&domain.Invoice{}).
			Where("id = ?", invoice.ID).
			Updates(map[string]any{
				"customer_id": invoice.CustomerID,
				"due_date":    invoice.DueDate,
				"tax_rate":    invoice.TaxRate,
				"tax_amount":  invoice.TaxAmount,
				"subtotal":    invoice.Subtotal,
				"total":       invoice.Total,
				"notes":       invoice.Notes,
				"updated_at":  s.clock.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, req.ID)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Status != domain.StatusDraft {
			return domain.ErrNotDraft
		}
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&domain.LineItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Invoice{}, "id = ?", invoice.ID).Error
	})
}

func (s *Service) Issue(ctx context.Context, id int64) (*domain.Invoice, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, tenantctx.ErrNoTenant
	}

	var postings []inventorydomain.Posting
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Status != domain.StatusDraft {
			return domain.ErrInvalidTransition
		}
		if len(invoice.Lines) == 0 {
			return domain.ErrNoLines
		}

		number, err := s.nextNumber(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		dueDate := invoice.DueDate
		if dueDate == nil {
			d := now.AddDate(0, 0, defaultDueDays)
			dueDate = &d
		}

		err = tx.Model(&domain.Invoice{}).
			Where("id = ?", invoice.ID).
			Updates(map[string]any{
				"number":     number,
				"status":     domain.StatusIssued,
				"issued_at":  now,
				"due_date":   dueDate,
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}

		postings, err = s.inventory.Post(ctx, tx, saleMovements(invoice))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.inventory.AlertLowStock(ctx, postings)
	return s.Get(ctx, id)
}

func (s *Service) Pay(ctx context.Context, id int64) (*domain.Invoice, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != domain.StatusIssued && invoice.Status != domain.StatusOverdue {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	// Repeat the status guard in the predicate: a transition committed
	// between the read and this write must not be overwritten.
	res := s.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("id = ? AND status IN ?", invoice.ID, []domain.Status{domain.StatusIssued, domain.StatusOverdue}).
		Updates(map[string]any{
			"status":     domain.StatusPaid,
			"paid_at":    now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrInvalidTransition
	}

	s.notifyLifecycle(ctx, invoice, notificationdomain.TypeSuccess, notificationdomain.PriorityLow,
		"Invoice paid", fmt.Sprintf("Invoice %s has been paid", numberOrID(invoice)))
	return s.Get(ctx, id)
}

func (s *Service) Void(ctx context.Context, id int64) (*domain.Invoice, error) {
	var postings []inventorydomain.Posting
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		switch invoice.Status {
		case domain.StatusDraft, domain.StatusIssued, domain.StatusOverdue:
		default:
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now()
		err = tx.Model(&domain.Invoice{}).
			Where("id = ?", invoice.ID).
			Updates(map[string]any{
				"status":     domain.StatusVoid,
				"voided_at":  now,
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}

		// Drafts never moved stock, so there is nothing to put back.
		if invoice.Status == domain.StatusDraft {
			return nil
		}
		postings, err = s.inventory.Post(ctx, tx, returnMovements(invoice))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.inventory.AlertLowStock(ctx, postings)
	return s.Get(ctx, id)
}

func (s *Service) ProcessOverdue(ctx context.Context) ([]domain.Invoice, error) {
	grace := s.alertCfg.Get().OverdueAfterDays
	cutoff := s.clock.Now().AddDate(0, 0, -grace)

	due, err := s.repo.FindIssuedDueBefore(ctx, s.db, cutoff)
	if err != nil {
		return nil, err
	}

	flagged := make([]domain.Invoice, 0, len(due))
	for i := range due {
		invoice := due[i]
		now := s.clock.Now()
		err := s.db.WithContext(ctx).Model(&domain.Invoice{}).
			Where("id = ? AND status = ?", invoice.ID, domain.StatusIssued).
			Updates(map[string]any{
				"status":     domain.StatusOverdue,
				"updated_at": now,
			}).Error
		if err != nil {
			return flagged, err
		}
		invoice.Status = domain.StatusOverdue
		flagged = append(flagged, invoice)

		s.notifyLifecycle(ctx, &invoice, notificationdomain.TypeWarning, notificationdomain.PriorityHigh,
			"Invoice overdue", fmt.Sprintf("Invoice %s was due on %s", numberOrID(&invoice), invoice.DueDate.Format("2006-01-02")))
	}
	return flagged, nil
}

// nextNumber bumps the tenant's settings sequence inside tx and formats the
// invoice number. The increment-then-read relies on row locking to serialize
// concurrent issues.
func (s *Service) nextNumber(ctx context.Context, tx *gorm.DB, tenantID int64) (string, error) {
	res := tx.Model(&tenantdomain.Settings{}).
		Where("tenant_id = ?", tenantID).
		Update("next_invoice_seq", gorm.Expr("next_invoice_seq + 1"))
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("tenant %d has no settings row", tenantID)
	}

	var settings tenantdomain.Settings
	if err := tx.First(&settings, "tenant_id = ?", tenantID).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", settings.InvoicePrefix, settings.NextInvoiceSeq-1), nil
}

func (s *Service) buildLines(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice, inputs []domain.LineInput) ([]domain.LineItem, error) {
	if len(inputs) == 0 {
		return nil, domain.ErrNoLines
	}

	lines := make([]domain.LineItem, 0, len(inputs))
	for _, input := range inputs {
		if input.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}

		line := domain.LineItem{
			ID:        s.genID.Generate().Int64(),
			TenantID:  invoice.TenantID,
			InvoiceID: invoice.ID,
			Quantity:  input.Quantity,
			CreatedAt: s.clock.Now(),
		}

		switch {
		case input.ProductID != nil:
			product, err := s.products.FindByID(ctx, tx, *input.ProductID)
			if err != nil {
				return nil, err
			}
			if product == nil {
				return nil, domain.ErrProductNotFound
			}
			line.ProductID = &product.ID
			line.Description = product.Name
			line.UnitPrice = product.UnitPrice
			if input.Description != nil && strings.TrimSpace(*input.Description) != "" {
				line.Description = strings.TrimSpace(*input.Description)
			}
			if input.UnitPrice != nil {
				line.UnitPrice = *input.UnitPrice
			}
		case input.Description != nil && input.UnitPrice != nil:
			// Free-form line, e.g. a service fee.
			line.Description = strings.TrimSpace(*input.Description)
			if line.Description == "" {
				return nil, domain.ErrInvalidLine
			}
			line.UnitPrice = *input.UnitPrice
		default:
			return nil, domain.ErrInvalidLine
		}

		if line.UnitPrice.IsNegative() {
			return nil, domain.ErrInvalidLine
		}
		line.Amount = line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Service) total(invoice *domain.Invoice) {
	subtotal := decimal.Zero
	for _, line := range invoice.Lines {
		subtotal = subtotal.Add(line.Amount)
	}
	invoice.Subtotal = subtotal
	invoice.TaxAmount = subtotal.Mul(invoice.TaxRate).Round(2)
	invoice.Total = subtotal.Add(invoice.TaxAmount)
}

func (s *Service) notifyLifecycle(ctx context.Context, invoice *domain.Invoice, typ notificationdomain.Type, priority notificationdomain.Priority, title, message string) {
	invoiceID := strconv.FormatInt(invoice.ID, 10)
	_, err := s.notifications.Notify(ctx, notificationdomain.NotifyRequest{
		Type:     typ,
		Category: notificationdomain.CategoryInvoice,
		Priority: priority,
		Title:    title,
		Message:  message,
		Entity:   &notificationdomain.EntityRef{Type: "invoice", ID: invoiceID},
	})
	if err != nil {
		s.log.Warn("invoice notification failed",
			zap.Int64("invoice_id", invoice.ID),
			zap.Error(err),
		)
	}
}

func saleMovements(invoice *domain.Invoice) []inventorydomain.RecordRequest {
	return movements(invoice, inventorydomain.MovementSale, -1)
}

func returnMovements(invoice *domain.Invoice) []inventorydomain.RecordRequest {
	return movements(invoice, inventorydomain.MovementReturn, 1)
}

func movements(invoice *domain.Invoice, typ inventorydomain.MovementType, sign int64) []inventorydomain.RecordRequest {
	ref := inventorydomain.Reference{Type: "invoice", ID: strconv.FormatInt(invoice.ID, 10)}
	reqs := make([]inventorydomain.RecordRequest, 0, len(invoice.Lines))
	for _, line := range invoice.Lines {
		if line.ProductID == nil {
			continue
		}
		unitCost := line.UnitPrice
		reqs = append(reqs, inventorydomain.RecordRequest{
			ProductID: *line.ProductID,
			Type:      typ,
			Quantity:  sign * line.Quantity,
			UnitCost:  &unitCost,
			Reference: &ref,
		})
	}
	return reqs
}

func numberOrID(invoice *domain.Invoice) string {
	if invoice.Number != nil {
		return *invoice.Number
	}
	return strconv.FormatInt(invoice.ID, 10)
}
