package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/ledger")

// DefaultOperationTimeout bounds one engine transaction.
const DefaultOperationTimeout = 30 * time.Second

// Engine applies the ledger rules. It is safe for concurrent use: consistency
// of OverallStock comes from row locks taken inside each transaction, never
// from in-process locks.
type Engine struct {
	repo      Repository
	txm       tx.Manager
	seq       *sequencer
	audit     Auditor
	now       func() time.Time
	opTimeout time.Duration
}

// Option customizes an Engine.
type Option func(*Engine)

// WithAuditor records every mutation through a.
func WithAuditor(a Auditor) Option {
	return func(e *Engine) {
		if a != nil {
			e.audit = a
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithOperationTimeout bounds each transaction.
func WithOperationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.opTimeout = d
		}
	}
}

// NewEngine creates a ledger engine. A nil publisher drops events.
func NewEngine(repo Repository, txm tx.Manager, pub Publisher, opts ...Option) *Engine {
	if pub == nil {
		pub = NopPublisher{}
	}
	e := &Engine{
		repo:      repo,
		txm:       txm,
		seq:       newSequencer(pub),
		audit:     nopAuditor{},
		now:       time.Now,
		opTimeout: DefaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// timestamp returns the current time at the precision PostgreSQL stores.
func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

// run executes fn as one transaction and publishes *ev once it committed.
// fn fills ev. The transaction is detached from the caller's cancellation so
// it always finishes as committed or rolled back before run returns.
func (e *Engine) run(ctx context.Context, op string, ev *Event, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attribute.String("ledger.op", op)))
	defer span.End()
	ctx = appctx.WithOperation(ctx, op)

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opTimeout)
	defer cancel()

	var ticket uint64
	defer func() {
		// A ticket that is never resolved would hold back every later event.
		if ticket != 0 {
			e.seq.release(context.WithoutCancel(ctx), ticket, nil)
		}
	}()

	err := e.txm.RunInTransaction(txCtx, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		ticket = e.seq.take()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		return classify(op, err)
	}

	e.seq.release(context.WithoutCancel(ctx), ticket, ev)
	ticket = 0
	return nil
}

// classify keeps domain failures and turns everything else into StoreFailure.
func classify(op string, err error) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr
	}
	return apperror.NewStoreFailure(err).WithDetail("operation", op)
}

// CreateProduct inserts a product with zero stock.
func (e *Engine) CreateProduct(ctx context.Context, in NewProduct) (*Product, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := e.timestamp()
	p := &Product{
		ID:            id.New(),
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price,
		MinStockLevel: in.MinStockLevel,
		OverallStock:  0,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var ev Event
	err := e.run(ctx, "CreateProduct", &ev, func(ctx context.Context) error {
		taken, err := e.repo.ProductNameTaken(ctx, p.Name, id.Nil())
		if err != nil {
			return fmt.Errorf("check product name: %w", err)
		}
		if taken {
			return apperror.NewDuplicateName(EntityProduct, p.Name)
		}
		if err := e.repo.InsertProduct(ctx, p); err != nil {
			return err
		}
		ev = productEvent(ProductAdded, *p, now)
		return e.audit.Record(ctx, AuditRecord{
			EntityType: EntityProduct,
			EntityID:   p.ID,
			Action:     AuditCreate,
			Changes: map[string]any{
				"name":            p.Name,
				"price":           p.Price.String(),
				"min_stock_level": p.MinStockLevel,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "product created", "prod_id", p.ID, "name", p.Name)
	return p, nil
}

// UpdateProduct changes descriptive fields. OverallStock is never touched here.
func (e *Engine) UpdateProduct(ctx context.Context, prodID id.ID, patch ProductPatch) (*Product, error) {
	if patch.IsEmpty() {
		return nil, apperror.NewValidation("no product fields to update")
	}

	now := e.timestamp()
	var updated *Product

	var ev Event
	err := e.run(ctx, "UpdateProduct", &ev, func(ctx context.Context) error {
		p, err := e.repo.GetProductForUpdate(ctx, prodID)
		if err != nil {
			return err
		}

		oldName := p.Name
		changes := patch.applyTo(p)
		if err := validateProductFields(p.Name, p.Price, p.MinStockLevel); err != nil {
			return err
		}
		if !strings.EqualFold(oldName, p.Name) {
			taken, err := e.repo.ProductNameTaken(ctx, p.Name, p.ID)
			if err != nil {
				return fmt.Errorf("check product name: %w", err)
			}
			if taken {
				return apperror.NewDuplicateName(EntityProduct, p.Name)
			}
		}

		p.UpdatedAt = now
		if err := e.repo.UpdateProduct(ctx, p); err != nil {
			return err
		}
		updated = p
		ev = productEvent(ProductUpdated, *p, now)

		return e.audit.Record(ctx, AuditRecord{
			EntityType: EntityProduct,
			EntityID:   p.ID,
			Action:     AuditUpdate,
			Changes:    changes,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "product updated", "prod_id", updated.ID, "version", updated.Version)
	return updated, nil
}

// DeleteProduct removes the product together with its lots, sales records
// and discard history.
func (e *Engine) DeleteProduct(ctx context.Context, prodID id.ID) error {
	now := e.timestamp()
	var (
		name string
		lots int64
		ev   Event
	)

	err := e.run(ctx, "DeleteProduct", &ev, func(ctx context.Context) error {
		p, err := e.repo.GetProductForUpdate(ctx, prodID)
		if err != nil {
			return err
		}
		name = p.Name

		if err := e.repo.DeleteDiscardsByProduct(ctx, prodID); err != nil {
			return err
		}
		if err := e.repo.DeleteSalesRecordsByProduct(ctx, prodID); err != nil {
			return err
		}
		if lots, err = e.repo.DeleteLotsByProduct(ctx, prodID); err != nil {
			return err
		}
		if err := e.repo.DeleteProduct(ctx, prodID); err != nil {
			return err
		}
		ev = Event{
			Kind:       ProductDeleted,
			OccurredAt: now,
			Deleted:    &DeletedRef{ProductID: prodID, ProductName: name},
		}

		return e.audit.Record(ctx, AuditRecord{
			EntityType: EntityProduct,
			EntityID:   prodID,
			Action:     AuditDelete,
			Changes:    map[string]any{"name": name, "lots_removed": lots},
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "product deleted", "prod_id", prodID, "lots_removed", lots)
	return nil
}

// ReceiveLot books a new lot. Rejects are valued at the product's current price.
func (e *Engine) ReceiveLot(ctx context.Context, in ReceiveLotInput) (*LotView, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := e.timestamp()
	var (
		view  LotView
		owner *Product
		ev    Event
	)

	err := e.run(ctx, "ReceiveLot", &ev, func(ctx context.Context) error {
		p, err := e.repo.GetProductForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}

		lot := &StockLot{
			ID:             id.New(),
			ProductID:      p.ID,
			StockReceived:  in.StockReceived,
			RejectStock:    in.RejectStock,
			RemainingStock: in.StockReceived,
			Discarded:      0,
			TotalLosses:    types.LossFor(p.Price, in.RejectStock),
			ExpiryDate:     in.ExpiryDate.UTC(),
			Version:        1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := lot.CheckInvariants(); err != nil {
			return err
		}
		if err := e.repo.InsertLot(ctx, lot); err != nil {
			return err
		}
		if err := e.repo.InsertSalesRecord(ctx, SalesRecord{
			LotID:     lot.ID,
			ProductID: p.ID,
			UnitsSold: 0,
			Revenue:   types.Zero(),
		}); err != nil {
			return err
		}
		if owner, err = e.repo.AdjustOverallStock(ctx, p.ID, lot.RemainingStock); err != nil {
			return err
		}
		view = LotView{StockLot: *lot, ProductName: p.Name}
		ev = lotEvent(LotAdded, view, *owner, now)

		return e.audit.Record(ctx, AuditRecord{
			EntityType: EntityLot,
			EntityID:   lot.ID,
			Action:     AuditReceive,
			Changes: map[string]any{
				"prod_id":        p.ID.String(),
				"stock_received": lot.StockReceived,
				"reject_stock":   lot.RejectStock,
				"unit_price":     p.Price.String(),
				"total_losses":   lot.TotalLosses.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lot received",
		"lot_id", view.ID,
		"prod_id", view.ProductID,
		"stock_received", view.StockReceived,
		"overall_stock", owner.OverallStock,
	)
	return &view, nil
}

// UpdateLot corrects a receiving record.
//
// The corrected received quantity replaces the remaining stock outright and
// the product's overall stock moves by the difference. Reject corrections
// add (newReject-oldReject)*price to the accumulated losses. Lots that already
// have discards cannot be corrected this way: replacing their remaining stock
// would break remaining+discarded <= received.
func (e *Engine) UpdateLot(ctx context.Context, lotID id.ID, c LotCorrection) (*LotView, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	now := e.timestamp()
	var (
		view  LotView
		owner *Product
		ev    Event
	)

	err := e.run(ctx, "UpdateLot", &ev, func(ctx context.Context) error {
		p, lot, err := e.lockLot(ctx, lotID)
		if err != nil {
			return err
		}
		if lot.Discarded > 0 {
			return apperror.NewInvalidAmount("lot has discarded stock and cannot be re-based by a receipt correction").
				WithDetail("lot_id", lot.ID.String()).
				WithDetail("discarded", lot.Discarded)
		}

		stockDelta := c.StockReceived - lot.RemainingStock
		rejectDelta := c.RejectStock - lot.RejectStock
		lossDelta := types.LossFor(p.Price, rejectDelta)
		changes := map[string]any{
			"stock_received": map[string]any{"old": lot.StockReceived, "new": c.StockReceived},
			"reject_stock":   map[string]any{"old": lot.RejectStock, "new": c.RejectStock},
			"stock_delta":    stockDelta,
			"loss_delta":     lossDelta.String(),
		}

		lot.StockReceived = c.StockReceived
		lot.RejectStock = c.RejectStock
		lot.RemainingStock = c.StockReceived
		lot.TotalLosses = lot.TotalLosses.Add(lossDelta)
		lot.ExpiryDate = c.ExpiryDate.UTC()
		lot.UpdatedAt = now
		if err := lot.CheckInvariants(); err != nil {
			return err
		}
		if err := e.repo.UpdateLot(ctx, lot); err != nil {
			return err
		}
		if owner, err = e.repo.AdjustOverallStock(ctx, p.ID, stockDelta); err != nil {
			return err
		}
		view = LotView{StockLot: *lot, ProductName: p.Name}
		ev = lotEvent(LotUpdated, view, *owner, now)

		return e.audit.Record(ctx, AuditRecord{
			EntityType: EntityLot,
			EntityID:   lot.ID,
			Action:     AuditCorrect,
			Changes:    changes,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lot corrected",
		"lot_id", view.ID,
		"remaining_stock", view.RemainingStock,
		"overall_stock", owner.OverallStock,
	)
	return &view, nil
}

// DeleteLot removes a lot and reverses its remaining stock on the product.
func (e *Engine) DeleteLot(ctx context.Context, lotID id.ID) error {
	now := e.timestamp()
	var (
		owner *Product
		ev    Event
	)

	err := e.run(ctx, "DeleteLot", &ev, func(ctx context.Context) error {
		p, lot, err := e.lockLot(ctx, lotID)
		if err != nil {
			return err
		}

		if owner, err = e.repo.AdjustOverallStock(ctx, p.ID, -lot.RemainingStock); err != nil {
			return err
		}
		if err := e.repo.DeleteDiscardsByLot(ctx, lot.ID); err != nil {
			return err
		}
		if err := e.repo.DeleteSalesRecord(ctx, lot.ID); err != nil {
			return err
		}
		if err := e.repo.DeleteLot(ctx, lot.ID); err != nil {
			return err
		}

		lotRef := lot.ID
		ev = Event{
			Kind:       LotDeleted,
			OccurredAt: now,
			Deleted:    &DeletedRef{ProductID: p.ID, ProductName: p.Name, LotID: &lotRef},
			Product:    owner,
		}

		return e.audit.Record(ctx, AuditRecord{
			EntityType: EntityLot,
			EntityID:   lot.ID,
			Action:     AuditDelete,
			Changes: map[string]any{
				"prod_id":         p.ID.String(),
				"remaining_stock": lot.RemainingStock,
			},
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "lot deleted", "lot_id", lotID, "overall_stock", owner.OverallStock)
	return nil
}

// DiscardFromLot removes spoiled or damaged units from a lot and books their
// value as a loss at the product's current price.
func (e *Engine) DiscardFromLot(ctx context.Context, lotID id.ID, amount int64) (*LotView, error) {
	if amount <= 0 {
		return nil, apperror.NewInvalidAmount("discard amount must be positive").
			WithDetail("amount", amount)
	}

	now := e.timestamp()
	var (
		view   LotView
		owner  *Product
		record DiscardRecord
		ev     Event
	)

	err := e.run(ctx, "DiscardFromLot", &ev, func(ctx context.Context) error {
		p, lot, err := e.lockLot(ctx, lotID)
		if err != nil {
			return err
		}
		if amount > lot.RemainingStock {
			return apperror.NewInvalidAmount("discard amount cannot be greater than remaining stock").
				WithDetail("lot_id", lot.ID.String()).
				WithDetail("requested", amount).
				WithDetail("available", lot.RemainingStock)
		}

		loss := types.LossFor(p.Price, amount)
		lot.RemainingStock -= amount
		lot.Discarded += amount
		lot.TotalLosses = lot.TotalLosses.Add(loss)
		lot.UpdatedAt = now
		if err := lot.CheckInvariants(); err != nil {
			return err
		}
		if err := e.repo.UpdateLot(ctx, lot); err != nil {
			return err
		}

		record = DiscardRecord{
			ID:          id.New(),
			LotID:       lot.ID,
			ProductID:   p.ID,
			Amount:      amount,
			UnitPrice:   p.Price,
			Loss:        loss,
			DiscardedAt: now,
		}
		if err := e.repo.InsertDiscard(ctx, &record); err != nil {
			return err
		}
		if owner, err = e.repo.AdjustOverallStock(ctx, p.ID, -amount); err != nil {
			return err
		}
		view = LotView{StockLot: *lot, ProductName: p.Name}
		ev = lotEvent(LotDiscarded, view, *owner, now)
		ev.Discard = &record

		return e.audit.Record(ctx, AuditRecord{
			EntityType: EntityLot,
			EntityID:   lot.ID,
			Action:     AuditDiscard,
			Changes: map[string]any{
				"amount":          amount,
				"loss":            loss.String(),
				"remaining_stock": lot.RemainingStock,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock discarded",
		"lot_id", view.ID,
		"amount", amount,
		"remaining_stock", view.RemainingStock,
		"overall_stock", owner.OverallStock,
	)
	return &view, nil
}

// lockLot locks the owning product row and then the lot row.
// Every writer takes locks in this order, so lot operations on one product
// serialize without deadlocking against each other or against DeleteProduct.
func (e *Engine) lockLot(ctx context.Context, lotID id.ID) (*Product, *StockLot, error) {
	current, err := e.repo.GetLot(ctx, lotID)
	if err != nil {
		return nil, nil, err
	}
	p, err := e.repo.GetProductForUpdate(ctx, current.ProductID)
	if err != nil {
		return nil, nil, err
	}
	lot, err := e.repo.GetLotForUpdate(ctx, lotID)
	if err != nil {
		return nil, nil, err
	}
	return p, lot, nil
}
