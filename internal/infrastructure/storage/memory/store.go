// Package memory is an in-process ledger store. It backs tests, demos and the
// server's memory mode.
//
// Transactions are serialized: a transaction works on a private copy of the
// state and swaps it in on success, so a failed transaction leaves nothing
// behind.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

type state struct {
	products map[id.ID]ledger.Product
	lots     map[id.ID]ledger.StockLot
	sales    map[id.ID]ledger.SalesRecord // by lot
	discards map[id.ID][]ledger.DiscardRecord
	audit    []ledger.AuditRecord
}

func newState() *state {
	return &state{
		products: make(map[id.ID]ledger.Product),
		lots:     make(map[id.ID]ledger.StockLot),
		sales:    make(map[id.ID]ledger.SalesRecord),
		discards: make(map[id.ID][]ledger.DiscardRecord),
	}
}

func (s *state) clone() *state {
	c := &state{
		products: make(map[id.ID]ledger.Product, len(s.products)),
		lots:     make(map[id.ID]ledger.StockLot, len(s.lots)),
		sales:    make(map[id.ID]ledger.SalesRecord, len(s.sales)),
		discards: make(map[id.ID][]ledger.DiscardRecord, len(s.discards)),
		audit:    append([]ledger.AuditRecord(nil), s.audit...),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.lots {
		c.lots[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.discards {
		c.discards[k] = append([]ledger.DiscardRecord(nil), v...)
	}
	return c
}

// Store implements ledger.Repository, tx.Manager and ledger.Auditor.
type Store struct {
	txMu sync.Mutex // held for the whole of a transaction

	mu        sync.RWMutex
	committed *state
	failNext  error
}

var (
	_ ledger.Repository = (*Store)(nil)
	_ ledger.Auditor    = (*Store)(nil)
	_ tx.Manager        = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{committed: newState()}
}

type stateKey struct{}

// RunInTransaction implements tx.Manager.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(stateKey{}).(*state); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.committed.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, stateKey{}, work)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.committed = work
	return nil
}

// FailNextCommit makes the next transaction roll back at commit with err.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// read runs fn on the transaction's working copy, or on committed state
// under a read lock.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if st, ok := ctx.Value(stateKey{}).(*state); ok {
		return fn(st)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.committed)
}

// write requires a transaction.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	st, ok := ctx.Value(stateKey{}).(*state)
	if !ok {
		return errors.New("memory store: write outside transaction")
	}
	return fn(st)
}

// --- Products ---

func (s *Store) InsertProduct(ctx context.Context, p *ledger.Product) error {
	return s.write(ctx, func(st *state) error {
		if _, exists := st.products[p.ID]; exists {
			return apperror.NewInternal(errors.New("product id already exists"))
		}
		if nameTaken(st, p.Name, p.ID) {
			return apperror.NewDuplicateName(ledger.EntityProduct, p.Name)
		}
		st.products[p.ID] = *p
		return nil
	})
}

func (s *Store) UpdateProduct(ctx context.Context, p *ledger.Product) error {
	return s.write(ctx, func(st *state) error {
		cur, ok := st.products[p.ID]
		if !ok {
			return apperror.NewNotFound(ledger.EntityProduct, p.ID)
		}
		if nameTaken(st, p.Name, p.ID) {
			return apperror.NewDuplicateName(ledger.EntityProduct, p.Name)
		}
		cur.Name = p.Name
		cur.Description = p.Description
		cur.Price = p.Price
		cur.MinStockLevel = p.MinStockLevel
		cur.UpdatedAt = p.UpdatedAt
		cur.Version++
		st.products[p.ID] = cur
		*p = cur
		return nil
	})
}

func (s *Store) GetProduct(ctx context.Context, prodID id.ID) (*ledger.Product, error) {
	var out ledger.Product
	err := s.read(ctx, func(st *state) error {
		p, ok := st.products[prodID]
		if !ok {
			return apperror.NewNotFound(ledger.EntityProduct, prodID)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProductForUpdate is GetProduct: transactions are already serialized.
func (s *Store) GetProductForUpdate(ctx context.Context, prodID id.ID) (*ledger.Product, error) {
	return s.GetProduct(ctx, prodID)
}

func (s *Store) ProductNameTaken(ctx context.Context, name string, exclude id.ID) (bool, error) {
	var taken bool
	err := s.read(ctx, func(st *state) error {
		taken = nameTaken(st, name, exclude)
		return nil
	})
	return taken, err
}

func nameTaken(st *state, name string, exclude id.ID) bool {
	for _, p := range st.products {
		if p.ID != exclude && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) AdjustOverallStock(ctx context.Context, prodID id.ID, delta int64) (*ledger.Product, error) {
	var out ledger.Product
	err := s.write(ctx, func(st *state) error {
		p, ok := st.products[prodID]
		if !ok {
			return apperror.NewNotFound(ledger.EntityProduct, prodID)
		}
		if p.OverallStock+delta < 0 {
			return apperror.NewInvalidAmount("overall stock would become negative").
				WithDetail("prod_id", prodID.String())
		}
		p.OverallStock += delta
		p.Version++
		st.products[prodID] = p
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) DeleteProduct(ctx context.Context, prodID id.ID) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.products[prodID]; !ok {
			return apperror.NewNotFound(ledger.EntityProduct, prodID)
		}
		delete(st.products, prodID)
		return nil
	})
}

func (s *Store) ListProducts(ctx context.Context) ([]ledger.ProductSummary, error) {
	var out []ledger.ProductSummary
	err := s.read(ctx, func(st *state) error {
		out = make([]ledger.ProductSummary, 0, len(st.products))
		for _, p := range st.products {
			item := ledger.ProductSummary{Product: p}
			for _, rec := range st.sales {
				if rec.ProductID == p.ID {
					item.TotalSold += rec.UnitsSold
				}
			}
			out = append(out, item)
		}
		sort.Slice(out, func(i, j int) bool {
			return newer(out[i].CreatedAt.UnixNano(), out[j].CreatedAt.UnixNano(), out[i].ID, out[j].ID)
		})
		return nil
	})
	return out, err
}

func (s *Store) GetProductDetail(ctx context.Context, prodID id.ID) (*ledger.ProductDetail, error) {
	var out ledger.ProductDetail
	err := s.read(ctx, func(st *state) error {
		p, ok := st.products[prodID]
		if !ok {
			return apperror.NewNotFound(ledger.EntityProduct, prodID)
		}
		out = ledger.ProductDetail{
			Product:      p,
			TotalRevenue: types.Zero(),
			TotalLosses:  types.Zero(),
		}
		for _, lot := range st.lots {
			if lot.ProductID != prodID {
				continue
			}
			out.LotCount++
			out.TotalRemaining += lot.RemainingStock
			out.TotalDiscarded += lot.Discarded
			out.TotalLosses = out.TotalLosses.Add(lot.TotalLosses)
			if rec, ok := st.sales[lot.ID]; ok {
				out.TotalSold += rec.UnitsSold
				out.TotalRevenue = out.TotalRevenue.Add(rec.Revenue)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) StockDrifts(ctx context.Context) ([]ledger.StockDrift, error) {
	var out []ledger.StockDrift
	err := s.read(ctx, func(st *state) error {
		remaining := make(map[id.ID]int64, len(st.products))
		for _, lot := range st.lots {
			remaining[lot.ProductID] += lot.RemainingStock
		}
		for _, p := range st.products {
			if p.OverallStock != remaining[p.ID] {
				out = append(out, ledger.StockDrift{
					ProductID:    p.ID,
					ProductName:  p.Name,
					OverallStock: p.OverallStock,
					LotRemaining: remaining[p.ID],
				})
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ProductName < out[j].ProductName })
		return nil
	})
	return out, err
}

// --- Lots ---

func (s *Store) InsertLot(ctx context.Context, lot *ledger.StockLot) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.products[lot.ProductID]; !ok {
			return apperror.NewNotFound(ledger.EntityProduct, lot.ProductID)
		}
		if _, exists := st.lots[lot.ID]; exists {
			return apperror.NewInternal(errors.New("lot id already exists"))
		}
		st.lots[lot.ID] = *lot
		return nil
	})
}

func (s *Store) UpdateLot(ctx context.Context, lot *ledger.StockLot) error {
	return s.write(ctx, func(st *state) error {
		cur, ok := st.lots[lot.ID]
		if !ok {
			return apperror.NewNotFound(ledger.EntityLot, lot.ID)
		}
		cur.StockReceived = lot.StockReceived
		cur.RejectStock = lot.RejectStock
		cur.RemainingStock = lot.RemainingStock
		cur.Discarded = lot.Discarded
		cur.TotalLosses = lot.TotalLosses
		cur.ExpiryDate = lot.ExpiryDate
		cur.UpdatedAt = lot.UpdatedAt
		cur.Version++
		st.lots[lot.ID] = cur
		*lot = cur
		return nil
	})
}

func (s *Store) GetLot(ctx context.Context, lotID id.ID) (*ledger.LotView, error) {
	var out ledger.LotView
	err := s.read(ctx, func(st *state) error {
		lot, ok := st.lots[lotID]
		if !ok {
			return apperror.NewNotFound(ledger.EntityLot, lotID)
		}
		out = ledger.LotView{StockLot: lot, ProductName: st.products[lot.ProductID].Name}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetLotForUpdate(ctx context.Context, lotID id.ID) (*ledger.StockLot, error) {
	view, err := s.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	return &view.StockLot, nil
}

func (s *Store) DeleteLot(ctx context.Context, lotID id.ID) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.lots[lotID]; !ok {
			return apperror.NewNotFound(ledger.EntityLot, lotID)
		}
		delete(st.lots, lotID)
		return nil
	})
}

func (s *Store) DeleteLotsByProduct(ctx context.Context, prodID id.ID) (int64, error) {
	var n int64
	err := s.write(ctx, func(st *state) error {
		for lotID, lot := range st.lots {
			if lot.ProductID == prodID {
				delete(st.lots, lotID)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) ListLots(ctx context.Context) ([]ledger.LotView, error) {
	var out []ledger.LotView
	err := s.read(ctx, func(st *state) error {
		out = make([]ledger.LotView, 0, len(st.lots))
		for _, lot := range st.lots {
			out = append(out, ledger.LotView{StockLot: lot, ProductName: st.products[lot.ProductID].Name})
		}
		sort.Slice(out, func(i, j int) bool {
			return newer(out[i].CreatedAt.UnixNano(), out[j].CreatedAt.UnixNano(), out[i].ID, out[j].ID)
		})
		return nil
	})
	return out, err
}

// --- Sales records ---

func (s *Store) InsertSalesRecord(ctx context.Context, rec ledger.SalesRecord) error {
	return s.write(ctx, func(st *state) error {
		st.sales[rec.LotID] = rec
		return nil
	})
}

func (s *Store) DeleteSalesRecord(ctx context.Context, lotID id.ID) error {
	return s.write(ctx, func(st *state) error {
		delete(st.sales, lotID)
		return nil
	})
}

func (s *Store) DeleteSalesRecordsByProduct(ctx context.Context, prodID id.ID) error {
	return s.write(ctx, func(st *state) error {
		for lotID, rec := range st.sales {
			if rec.ProductID == prodID {
				delete(st.sales, lotID)
			}
		}
		return nil
	})
}

// --- Discards ---

func (s *Store) InsertDiscard(ctx context.Context, rec *ledger.DiscardRecord) error {
	return s.write(ctx, func(st *state) error {
		st.discards[rec.LotID] = append(st.discards[rec.LotID], *rec)
		return nil
	})
}

func (s *Store) ListDiscards(ctx context.Context, lotID id.ID) ([]ledger.DiscardRecord, error) {
	var out []ledger.DiscardRecord
	err := s.read(ctx, func(st *state) error {
		out = append([]ledger.DiscardRecord{}, st.discards[lotID]...)
		return nil
	})
	return out, err
}

func (s *Store) DeleteDiscardsByLot(ctx context.Context, lotID id.ID) error {
	return s.write(ctx, func(st *state) error {
		delete(st.discards, lotID)
		return nil
	})
}

func (s *Store) DeleteDiscardsByProduct(ctx context.Context, prodID id.ID) error {
	return s.write(ctx, func(st *state) error {
		for lotID, recs := range st.discards {
			if len(recs) > 0 && recs[0].ProductID == prodID {
				delete(st.discards, lotID)
			}
		}
		return nil
	})
}

// --- Audit ---

// Record implements ledger.Auditor.
func (s *Store) Record(ctx context.Context, rec ledger.AuditRecord) error {
	return s.write(ctx, func(st *state) error {
		st.audit = append(st.audit, rec)
		return nil
	})
}

// AuditLog returns the committed audit records in write order.
func (s *Store) AuditLog() []ledger.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ledger.AuditRecord(nil), s.committed.audit...)
}

// newer orders newest first; UUIDv7 ids break ties in creation order.
func newer(ti, tj int64, idi, idj id.ID) bool {
	if ti != tj {
		return ti > tj
	}
	return strings.Compare(idi.String(), idj.String()) > 0
}
