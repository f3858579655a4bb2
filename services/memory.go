package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"hostel-market/models"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps the catalog, ledger and users in process memory. It backs the
// hostel variant and the kernel tests. A single mutex serializes all access, and
// InTx holds it for the whole unit of work while logging undo steps.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]models.Product
	orders   map[string]models.Order
	users    map[int64]models.User
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]models.Product),
		orders:   make(map[string]models.Order),
		users:    make(map[int64]models.User),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for CreatedAt/UpdatedAt stamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) Catalog() Catalog { return memCatalog{memView{s: s}} }
func (s *MemoryStore) Ledger() Ledger   { return memLedger{memView{s: s}} }
func (s *MemoryStore) Users() Users     { return memUsers{memView{s: s}} }

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{}
	err := fn(memView{s: s, tx: tx})
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
	}
	return err
}

type memTx struct {
	undo []func()
}

// memView is either a standalone handle (tx == nil, each call locks) or a view
// inside InTx (lock already held, writes record an undo step).
type memView struct {
	s  *MemoryStore
	tx *memTx
}

func (v memView) Catalog() Catalog { return memCatalog{v} }
func (v memView) Ledger() Ledger   { return memLedger{v} }
func (v memView) Users() Users     { return memUsers{v} }

func (v memView) lock() func() {
	if v.tx != nil {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

func (v memView) onRollback(f func()) {
	if v.tx != nil {
		v.tx.undo = append(v.tx.undo, f)
	}
}

type memCatalog struct{ memView }

func (c memCatalog) Get(_ context.Context, code string) (models.Product, error) {
	defer c.lock()()
	p, ok := c.s.products[code]
	if !ok {
		return models.Product{}, ErrProductNotFound
	}
	return p, nil
}

func (c memCatalog) Put(_ context.Context, p models.Product) error {
	defer c.lock()()
	prev, existed := c.s.products[p.Code]
	if p.CreatedAt.IsZero() {
		p.CreatedAt = c.s.now()
	}
	c.s.products[p.Code] = p
	c.onRollback(func() {
		if existed {
			c.s.products[p.Code] = prev
		} else {
			delete(c.s.products, p.Code)
		}
	})
	return nil
}

func (c memCatalog) Delete(_ context.Context, code string) error {
	defer c.lock()()
	prev, ok := c.s.products[code]
	if !ok {
		return ErrProductNotFound
	}
	delete(c.s.products, code)
	c.onRollback(func() { c.s.products[code] = prev })
	return nil
}

func (c memCatalog) Delist(_ context.Context, code string) error {
	defer c.lock()()
	p, ok := c.s.products[code]
	if !ok || !p.Active {
		return ErrProductNotFound
	}
	p.Active = false
	c.s.products[code] = p
	c.onRollback(func() {
		p := c.s.products[code]
		p.Active = true
		c.s.products[code] = p
	})
	return nil
}

func (c memCatalog) AdjustStock(_ context.Context, code string, delta int) (int, error) {
	defer c.lock()()
	p, ok := c.s.products[code]
	if !ok {
		return 0, ErrProductNotFound
	}
	next := p.Stock + delta
	if next < 0 {
		return p.Stock, ErrInsufficientStock
	}
	old := p.Stock
	p.Stock = next
	c.s.products[code] = p
	c.onRollback(func() {
		p := c.s.products[code]
		p.Stock = old
		c.s.products[code] = p
	})
	return next, nil
}

func (c memCatalog) SetProfit(_ context.Context, code string, margin decimal.Decimal) error {
	defer c.lock()()
	p, ok := c.s.products[code]
	if !ok {
		return ErrProductNotFound
	}
	old := p.ProfitMargin
	p.ProfitMargin = margin
	c.s.products[code] = p
	c.onRollback(func() {
		p := c.s.products[code]
		p.ProfitMargin = old
		c.s.products[code] = p
	})
	return nil
}

func (c memCatalog) ListActive(_ context.Context, page, pageSize int) (models.ProductPage, error) {
	defer c.lock()()
	page, pageSize = normalizePage(page, pageSize)
	var active []models.Product
	for _, p := range c.s.products {
		if p.Active {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].Code < active[j].Code
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	out := models.ProductPage{Page: page, PageSize: pageSize, Total: len(active)}
	start := (page - 1) * pageSize
	if start < len(active) {
		end := start + pageSize
		if end > len(active) {
			end = len(active)
		}
		out.Items = active[start:end]
	}
	return out, nil
}

type memLedger struct{ memView }

func (l memLedger) Insert(_ context.Context, o models.Order) error {
	defer l.lock()()
	if _, ok := l.s.orders[o.ID]; ok {
		return ErrDuplicateOrder
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = l.s.now()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	l.s.orders[o.ID] = o
	l.onRollback(func() { delete(l.s.orders, o.ID) })
	return nil
}

func (l memLedger) UpdateStatus(_ context.Context, id string, to models.OrderStatus, reason string) (models.Order, error) {
	defer l.lock()()
	o, ok := l.s.orders[id]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	if !models.CanTransition(o.Status, to, true) {
		return o, ErrInvalidTransition
	}
	prev := o
	o.Status = to
	if reason != "" {
		o.Reason = reason
	}
	o.UpdatedAt = l.s.now()
	l.s.orders[id] = o
	l.onRollback(func() { l.s.orders[id] = prev })
	return o, nil
}

func (l memLedger) Get(_ context.Context, id string) (models.Order, error) {
	defer l.lock()()
	o, ok := l.s.orders[id]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (l memLedger) List(_ context.Context, f models.OrderFilter) ([]models.Order, error) {
	defer l.lock()()
	var out []models.Order
	for _, o := range l.s.orders {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.PageSize > 0 {
		page, size := normalizePage(f.Page, f.PageSize)
		start := (page - 1) * size
		if start >= len(out) {
			return nil, nil
		}
		end := start + size
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, nil
}

func (l memLedger) Stats(_ context.Context, since, until time.Time) (models.DailyStats, error) {
	defer l.lock()()
	f := models.OrderFilter{Since: since, Until: until}
	st := models.DailyStats{Revenue: decimal.Zero, Profit: decimal.Zero}
	for _, o := range l.s.orders {
		if !f.Match(o) {
			continue
		}
		if o.Status == models.OrderStatusCancelled {
			st.CancelledCount++
			continue
		}
		st.OrdersCount++
		st.Revenue = st.Revenue.Add(o.Total)
		st.Profit = st.Profit.Add(o.Profit)
	}
	return st, nil
}

type memUsers struct{ memView }

func (u memUsers) Get(_ context.Context, id int64) (models.User, error) {
	defer u.lock()()
	usr, ok := u.s.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return usr, nil
}

func (u memUsers) Ensure(_ context.Context, in models.User) (models.User, error) {
	defer u.lock()()
	usr, ok := u.s.users[in.ID]
	prev := usr
	if !ok {
		usr = models.User{ID: in.ID, Currency: models.CurrencyINR, JoinedAt: u.s.now()}
		if in.Currency != "" {
			usr.Currency = in.Currency
		}
	}
	if in.DisplayName != "" {
		usr.DisplayName = in.DisplayName
	}
	if in.Username != "" {
		usr.Username = in.Username
	}
	u.s.users[in.ID] = usr
	u.onRollback(func() {
		if ok {
			u.s.users[in.ID] = prev
		} else {
			delete(u.s.users, in.ID)
		}
	})
	return usr, nil
}

func (u memUsers) update(id int64, fn func(*models.User)) error {
	defer u.lock()()
	usr, ok := u.s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	prev := usr
	fn(&usr)
	u.s.users[id] = usr
	u.onRollback(func() { u.s.users[id] = prev })
	return nil
}

func (u memUsers) SetAddress(_ context.Context, id int64, address string) error {
	return u.update(id, func(usr *models.User) { usr.Address = address })
}

func (u memUsers) SetCurrency(_ context.Context, id int64, c models.Currency) error {
	return u.update(id, func(usr *models.User) { usr.Currency = c })
}

func (u memUsers) SetBanned(_ context.Context, id int64, banned bool) error {
	return u.update(id, func(usr *models.User) { usr.Banned = banned })
}

func (u memUsers) List(_ context.Context, page, pageSize int) ([]models.User, int, error) {
	defer u.lock()()
	page, pageSize = normalizePage(page, pageSize)
	all := make([]models.User, 0, len(u.s.users))
	for _, usr := range u.s.users {
		all = append(all, usr)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].JoinedAt.Equal(all[j].JoinedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].JoinedAt.Before(all[j].JoinedAt)
	})
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, len(all), nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}
