// Package testutil provides in-memory repositories that honour the same
// uniqueness, foreign key and transaction rules as the MySQL schema.
package testutil

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmehdipour/isp-billing/internal/model"
	"github.com/jmehdipour/isp-billing/internal/repository"
	"github.com/jmoiron/sqlx"
)

type tables struct {
	plans     map[int64]model.ServicePlan
	customers map[int64]model.Customer
	billing   map[int64]model.BillingRecord
	radius    map[int64]model.RadiusAttribute
	outbox    []model.OutboxEvent
	nextID    int64
}

func (t tables) clone() tables {
	return tables{
		plans:     maps.Clone(t.plans),
		customers: maps.Clone(t.customers),
		billing:   maps.Clone(t.billing),
		radius:    maps.Clone(t.radius),
		outbox:    append([]model.OutboxEvent(nil), t.outbox...),
		nextID:    t.nextID,
	}
}

// Memory is an in-process database. InTx restores the previous state when fn fails.
type Memory struct {
	txMu sync.Mutex // one transaction at a time
	mu   sync.Mutex
	t    tables

	Plans     *Plans
	Customers *Customers
	Billing   *Billing
	Radius    *Radius
	Outbox    *Outbox
	Dashboard *Dashboard
}

func NewMemory() *Memory {
	m := &Memory{t: tables{
		plans:     map[int64]model.ServicePlan{},
		customers: map[int64]model.Customer{},
		billing:   map[int64]model.BillingRecord{},
		radius:    map[int64]model.RadiusAttribute{},
	}}
	m.Plans = &Plans{m}
	m.Customers = &Customers{m}
	m.Billing = &Billing{m}
	m.Radius = &Radius{m}
	m.Outbox = &Outbox{m}
	m.Dashboard = &Dashboard{m}
	return m
}

func (m *Memory) InTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.t.clone()
	m.mu.Unlock()

	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.t = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) id() int64 {
	m.t.nextID++
	return m.t.nextID
}

func dup(key string) error {
	return &repository.DuplicateError{Key: key, Err: errors.New("Duplicate entry for key '" + key + "'")}
}

func fk() error {
	return errors.Join(repository.ErrForeignKey, errors.New("foreign key constraint fails"))
}

func window[T any](rows []T, p repository.Page) []T {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 10
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Offset >= len(rows) {
		return nil
	}
	end := min(p.Offset+p.Limit, len(rows))
	return rows[p.Offset:end]
}

func newestFirst(ai, bi int64, at, bt time.Time) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return ai > bi
}

// ---- plans ----

type Plans struct{ m *Memory }

var _ repository.PlansRepository = (*Plans)(nil)

func (r *Plans) List(_ context.Context, f repository.PlanFilter) ([]model.ServicePlan, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var rows []model.ServicePlan
	for _, p := range r.m.t.plans {
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool { return newestFirst(rows[i].ID, rows[j].ID, rows[i].CreatedAt, rows[j].CreatedAt) })
	return window(rows, f.Page), int64(len(rows)), nil
}

func (r *Plans) Get(_ context.Context, _ *sqlx.Tx, id int64) (*model.ServicePlan, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.t.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *Plans) checkName(p *model.ServicePlan) error {
	for _, o := range r.m.t.plans {
		if o.ID != p.ID && o.Name == p.Name {
			return dup("service_plans.uq_service_plans_name")
		}
	}
	return nil
}

func (r *Plans) Insert(_ context.Context, _ *sqlx.Tx, p *model.ServicePlan) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.checkName(p); err != nil {
		return err
	}
	p.ID = r.m.id()
	r.m.t.plans[p.ID] = *p
	return nil
}

func (r *Plans) Update(_ context.Context, _ *sqlx.Tx, p *model.ServicePlan) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.t.plans[p.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.checkName(p); err != nil {
		return err
	}
	r.m.t.plans[p.ID] = *p
	return nil
}

func (r *Plans) Delete(_ context.Context, _ *sqlx.Tx, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.t.plans[id]; !ok {
		return repository.ErrNotFound
	}
	for _, c := range r.m.t.customers {
		if c.ServicePlanID == id {
			return fk()
		}
	}
	delete(r.m.t.plans, id)
	return nil
}

func (r *Plans) CountCustomers(_ context.Context, _ *sqlx.Tx, planID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, c := range r.m.t.customers {
		if c.ServicePlanID == planID {
			n++
		}
	}
	return n, nil
}

// ---- customers ----

type Customers struct{ m *Memory }

var _ repository.CustomersRepository = (*Customers)(nil)

func (r *Customers) sorted(keep func(model.Customer) bool) []model.Customer {
	var rows []model.Customer
	for _, c := range r.m.t.customers {
		if keep(c) {
			rows = append(rows, c)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return newestFirst(rows[i].ID, rows[j].ID, rows[i].CreatedAt, rows[j].CreatedAt) })
	return rows
}

func (r *Customers) List(_ context.Context, f repository.CustomerFilter) ([]model.Customer, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rows := r.sorted(func(c model.Customer) bool {
		return (f.Status == "" || c.Status == f.Status) && (f.PlanID == 0 || c.ServicePlanID == f.PlanID)
	})
	return window(rows, f.Page), int64(len(rows)), nil
}

func (r *Customers) Get(_ context.Context, _ *sqlx.Tx, id int64) (*model.Customer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.t.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *Customers) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error) {
	return r.Get(ctx, tx, id)
}

func (r *Customers) ListByPlan(_ context.Context, _ *sqlx.Tx, planID int64) ([]model.Customer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rows := r.sorted(func(c model.Customer) bool { return c.ServicePlanID == planID })
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (r *Customers) LatestByPlan(_ context.Context, planID int64, limit int) ([]model.Customer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rows := r.sorted(func(c model.Customer) bool { return c.ServicePlanID == planID })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *Customers) check(c *model.Customer) error {
	if _, ok := r.m.t.plans[c.ServicePlanID]; !ok {
		return fk()
	}
	for _, o := range r.m.t.customers {
		if o.ID == c.ID {
			continue
		}
		if o.Email == c.Email {
			return dup("customers.uq_customers_email")
		}
		if o.Username == c.Username {
			return dup("customers.uq_customers_username")
		}
	}
	return nil
}

func (r *Customers) Insert(_ context.Context, _ *sqlx.Tx, c *model.Customer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.check(c); err != nil {
		return err
	}
	c.ID = r.m.id()
	r.m.t.customers[c.ID] = *c
	return nil
}

func (r *Customers) Update(_ context.Context, _ *sqlx.Tx, c *model.Customer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.t.customers[c.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.check(c); err != nil {
		return err
	}
	r.m.t.customers[c.ID] = *c
	return nil
}

func (r *Customers) Delete(_ context.Context, _ *sqlx.Tx, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.t.customers[id]; !ok {
		return repository.ErrNotFound
	}
	for _, b := range r.m.t.billing {
		if b.CustomerID == id {
			return fk()
		}
	}
	delete(r.m.t.customers, id)
	// radius_users.customer_id is ON DELETE SET NULL
	for rid, a := range r.m.t.radius {
		if a.CustomerID != nil && *a.CustomerID == id {
			a.CustomerID = nil
			r.m.t.radius[rid] = a
		}
	}
	return nil
}

// ---- billing ----

type Billing struct{ m *Memory }

var _ repository.BillingRepository = (*Billing)(nil)

func (r *Billing) sorted(keep func(model.BillingRecord) bool) []model.BillingRecord {
	var rows []model.BillingRecord
	for _, b := range r.m.t.billing {
		if keep(b) {
			rows = append(rows, b)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return newestFirst(rows[i].ID, rows[j].ID, rows[i].CreatedAt, rows[j].CreatedAt) })
	return rows
}

func (r *Billing) List(_ context.Context, f repository.BillingFilter) ([]model.BillingRecord, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rows := r.sorted(func(b model.BillingRecord) bool {
		return (f.Status == "" || b.Status == f.Status) && (f.CustomerID == 0 || b.CustomerID == f.CustomerID)
	})
	return window(rows, f.Page), int64(len(rows)), nil
}

func (r *Billing) Get(_ context.Context, _ *sqlx.Tx, id int64) (*model.BillingRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.t.billing[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (r *Billing) Insert(_ context.Context, _ *sqlx.Tx, b *model.BillingRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.t.customers[b.CustomerID]; !ok {
		return fk()
	}
	for _, o := range r.m.t.billing {
		if o.InvoiceNumber == b.InvoiceNumber {
			return dup("billing_records.uq_billing_invoice_number")
		}
	}
	b.ID = r.m.id()
	r.m.t.billing[b.ID] = *b
	return nil
}

func (r *Billing) Update(_ context.Context, _ *sqlx.Tx, b *model.BillingRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.t.billing[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.m.t.customers[b.CustomerID]; !ok {
		return fk()
	}
	// invoice_number and created_at are not updatable
	b.InvoiceNumber, b.CreatedAt = cur.InvoiceNumber, cur.CreatedAt
	r.m.t.billing[b.ID] = *b
	return nil
}

func (r *Billing) Delete(_ context.Context, _ *sqlx.Tx, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.t.billing[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.m.t.billing, id)
	return nil
}

func (r *Billing) CountCreatedBetween(_ context.Context, _ *sqlx.Tx, from, to time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, b := range r.m.t.billing {
		if !b.CreatedAt.Before(from) && b.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r *Billing) HighestSequence(_ context.Context, _ *sqlx.Tx, prefix string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var highest int64
	for _, b := range r.m.t.billing {
		suffix, ok := strings.CutPrefix(b.InvoiceNumber, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(suffix, 10, 64); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (r *Billing) CountByCustomer(_ context.Context, _ *sqlx.Tx, customerID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, b := range r.m.t.billing {
		if b.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (r *Billing) LatestByCustomer(_ context.Context, customerID int64, limit int) ([]model.BillingRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rows := r.sorted(func(b model.BillingRecord) bool { return b.CustomerID == customerID })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *Billing) MarkOverdue(_ context.Context, _ *sqlx.Tx, dueBefore, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, b := range r.m.t.billing {
		if b.Status == model.BillingPending && b.DueDate.Before(dueBefore) {
			b.Status = model.BillingOverdue
			b.UpdatedAt = now
			r.m.t.billing[id] = b
			n++
		}
	}
	return n, nil
}

// ---- radius ----

type Radius struct{ m *Memory }

var _ repository.RadiusRepository = (*Radius)(nil)

func (r *Radius) ListByCustomer(_ context.Context, _ *sqlx.Tx, customerID int64) ([]model.RadiusAttribute, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.filter(func(a model.RadiusAttribute) bool { return a.CustomerID != nil && *a.CustomerID == customerID }), nil
}

// ByUsername lists rows as the RADIUS server would see them.
func (r *Radius) ByUsername(username string) []model.RadiusAttribute {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.filter(func(a model.RadiusAttribute) bool { return a.Username == username })
}

// All returns every row ordered by id.
func (r *Radius) All() []model.RadiusAttribute {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.filter(func(model.RadiusAttribute) bool { return true })
}

func (r *Radius) filter(keep func(model.RadiusAttribute) bool) []model.RadiusAttribute {
	var rows []model.RadiusAttribute
	for _, a := range r.m.t.radius {
		if keep(a) {
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func (r *Radius) Upsert(_ context.Context, _ *sqlx.Tx, a *model.RadiusAttribute) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, o := range r.m.t.radius {
		if o.Username == a.Username && o.Attribute == a.Attribute {
			o.Op, o.Value, o.CustomerID, o.UpdatedAt = a.Op, a.Value, a.CustomerID, a.UpdatedAt
			r.m.t.radius[id] = o
			a.ID = id
			return nil
		}
	}
	a.ID = r.m.id()
	r.m.t.radius[a.ID] = *a
	return nil
}

func (r *Radius) Update(_ context.Context, _ *sqlx.Tx, a *model.RadiusAttribute) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.t.radius[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, o := range r.m.t.radius {
		if id != a.ID && o.Username == a.Username && o.Attribute == cur.Attribute {
			return dup("radius_users.uq_radius_username_attribute")
		}
	}
	cur.Username, cur.Op, cur.Value, cur.UpdatedAt = a.Username, a.Op, a.Value, a.UpdatedAt
	r.m.t.radius[a.ID] = cur
	return nil
}

func (r *Radius) DeleteByIDs(_ context.Context, _ *sqlx.Tx, ids []int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.m.t.radius[id]; ok {
			delete(r.m.t.radius, id)
			n++
		}
	}
	return n, nil
}

func (r *Radius) DeleteByCustomer(_ context.Context, _ *sqlx.Tx, customerID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, a := range r.m.t.radius {
		if a.CustomerID != nil && *a.CustomerID == customerID {
			delete(r.m.t.radius, id)
			n++
		}
	}
	return n, nil
}

// ---- outbox ----

type Outbox struct{ m *Memory }

var _ repository.OutboxRepository = (*Outbox)(nil)

func (r *Outbox) Insert(_ context.Context, _ *sqlx.Tx, ev *model.OutboxEvent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ev.ID = r.m.id()
	r.m.t.outbox = append(r.m.t.outbox, *ev)
	return nil
}

// Events returns the committed outbox rows in insertion order.
func (r *Outbox) Events() []model.OutboxEvent {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return append([]model.OutboxEvent(nil), r.m.t.outbox...)
}

// ---- dashboard ----

type Dashboard struct{ m *Memory }

var _ repository.DashboardRepository = (*Dashboard)(nil)

func (r *Dashboard) Stats(_ context.Context, monthStart, monthEnd time.Time) (model.DashboardStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var s model.DashboardStats
	for _, c := range r.m.t.customers {
		s.TotalCustomers++
		if c.Status == model.CustomerActive {
			s.ActiveCustomers++
		}
	}
	for _, p := range r.m.t.plans {
		s.TotalPlans++
		if p.IsActive {
			s.ActivePlans++
		}
	}
	for _, b := range r.m.t.billing {
		switch b.Status {
		case model.BillingPending:
			s.PendingInvoices++
		case model.BillingOverdue:
			s.OverdueInvoices++
		case model.BillingPaid:
			s.TotalRevenue = s.TotalRevenue.Add(b.Amount)
			if b.PaidDate != nil && !b.PaidDate.Before(monthStart) && b.PaidDate.Before(monthEnd) {
				s.MonthlyRevenue = s.MonthlyRevenue.Add(b.Amount)
			}
		}
	}
	return s, nil
}

func (r *Dashboard) RecentCustomers(ctx context.Context, limit int) ([]model.Customer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rows := r.m.Customers.sorted(func(model.Customer) bool { return true })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *Dashboard) RecentBilling(ctx context.Context, limit int) ([]model.BillingRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rows := r.m.Billing.sorted(func(model.BillingRecord) bool { return true })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *Dashboard) PendingDueBefore(_ context.Context, day time.Time, limit int) ([]model.BillingRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rows := r.m.Billing.sorted(func(b model.BillingRecord) bool {
		return b.Status == model.BillingPending && b.DueDate.Before(day)
	})
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].DueDate.Equal(rows[j].DueDate) {
			return rows[i].DueDate.Before(rows[j].DueDate)
		}
		return rows[i].ID < rows[j].ID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
