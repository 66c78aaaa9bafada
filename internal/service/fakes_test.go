package service_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linemk/ecommerce-api/internal/domain/models"
	"github.com/linemk/ecommerce-api/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserRepo struct {
	users map[uuid.UUID]*models.User
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUserRepo) add(name, email string) *models.User {
	user := &models.User{ID: uuid.New(), Name: name, Email: email, PassHash: []byte("hashed")}
	f.users[user.ID] = user
	return user
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (f *fakeUserRepo) GetUserByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.User, error) {
	return f.GetUserByID(ctx, id)
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	all := make([]*models.User, 0, len(f.users))
	for _, u := range f.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	if offset >= len(all) {
		return []*models.User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if _, err := f.GetUserByEmail(ctx, user.Email); err == nil {
		return nil, storage.ErrUserExists
	}
	user.ID = uuid.New()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) UpdateUser(ctx context.Context, user *models.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return storage.ErrUserNotFound
	}
	for id, u := range f.users {
		if id != user.ID && u.Email == user.Email {
			return storage.ErrUserExists
		}
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return storage.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

type fakeProductRepo struct {
	products map[uuid.UUID]*models.Product
	locked   map[uuid.UUID]bool
	// lockModes — forUpdate каждого вызова LockProductByIDTx
	lockModes []bool
	// stale — устаревшие копии, которые отдаёт GetProductByID (как кэш после списания остатка)
	stale map[uuid.UUID]*models.Product
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{
		products: make(map[uuid.UUID]*models.Product),
		locked:   make(map[uuid.UUID]bool),
	}
}

func (f *fakeProductRepo) add(name, price string, stock int) *models.Product {
	product := &models.Product{
		ID:    uuid.New(),
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	f.products[product.ID] = product
	return product
}

func (f *fakeProductRepo) ListProducts(ctx context.Context) ([]*models.Product, error) {
	var out []*models.Product
	for _, p := range f.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeProductRepo) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := f.stale[id]; ok {
		cp := *product
		return &cp, nil
	}
	return f.current(id)
}

func (f *fakeProductRepo) current(id uuid.UUID) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	cp := *product
	return &cp, nil
}

func (f *fakeProductRepo) LockProductByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, forUpdate bool) (*models.Product, error) {
	f.lockModes = append(f.lockModes, forUpdate)
	if f.locked[id] {
		return nil, storage.ErrResourceLocked
	}
	return f.current(id)
}

func (f *fakeProductRepo) DecrementStockTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	product, ok := f.products[id]
	if !ok || product.Stock <= 0 {
		return storage.ErrOutOfStock
	}
	product.Stock--
	return nil
}

func (f *fakeProductRepo) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	for _, p := range f.products {
		if p.Name == product.Name {
			return nil, storage.ErrProductExists
		}
	}
	product.ID = uuid.New()
	cp := *product
	f.products[product.ID] = &cp
	return product, nil
}

func (f *fakeProductRepo) UpdateProductFunc(ctx context.Context, id uuid.UUID, apply func(*models.Product) error) (*models.Product, error) {
	product, err := f.LockProductByIDTx(ctx, nil, id, true)
	if err != nil {
		return nil, err
	}
	if err := apply(product); err != nil {
		return nil, err
	}
	for _, p := range f.products {
		if p.ID != id && p.Name == product.Name {
			return nil, storage.ErrProductExists
		}
	}
	cp := *product
	f.products[id] = &cp
	return product, nil
}

func (f *fakeProductRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.products[id]; !ok {
		return storage.ErrProductNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProductRepo) UpsertProductTx(ctx context.Context, tx *sql.Tx, product *models.Product) error {
	return errors.New("not used")
}

type fakeCategoryRepo struct {
	categories map[uuid.UUID]*models.Category
}

var _ storage.CategoryStorage = (*fakeCategoryRepo)(nil)

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{categories: make(map[uuid.UUID]*models.Category)}
}

func (f *fakeCategoryRepo) ListCategories(ctx context.Context) ([]*models.Category, error) {
	var out []*models.Category
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCategoryRepo) GetCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category, ok := f.categories[id]
	if !ok {
		return nil, storage.ErrCategoryNotFound
	}
	return category, nil
}

func (f *fakeCategoryRepo) EnsureCategoryTx(ctx context.Context, tx *sql.Tx, name string) (*models.Category, error) {
	return nil, errors.New("not used")
}

// fakeOrderRepo хранит копии записанных заказов и позиций.
type fakeOrderRepo struct {
	orders  map[uuid.UUID]*models.Order
	lineErr error
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	f.orders[order.ID] = &models.Order{ID: order.ID, UserID: order.UserID, Date: order.Date, Lines: []*models.OrderLine{}}
	return nil
}

func (f *fakeOrderRepo) CreateOrderLine(ctx context.Context, tx *sql.Tx, line *models.OrderLine) error {
	if f.lineErr != nil {
		return f.lineErr
	}
	order, ok := f.orders[line.OrderID]
	if !ok {
		return errors.New("order does not exist")
	}
	products := make([]*models.Product, 0, len(line.Products))
	for _, p := range line.Products {
		cp := *p
		products = append(products, &cp)
	}
	order.Lines = append(order.Lines, &models.OrderLine{ID: line.ID, OrderID: line.OrderID, Price: line.Price, Products: products})
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	placed []*models.Order
	err    error
}

func (f *fakeEvents) OrderPlaced(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, order)
	return f.err
}

type fakeCatalog struct {
	invalidated []uuid.UUID
}

func (f *fakeCatalog) InvalidateProducts(ctx context.Context, ids ...uuid.UUID) {
	f.invalidated = append(f.invalidated, ids...)
}

type fakeMetrics struct {
	outcomes []string
	totals   []decimal.Decimal
}

func (f *fakeMetrics) ObservePlacement(outcome string, total decimal.Decimal) {
	f.outcomes = append(f.outcomes, outcome)
	f.totals = append(f.totals, total)
}
