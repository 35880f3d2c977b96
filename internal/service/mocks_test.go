package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MorseWayne/stock_ledger/internal/domain"
	"github.com/MorseWayne/stock_ledger/internal/repo"
)

func levelKey(orgID, productID int64, variantID *int64, locationID int64) string {
	v := int64(0)
	if variantID != nil {
		v = *variantID
	}
	return fmt.Sprintf("%d:%d:%d:%d", orgID, productID, v, locationID)
}

// Mock StockLevelRepository for testing
type mockStockLevelRepo struct {
	levels map[string]*domain.StockLevel
	nextID int64

	failOnUpdate bool
}

func newMockStockLevelRepo() *mockStockLevelRepo {
	return &mockStockLevelRepo{
		levels: make(map[string]*domain.StockLevel),
		nextID: 1,
	}
}

func (m *mockStockLevelRepo) put(level *domain.StockLevel) {
	if level.ID == 0 {
		level.ID = m.nextID
		m.nextID++
	}
	m.levels[levelKey(level.OrganizationID, level.ProductID, level.VariantID, level.LocationID)] = level
}

func (m *mockStockLevelRepo) Get(ctx context.Context, orgID, productID int64, variantID *int64, locationID int64) (*domain.StockLevel, error) {
	level, ok := m.levels[levelKey(orgID, productID, variantID, locationID)]
	if !ok {
		return nil, nil
	}
	copied := *level
	return &copied, nil
}

func (m *mockStockLevelRepo) GetForUpdate(ctx context.Context, orgID, productID int64, variantID *int64, locationID int64) (*domain.StockLevel, error) {
	return m.Get(ctx, orgID, productID, variantID, locationID)
}

func (m *mockStockLevelRepo) Create(ctx context.Context, level *domain.StockLevel) error {
	key := levelKey(level.OrganizationID, level.ProductID, level.VariantID, level.LocationID)
	if _, exists := m.levels[key]; exists {
		return errors.New("duplicate stock level")
	}
	copied := *level
	copied.ID = m.nextID
	m.nextID++
	m.levels[key] = &copied
	level.ID = copied.ID
	return nil
}

func (m *mockStockLevelRepo) UpdateQuantities(ctx context.Context, level *domain.StockLevel) error {
	if m.failOnUpdate {
		return errors.New("update failed")
	}
	key := levelKey(level.OrganizationID, level.ProductID, level.VariantID, level.LocationID)
	if _, exists := m.levels[key]; !exists {
		return errors.New("stock level not found")
	}
	copied := *level
	m.levels[key] = &copied
	return nil
}

func (m *mockStockLevelRepo) ListByProduct(ctx context.Context, orgID, productID int64) ([]*domain.StockLevel, error) {
	var out []*domain.StockLevel
	for _, level := range m.levels {
		if level.OrganizationID == orgID && level.ProductID == productID {
			copied := *level
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockStockLevelRepo) SumAvailableByProduct(ctx context.Context, productID int64) (int64, error) {
	var total int64
	for _, level := range m.levels {
		if level.ProductID == productID {
			total += level.QuantityAvailable
		}
	}
	return total, nil
}

func (m *mockStockLevelRepo) ListReorderDue(ctx context.Context, orgID, productID int64) ([]*domain.StockLevel, error) {
	var out []*domain.StockLevel
	for _, level := range m.levels {
		if level.OrganizationID == orgID && level.ProductID == productID && level.NeedsReorder() {
			copied := *level
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockStockLevelRepo) List(ctx context.Context, orgID int64, req *domain.StockLevelListRequest) ([]*domain.StockLevel, int64, error) {
	var out []*domain.StockLevel
	for _, level := range m.levels {
		if level.OrganizationID != orgID {
			continue
		}
		if req.ProductID != nil && level.ProductID != *req.ProductID {
			continue
		}
		if req.LocationID != nil && level.LocationID != *req.LocationID {
			continue
		}
		if req.LowStock != nil && *req.LowStock && !level.NeedsReorder() {
			continue
		}
		copied := *level
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

// Mock MovementRepository for testing
type mockMovementRepo struct {
	movements []*domain.Movement
	nextID    int64
}

func newMockMovementRepo() *mockMovementRepo {
	return &mockMovementRepo{nextID: 1}
}

func (m *mockMovementRepo) Create(ctx context.Context, mv *domain.Movement) error {
	mv.ID = m.nextID
	m.nextID++
	copied := *mv
	m.movements = append(m.movements, &copied)
	return nil
}

func (m *mockMovementRepo) ListByProduct(ctx context.Context, orgID, productID int64, limit int) ([]*domain.Movement, error) {
	var out []*domain.Movement
	for _, mv := range m.movements {
		if mv.OrganizationID == orgID && mv.ProductID == productID {
			out = append(out, mv)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Mock TransactionRepository for testing
type mockTransactionRepo struct {
	transactions []*domain.StockTransaction
	nextID       int64
}

func newMockTransactionRepo() *mockTransactionRepo {
	return &mockTransactionRepo{nextID: 1}
}

func (m *mockTransactionRepo) Create(ctx context.Context, t *domain.StockTransaction) error {
	t.ID = m.nextID
	m.nextID++
	copied := *t
	m.transactions = append(m.transactions, &copied)
	return nil
}

func (m *mockTransactionRepo) ListByProduct(ctx context.Context, orgID, productID int64, limit int) ([]*domain.StockTransaction, error) {
	var out []*domain.StockTransaction
	for _, t := range m.transactions {
		if t.OrganizationID == orgID && t.ProductID == productID {
			out = append(out, t)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Mock ReservationRepository for testing
type mockReservationRepo struct {
	reservations map[int64]*domain.Reservation
	nextID       int64
}

func newMockReservationRepo() *mockReservationRepo {
	return &mockReservationRepo{
		reservations: make(map[int64]*domain.Reservation),
		nextID:       1,
	}
}

func (m *mockReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	res.ID = m.nextID
	m.nextID++
	copied := *res
	m.reservations[res.ID] = &copied
	return nil
}

func (m *mockReservationRepo) ListActiveByReference(ctx context.Context, orgID, productID int64, variantID *int64, locationID int64,
	refType domain.ReservedForType, refID int64) ([]*domain.Reservation, error) {
	var out []*domain.Reservation
	for _, res := range m.reservations {
		if res.OrganizationID != orgID || res.ProductID != productID || res.LocationID != locationID {
			continue
		}
		if res.ReservedFor != refType || res.ReservedForID != refID {
			continue
		}
		if res.Status != domain.ReservationActive {
			continue
		}
		if (res.VariantID == nil) != (variantID == nil) {
			continue
		}
		if res.VariantID != nil && *res.VariantID != *variantID {
			continue
		}
		copied := *res
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockReservationRepo) MarkConsumed(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		res, ok := m.reservations[id]
		if !ok || res.Status != domain.ReservationActive {
			return fmt.Errorf("reservation %d not active", id)
		}
		res.Status = domain.ReservationConsumed
	}
	return nil
}

func (m *mockReservationRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	var affected int64
	for _, res := range m.reservations {
		if res.Status == domain.ReservationActive && res.ExpiresAt.Before(now) {
			res.Status = domain.ReservationExpired
			affected++
		}
	}
	return affected, nil
}

// Mock AdjustmentRepository for testing
type mockAdjustmentRepo struct {
	adjustments map[int64]*domain.Adjustment
	nextID      int64
}

func newMockAdjustmentRepo() *mockAdjustmentRepo {
	return &mockAdjustmentRepo{
		adjustments: make(map[int64]*domain.Adjustment),
		nextID:      1,
	}
}

func (m *mockAdjustmentRepo) Create(ctx context.Context, adj *domain.Adjustment) error {
	adj.ID = m.nextID
	m.nextID++
	copied := *adj
	m.adjustments[adj.ID] = &copied
	return nil
}

func (m *mockAdjustmentRepo) GetByID(ctx context.Context, orgID, id int64) (*domain.Adjustment, error) {
	adj, ok := m.adjustments[id]
	if !ok || adj.OrganizationID != orgID {
		return nil, nil
	}
	copied := *adj
	return &copied, nil
}

func (m *mockAdjustmentRepo) Approve(ctx context.Context, id, approverID int64, at time.Time) (bool, error) {
	adj, ok := m.adjustments[id]
	if !ok || adj.ApprovedBy != nil {
		return false, nil
	}
	adj.ApprovedBy = &approverID
	adj.ApprovedAt = &at
	return true, nil
}

func (m *mockAdjustmentRepo) Delete(ctx context.Context, id int64) (bool, error) {
	adj, ok := m.adjustments[id]
	if !ok || adj.ApprovedBy != nil {
		return false, nil
	}
	delete(m.adjustments, id)
	return true, nil
}

func (m *mockAdjustmentRepo) Summary(ctx context.Context, orgID int64, from, to *time.Time) ([]*domain.AdjustmentSummaryRow, error) {
	byType := make(map[domain.AdjustmentType]*domain.AdjustmentSummaryRow)
	for _, adj := range m.adjustments {
		if adj.OrganizationID != orgID {
			continue
		}
		row, ok := byType[adj.Type]
		if !ok {
			row = &domain.AdjustmentSummaryRow{Type: adj.Type}
			byType[adj.Type] = row
		}
		row.Count++
		change := adj.QuantityChange
		if change < 0 {
			change = -change
		}
		row.TotalQuantity += change
	}
	var out []*domain.AdjustmentSummaryRow
	for _, row := range byType {
		out = append(out, row)
	}
	return out, nil
}

// Mock BatchRepository for testing
type mockBatchRepo struct {
	batches map[int64]*domain.Batch
	nextID  int64

	failResize bool
}

func newMockBatchRepo() *mockBatchRepo {
	return &mockBatchRepo{
		batches: make(map[int64]*domain.Batch),
		nextID:  1,
	}
}

func (m *mockBatchRepo) put(b *domain.Batch) {
	if b.ID == 0 {
		b.ID = m.nextID
		m.nextID++
	}
	m.batches[b.ID] = b
}

func (m *mockBatchRepo) GetForUpdate(ctx context.Context, orgID, id int64) (*domain.Batch, error) {
	b, ok := m.batches[id]
	if !ok || b.OrganizationID != orgID {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (m *mockBatchRepo) Resize(ctx context.Context, id, newQuantity int64) (bool, error) {
	if m.failResize {
		return false, nil
	}
	b, ok := m.batches[id]
	if !ok || newQuantity < b.QuantityUsed {
		return false, nil
	}
	b.Quantity = newQuantity
	return true, nil
}

func (m *mockBatchRepo) ListByProductLocation(ctx context.Context, orgID, productID, locationID int64) ([]*domain.Batch, error) {
	var out []*domain.Batch
	for _, b := range m.batches {
		if b.OrganizationID == orgID && b.ProductID == productID && b.LocationID == locationID {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Mock ProductRepository for testing
type mockProductRepo struct {
	products map[int64]*domain.Product
	// productOrg maps product ID to the owning organization (via its store)
	productOrg map[int64]int64
	// variantOf maps variant ID to its product
	variantOf map[int64]int64
	// totals records the rollup writes, keyed by product ID
	totals map[int64]int64
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{
		products:   make(map[int64]*domain.Product),
		productOrg: make(map[int64]int64),
		variantOf:  make(map[int64]int64),
		totals:     make(map[int64]int64),
	}
}

func (m *mockProductRepo) addProduct(id, orgID int64) {
	m.products[id] = &domain.Product{ID: id, SKU: fmt.Sprintf("SKU-%d", id)}
	m.productOrg[id] = orgID
}

func (m *mockProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *mockProductRepo) BelongsToOrganization(ctx context.Context, productID, orgID int64) (bool, error) {
	return m.productOrg[productID] == orgID, nil
}

func (m *mockProductRepo) VariantBelongsToProduct(ctx context.Context, variantID, productID int64) (bool, error) {
	return m.variantOf[variantID] == productID, nil
}

func (m *mockProductRepo) UpdateTotalAvailable(ctx context.Context, productID, total int64) error {
	m.totals[productID] = total
	return nil
}

// Mock LocationRepository for testing
type mockLocationRepo struct {
	locations map[int64]*domain.Location
}

func newMockLocationRepo() *mockLocationRepo {
	return &mockLocationRepo{locations: make(map[int64]*domain.Location)}
}

func (m *mockLocationRepo) addLocation(id, orgID int64) {
	m.locations[id] = &domain.Location{ID: id, OrganizationID: orgID, Name: fmt.Sprintf("loc-%d", id), Kind: "warehouse"}
}

func (m *mockLocationRepo) GetByID(ctx context.Context, id int64) (*domain.Location, error) {
	loc, ok := m.locations[id]
	if !ok {
		return nil, nil
	}
	copied := *loc
	return &copied, nil
}

func (m *mockLocationRepo) BelongsToOrganization(ctx context.Context, locationID, orgID int64) (bool, error) {
	loc, ok := m.locations[locationID]
	return ok && loc.OrganizationID == orgID, nil
}

// mockTxRunner runs the transactional function against a fixed set of mock
// repositories; there is no real transaction, so writes are visible immediately.
type mockTxRunner struct {
	repos    *repo.Repositories
	beginErr error
}

func (m *mockTxRunner) WithinTx(ctx context.Context, fn func(r *repo.Repositories) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	return fn(m.repos)
}

func (m *mockTxRunner) Repos() *repo.Repositories {
	return m.repos
}

// mockPublisher records published events and can simulate failures
type mockPublisher struct {
	events  []*domain.StockUpdatedEvent
	failErr error
}

func (m *mockPublisher) PublishStockUpdated(ctx context.Context, event *domain.StockUpdatedEvent) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.events = append(m.events, event)
	return nil
}

// testEnv bundles the mocks behind a stock service instance
type testEnv struct {
	levels       *mockStockLevelRepo
	movements    *mockMovementRepo
	transactions *mockTransactionRepo
	reservations *mockReservationRepo
	adjustments  *mockAdjustmentRepo
	batches      *mockBatchRepo
	products     *mockProductRepo
	locations    *mockLocationRepo
	uow          *mockTxRunner
	publisher    *mockPublisher
}

func newTestEnv() *testEnv {
	env := &testEnv{
		levels:       newMockStockLevelRepo(),
		movements:    newMockMovementRepo(),
		transactions: newMockTransactionRepo(),
		reservations: newMockReservationRepo(),
		adjustments:  newMockAdjustmentRepo(),
		batches:      newMockBatchRepo(),
		products:     newMockProductRepo(),
		locations:    newMockLocationRepo(),
		publisher:    &mockPublisher{},
	}
	env.uow = &mockTxRunner{repos: &repo.Repositories{
		StockLevels:  env.levels,
		Movements:    env.movements,
		Transactions: env.transactions,
		Reservations: env.reservations,
		Adjustments:  env.adjustments,
		Batches:      env.batches,
		Products:     env.products,
		Locations:    env.locations,
	}}
	return env
}

// seedScope registers a product and a location under the given organization
func (env *testEnv) seedScope(orgID, productID, locationID int64) {
	env.products.addProduct(productID, orgID)
	env.locations.addLocation(locationID, orgID)
}

func int64Ptr(v int64) *int64 { return &v }
