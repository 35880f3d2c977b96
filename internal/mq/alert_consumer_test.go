package mq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/domain"
	"github.com/MorseWayne/stock_ledger/internal/repo"
)

// stubLocationRepo resolves a single known location.
type stubLocationRepo struct {
	location *domain.Location
}

func (s *stubLocationRepo) GetByID(ctx context.Context, id int64) (*domain.Location, error) {
	if s.location != nil && s.location.ID == id {
		return s.location, nil
	}
	return nil, nil
}

func (s *stubLocationRepo) BelongsToOrganization(ctx context.Context, locationID, orgID int64) (bool, error) {
	return s.location != nil && s.location.ID == locationID && s.location.OrganizationID == orgID, nil
}

// stubReorderLevelRepo records reorder queries and returns canned rows.
type stubReorderLevelRepo struct {
	repo.StockLevelRepository
	due     []*domain.StockLevel
	queries []int64
}

func (s *stubReorderLevelRepo) ListReorderDue(ctx context.Context, orgID, productID int64) ([]*domain.StockLevel, error) {
	s.queries = append(s.queries, orgID)
	return s.due, nil
}

type stubTxRunner struct {
	repos *repo.Repositories
}

func (s *stubTxRunner) WithinTx(ctx context.Context, fn func(r *repo.Repositories) error) error {
	return fn(s.repos)
}

func (s *stubTxRunner) Repos() *repo.Repositories {
	return s.repos
}

func newAlertConsumerForTest(levels *stubReorderLevelRepo, locations *stubLocationRepo) *ReorderAlertConsumer {
	return &ReorderAlertConsumer{
		uow: &stubTxRunner{repos: &repo.Repositories{
			StockLevels: levels,
			Locations:   locations,
		}},
		logger: zap.NewNop(),
	}
}

func stockUpdatedDelivery(t *testing.T, productID, locationID int64) amqp.Delivery {
	t.Helper()
	msg, err := NewStockUpdatedMessage(&domain.StockUpdatedEvent{
		ProductID:   productID,
		LocationID:  locationID,
		NewQuantity: 2,
	}, "")
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	return amqp.Delivery{Body: body, MessageId: msg.ID}
}

func TestAlertConsumer_ChecksReorderForEventOrg(t *testing.T) {
	rp := int64(10)
	levels := &stubReorderLevelRepo{due: []*domain.StockLevel{
		{OrganizationID: 3, ProductID: 100, LocationID: 10, QuantityAvailable: 2, ReorderPoint: &rp},
	}}
	locations := &stubLocationRepo{location: &domain.Location{ID: 10, OrganizationID: 3}}
	ac := newAlertConsumerForTest(levels, locations)

	if err := ac.handleMessage(context.Background(), stockUpdatedDelivery(t, 100, 10)); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}

	// organization is resolved from the location, not carried by the event
	if len(levels.queries) != 1 || levels.queries[0] != 3 {
		t.Errorf("expected one reorder query for org 3, got %v", levels.queries)
	}
}

func TestAlertConsumer_UnknownLocationIsDropped(t *testing.T) {
	levels := &stubReorderLevelRepo{}
	ac := newAlertConsumerForTest(levels, &stubLocationRepo{})

	// unknown location must not error: requeueing cannot fix it
	if err := ac.handleMessage(context.Background(), stockUpdatedDelivery(t, 100, 99)); err != nil {
		t.Fatalf("expected nil for unknown location, got %v", err)
	}
	if len(levels.queries) != 0 {
		t.Errorf("expected no reorder queries, got %v", levels.queries)
	}
}

func TestAlertConsumer_MalformedMessageIsDropped(t *testing.T) {
	ac := newAlertConsumerForTest(&stubReorderLevelRepo{}, &stubLocationRepo{})

	if err := ac.handleMessage(context.Background(), amqp.Delivery{Body: []byte("not json")}); err != nil {
		t.Fatalf("expected malformed message to be dropped, got %v", err)
	}
}

func TestAlertConsumer_IgnoresOtherMessageTypes(t *testing.T) {
	levels := &stubReorderLevelRepo{}
	ac := newAlertConsumerForTest(levels, &stubLocationRepo{})

	msg := &StockMessage{ID: "m1", Type: MessageType("order.created")}
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}

	if err := ac.handleMessage(context.Background(), amqp.Delivery{Body: body}); err != nil {
		t.Fatalf("expected other types to be ignored, got %v", err)
	}
	if len(levels.queries) != 0 {
		t.Errorf("expected no reorder queries, got %v", levels.queries)
	}
}
