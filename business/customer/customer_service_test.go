package customer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"customerIntel/domain"
)

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, id uint) (domain.CustomerProfile, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.CustomerProfile), args.Bool(1), args.Error(2)
}

func (m *MockCustomerRepository) FindByUUID(ctx context.Context, uuid string) (domain.CustomerProfile, bool, error) {
	args := m.Called(ctx, uuid)
	return args.Get(0).(domain.CustomerProfile), args.Bool(1), args.Error(2)
}

// MergeCustomers applies fn to the fixture profiles, the way the store does inside its transaction.
func (m *MockCustomerRepository) MergeCustomers(ctx context.Context, sourceID, targetID uint, fn func(source, target *domain.CustomerProfile) error) (domain.CustomerProfile, error) {
	args := m.Called(ctx, sourceID, targetID)
	source := args.Get(0).(domain.CustomerProfile)
	target := args.Get(1).(domain.CustomerProfile)
	if err := fn(&source, &target); err != nil {
		return domain.CustomerProfile{}, err
	}
	return target, args.Error(2)
}

func (m *MockCustomerRepository) AnonymizeCustomer(ctx context.Context, id uint, fn func(p *domain.CustomerProfile) error) error {
	args := m.Called(ctx, id)
	p := args.Get(0).(domain.CustomerProfile)
	if err := fn(&p); err != nil {
		return err
	}
	return args.Error(1)
}

func (m *MockCustomerRepository) FindInBatches(ctx context.Context, scope domain.ProfileScope, batchSize int, fn func(batch []domain.CustomerProfile) error) error {
	args := m.Called(ctx, scope, batchSize)
	if err := fn(args.Get(0).([]domain.CustomerProfile)); err != nil {
		return err
	}
	return args.Error(1)
}

func (m *MockCustomerRepository) SaveRFM(ctx context.Context, p *domain.CustomerProfile) error {
	args := m.Called(ctx, p.ID)
	return args.Error(0)
}

func (m *MockCustomerRepository) RecentEvents(ctx context.Context, customerID uint, limit int) ([]domain.Event, error) {
	args := m.Called(ctx, customerID, limit)
	return args.Get(0).([]domain.Event), args.Error(1)
}

type prefixCipher struct{}

func (prefixCipher) Encrypt(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return "enc:" + s, nil
}

func (prefixCipher) Decrypt(s string) (string, error) {
	return strings.TrimPrefix(s, "enc:"), nil
}

func newTestService(repo *MockCustomerRepository) *CustomerService {
	svc := NewCustomerService(repo, prefixCipher{}, 0)
	svc.now = func() time.Time { return refNow }
	return svc
}

func TestCustomerService_Get_NotFound(t *testing.T) {
	repo := new(MockCustomerRepository)
	repo.On("FindByID", mock.Anything, uint(9)).Return(domain.CustomerProfile{}, false, nil)

	_, err := newTestService(repo).Get(context.Background(), 9)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCustomerService_Merge(t *testing.T) {
	repo := new(MockCustomerRepository)
	source := domain.CustomerProfile{ID: 7, TotalOrders: 1, TotalSpent: 20}
	target := domain.CustomerProfile{ID: 3, TotalOrders: 1, TotalSpent: 40}
	repo.On("MergeCustomers", mock.Anything, uint(7), uint(3)).Return(source, target, nil)

	merged, err := newTestService(repo).Merge(context.Background(), 7, 3)

	require.NoError(t, err)
	assert.Equal(t, 2, merged.TotalOrders)
	assert.InDelta(t, 30, merged.AverageOrderValue, 1e-9)
	repo.AssertExpectations(t)
}

func TestCustomerService_Merge_LostRace(t *testing.T) {
	repo := new(MockCustomerRepository)
	source := domain.CustomerProfile{ID: 7, IsMerged: true}
	repo.On("MergeCustomers", mock.Anything, uint(7), uint(3)).Return(source, domain.CustomerProfile{ID: 3}, nil)

	_, err := newTestService(repo).Merge(context.Background(), 7, 3)

	assert.ErrorIs(t, err, ErrAlreadyMerged)
}

func TestCustomerService_Merge_Self(t *testing.T) {
	repo := new(MockCustomerRepository)

	_, err := newTestService(repo).Merge(context.Background(), 4, 4)

	assert.ErrorIs(t, err, ErrSelfMerge)
	repo.AssertNotCalled(t, "MergeCustomers")
}

func TestCustomerService_Anonymize_Twice(t *testing.T) {
	repo := new(MockCustomerRepository)
	repo.On("AnonymizeCustomer", mock.Anything, uint(5)).Return(domain.CustomerProfile{ID: 5, IsAnonymized: true}, nil)

	err := newTestService(repo).Anonymize(context.Background(), 5)

	assert.ErrorIs(t, err, ErrAnonymized)
}

func TestCustomerService_RecalculateRFM_CountsFailures(t *testing.T) {
	repo := new(MockCustomerRepository)
	batch := []domain.CustomerProfile{
		{ID: 1, TotalOrders: 3, TotalSpent: 250, LastPurchaseAt: daysAgo(10)},
		{ID: 2, TotalOrders: 1, TotalSpent: 20, LastPurchaseAt: daysAgo(400)},
		{ID: 3},
	}
	repo.On("FindInBatches", mock.Anything, domain.ProfileScope{}, DefaultBatchSize).Return(batch, nil)
	repo.On("SaveRFM", mock.Anything, uint(1)).Return(nil)
	repo.On("SaveRFM", mock.Anything, uint(2)).Return(errors.New("deadlock"))
	repo.On("SaveRFM", mock.Anything, uint(3)).Return(nil)

	res, err := newTestService(repo).RecalculateRFM(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, domain.BatchResult{Updated: 2, Errors: 1}, res)
	repo.AssertExpectations(t)
}

func TestCustomerService_ExportPersonalData(t *testing.T) {
	repo := new(MockCustomerRepository)
	p := domain.CustomerProfile{ID: 8, Email: "enc:x@y.z", FirstName: "enc:Xena", TotalOrders: 2}
	repo.On("FindByID", mock.Anything, uint(8)).Return(p, true, nil)
	repo.On("RecentEvents", mock.Anything, uint(8), exportEventLimit).Return([]domain.Event{
		{Type: domain.EventPageView, PageURL: "/"},
	}, nil)

	out, err := newTestService(repo).ExportPersonalData(context.Background(), 8)

	require.NoError(t, err)
	assert.Equal(t, "x@y.z", out.Identity.Email)
	assert.Equal(t, "Xena", out.Identity.FirstName)
	assert.Len(t, out.Events, 1)
}
