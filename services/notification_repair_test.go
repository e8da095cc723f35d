package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockRepairer struct{ mock.Mock }

func (m *MockRepairer) RepairNotification(ctx context.Context, orderID uuid.UUID) error {
	return m.Called(ctx, orderID).Error(0)
}

func TestRepairHandler(t *testing.T) {
	id := uuid.New()
	repairer := new(MockRepairer)
	repairer.On("RepairNotification", mock.Anything, id).Return(nil).Once()
	handler := NewRepairHandler(repairer, zap.NewNop())

	assert.NoError(t, handler(context.Background(), `{"order_id":"`+id.String()+`","event_id":"evt_1"}`))
	repairer.AssertExpectations(t)
}

func TestRepairHandler_DropsMalformed(t *testing.T) {
	repairer := new(MockRepairer)
	handler := NewRepairHandler(repairer, zap.NewNop())

	assert.NoError(t, handler(context.Background(), "not json"))
	assert.NoError(t, handler(context.Background(), `{"order_id":"nope"}`))
	repairer.AssertNotCalled(t, "RepairNotification", mock.Anything, mock.Anything)
}

func TestRepairHandler_FailureIsRetried(t *testing.T) {
	id := uuid.New()
	repairer := new(MockRepairer)
	repairer.On("RepairNotification", mock.Anything, id).Return(errors.New("db down"))
	handler := NewRepairHandler(repairer, zap.NewNop())

	assert.ErrorContains(t, handler(context.Background(), `{"order_id":"`+id.String()+`"}`), "db down")
}
