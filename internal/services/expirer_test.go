package services

import (
	"context"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func Test_Expirer_RunOnce(t *testing.T) {
	offers := &mockExpirer{result: 2}
	borrows := &mockExpirer{err: errors.New("database is locked")}

	expirer, err := NewExpirer(offers, borrows, "@every 1h")
	require.NoError(t, err)
	defer expirer.Stop()

	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	expiredOffers, expiredRequests := expirer.RunOnce(context.Background(), now)

	assert.Equal(t, int64(2), expiredOffers)
	assert.Zero(t, expiredRequests, "a failing half does not stop the other")
	assert.Equal(t, []time.Time{now}, offers.calls)
	assert.Equal(t, 1, borrows.callCount())
}

func Test_Expirer_RunsOnSchedule(t *testing.T) {
	offers := &mockExpirer{}
	borrows := &mockExpirer{}

	expirer, err := NewExpirer(offers, borrows, "@every 1s")
	require.NoError(t, err)
	defer expirer.Stop()

	assert.Eventually(t, func() bool { return offers.callCount() > 0 && borrows.callCount() > 0 },
		3*time.Second, 50*time.Millisecond)
}

func Test_Expirer_RejectsBadSchedule(t *testing.T) {
	_, err := NewExpirer(&mockExpirer{}, &mockExpirer{}, "")
	assert.Error(t, err)

	_, err = NewExpirer(&mockExpirer{}, &mockExpirer{}, "every now and then")
	assert.Error(t, err)
}
