package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRecordHealthyMatchesStatus(t *testing.T) {
	now := time.Now()
	for _, status := range []Status{
		StatusHealthy, StatusDegraded, StatusUnhealthy,
		StatusTimeout, StatusDisconnected, StatusError,
	} {
		record := newRecord(status, "msg", nil, now)
		assert.Equal(t, status == StatusHealthy, record.Healthy, string(status))
		assert.Equal(t, status, record.Status)
		assert.Equal(t, now, record.CheckedAt)
	}
}
