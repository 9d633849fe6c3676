package subscription

import (
	"sync"
	"testing"
	"time"

	"stock-chatbot/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClock() utils.Clock {
	return utils.NewManualClock(time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)).Now
}

func TestAlertUnsubscribeTwice(t *testing.T) {
	r := NewAlertRegistry(ScopeSymbol, testClock())
	r.Subscribe(1, "삼성전자", "")

	removed, msg := r.Unsubscribe(1)
	assert.True(t, removed)
	assert.Equal(t, "❌ '삼성전자' 알림이 해제되었습니다.", msg)

	removed, msg = r.Unsubscribe(1)
	assert.False(t, removed)
	assert.Equal(t, "구독 중인 종목이 없습니다.", msg)
}

func TestAlertSeedSuppressesFirstChange(t *testing.T) {
	r := NewAlertRegistry(ScopeSymbol, testClock())
	r.Subscribe(1, "카카오", "p=50000")

	assert.False(t, r.Observe(1, "카카오", "p=50000"))
	assert.True(t, r.Observe(1, "카카오", "p=50100"))
	assert.False(t, r.Observe(1, "카카오", "p=50100"))
}

func TestAlertObserveWithoutSnapshotFires(t *testing.T) {
	r := NewAlertRegistry(ScopeSymbol, testClock())
	r.Subscribe(1, "카카오", "")
	assert.True(t, r.Observe(1, "카카오", "p=1"))
}

func TestAlertSnapshotScope(t *testing.T) {
	tests := []struct {
		scope       string
		secondFires bool
	}{
		{ScopeSymbol, false},
		{ScopeUser, true},
		{"bogus", false},
	}
	for _, tt := range tests {
		t.Run(tt.scope, func(t *testing.T) {
			r := NewAlertRegistry(tt.scope, testClock())
			r.Subscribe(1, "네이버", "")
			r.Subscribe(2, "네이버", "")

			require.True(t, r.Observe(1, "네이버", "v1"))
			assert.Equal(t, tt.secondFires, r.Observe(2, "네이버", "v1"))
		})
	}
}

func TestAlertResubscribeDropsOldUserSnapshot(t *testing.T) {
	r := NewAlertRegistry(ScopeUser, testClock())
	r.Subscribe(1, "카카오", "p=50000")
	r.Subscribe(1, "카카오", "")
	_, kept := r.LastObserved(1, "카카오")
	assert.True(t, kept)

	r.Subscribe(1, "네이버", "")
	_, kept = r.LastObserved(1, "카카오")
	assert.False(t, kept)
	assert.Len(t, r.snapshots, 0)
}

func TestAlertSnapshotIsACopy(t *testing.T) {
	r := NewAlertRegistry(ScopeSymbol, testClock())
	r.Subscribe(2, "B", "")
	r.Subscribe(1, "A", "")

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, int64(1), snap[0].UserID)

	r.Unsubscribe(1)
	assert.Len(t, snap, 2)
	assert.Equal(t, 1, r.Len())
}

func TestMonitorLifecycle(t *testing.T) {
	r := NewMonitorRegistry(testClock())
	msg := r.Start(7, "현대차", 10)
	assert.Contains(t, msg, "'현대차' 연속 모니터링을 시작합니다.")

	sub, ok := r.Get(7)
	require.True(t, ok)
	assert.Equal(t, 0, sub.UpdateCount)

	n, ok := r.Increment(7, "현대차")
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	n, _ = r.Increment(7, "현대차")
	assert.Equal(t, 2, n)

	_, ok = r.Increment(7, "기아")
	assert.False(t, ok)

	stopped, msg := r.Stop(7)
	assert.True(t, stopped)
	assert.Equal(t, "⏹️ '현대차' 모니터링을 중지했습니다.\n총 2회 업데이트되었습니다.", msg)

	stopped, msg = r.Stop(7)
	assert.False(t, stopped)
	assert.Equal(t, "❌ 진행 중인 모니터링이 없습니다.", msg)

	_, ok = r.Increment(7, "현대차")
	assert.False(t, ok)
}

func TestMonitorRestartResetsCounter(t *testing.T) {
	r := NewMonitorRegistry(testClock())
	r.Start(1, "A", 10)
	r.Increment(1, "A")
	r.Start(1, "A", 10)

	sub, _ := r.Get(1)
	assert.Equal(t, 0, sub.UpdateCount)
}

func TestRegistriesConcurrentAccess(t *testing.T) {
	alerts := NewAlertRegistry(ScopeSymbol, nil)
	monitors := NewMonitorRegistry(nil)

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			alerts.Subscribe(id, "S", "")
			monitors.Start(id, "S", 10)
			_ = alerts.Snapshot()
			alerts.Observe(id, "S", "x")
			monitors.Increment(id, "S")
			if id%2 == 0 {
				alerts.Unsubscribe(id)
				monitors.Stop(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, alerts.Len())
	assert.Equal(t, 25, monitors.Len())
}
