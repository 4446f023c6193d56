package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFuncSchedulerFireAllInvokesEachTask(t *testing.T) {
	var s FuncScheduler
	var aCalls, bCalls int
	s.Every(time.Second, func() { aCalls++ })
	s.Every(time.Minute, func() { bCalls++ })

	s.FireAll()
	s.FireAll()

	assert.Equal(t, 2, aCalls)
	assert.Equal(t, 2, bCalls)
}

func TestFuncSchedulerCancelStopsFurtherFires(t *testing.T) {
	var s FuncScheduler
	var calls int
	cancel := s.Every(time.Second, func() { calls++ })

	s.FireAll()
	cancel()
	s.FireAll()

	assert.Equal(t, 1, calls)
	cancel() // idempotent
}

func TestFuncSchedulerFireByIndex(t *testing.T) {
	var s FuncScheduler
	var aCalls, bCalls int
	s.Every(time.Second, func() { aCalls++ })
	s.Every(time.Second, func() { bCalls++ })

	s.Fire(1)

	assert.Equal(t, 0, aCalls)
	assert.Equal(t, 1, bCalls)
}

func TestFuncSchedulerFireOutOfRangeIsNoop(t *testing.T) {
	var s FuncScheduler
	assert.NotPanics(t, func() { s.Fire(5) })
}

func TestFuncSchedulerActiveCount(t *testing.T) {
	var s FuncScheduler
	cancel := s.Every(time.Second, func() {})
	s.Every(time.Second, func() {})
	assert.Equal(t, 2, s.Active())
	cancel()
	assert.Equal(t, 1, s.Active())
}

func TestTickerEveryRunsAndCancels(t *testing.T) {
	var tk Ticker
	hits := make(chan struct{}, 10)
	cancel := tk.Every(5*time.Millisecond, func() {
		select {
		case hits <- struct{}{}:
		default:
		}
	})
	defer cancel()

	select {
	case <-hits:
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}
	cancel()
}
