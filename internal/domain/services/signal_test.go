package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignal_NotifyReleasesAllWaiters(t *testing.T) {
	s := NewSignal()

	const waiters = 5
	var wg sync.WaitGroup
	ready := make(chan struct{}, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wait := s.Wait()
			ready <- struct{}{}
			<-wait
		}()
	}

	for i := 0; i < waiters; i++ {
		<-ready
	}
	s.Notify()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all waiters were released")
	}
}

func TestSignal_Rearms(t *testing.T) {
	s := NewSignal()

	first := s.Wait()
	s.Notify()

	select {
	case <-first:
	default:
		t.Fatal("first wait should be released")
	}

	second := s.Wait()
	select {
	case <-second:
		t.Fatal("signal should re-arm after notify")
	default:
	}

	s.Notify()
	select {
	case <-second:
	default:
		t.Fatal("second wait should be released")
	}
}

func TestSignal_WaitTakenBeforeNotifyIsNotLost(t *testing.T) {
	s := NewSignal()

	wait := s.Wait()
	s.Notify()
	s.Notify()

	assert.Eventually(t, func() bool {
		select {
		case <-wait:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}
