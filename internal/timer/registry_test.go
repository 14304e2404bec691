package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_OneMachinePerUser(t *testing.T) {
	built := 0
	r := NewRegistry(func(userID string) *Machine {
		built++
		cfg := testConfig()
		cfg.UserID = userID
		return New(cfg, &fakeWriter{})
	})
	defer r.Close()

	a := r.Get("alice")
	assert.Same(t, a, r.Get("alice"))
	b := r.Get("bob")
	assert.NotSame(t, a, b)
	assert.Equal(t, "bob", b.UserID())
	assert.Equal(t, 2, built)
	assert.Equal(t, []string{"alice", "bob"}, r.Users())
}

func TestRegistry_SlowFactoryDoesNotBlockOtherUsers(t *testing.T) {
	release := make(chan struct{})
	r := NewRegistry(func(userID string) *Machine {
		if userID == "slow" {
			<-release
		}
		cfg := testConfig()
		cfg.UserID = userID
		return New(cfg, &fakeWriter{})
	})
	defer r.Close()

	done := make(chan *Machine)
	go func() { done <- r.Get("slow") }()

	got := make(chan *Machine)
	go func() { got <- r.Get("bob") }()
	select {
	case m := <-got:
		assert.Equal(t, "bob", m.UserID())
	case <-time.After(2 * time.Second):
		t.Fatal("Get for bob waited on another user's factory")
	}

	close(release)
	assert.Equal(t, "slow", (<-done).UserID())
}

func TestRegistry_ConcurrentGetSharesMachine(t *testing.T) {
	r := NewRegistry(func(userID string) *Machine {
		cfg := testConfig()
		cfg.UserID = userID
		return New(cfg, &fakeWriter{})
	})
	defer r.Close()

	const n = 16
	machines := make([]*Machine, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			machines[i] = r.Get("alice")
		}()
	}
	wg.Wait()

	require.NotNil(t, machines[0])
	for _, m := range machines[1:] {
		assert.Same(t, machines[0], m)
	}
	assert.Equal(t, []string{"alice"}, r.Users())
}
