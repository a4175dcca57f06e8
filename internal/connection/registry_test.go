package connection

import (
	"context"
	"testing"
	"time"
)

func TestRegistryReturnsSameManagerPerChannel(t *testing.T) {
	script := &dialScript{}
	r := NewRegistry(func(channel string) *Manager {
		return NewManager(testConfig(channel, script), nil, nil, nil)
	})
	defer r.Shutdown(context.Background())

	a := r.Get("primary")
	b := r.Get("primary")
	c := r.Get("secondary")

	if a != b {
		t.Error("same channel name produced two managers")
	}
	if a == c {
		t.Error("different channels share a manager")
	}

	names := r.Channels()
	if len(names) != 2 {
		t.Errorf("expected 2 channels, got %v", names)
	}
}

func TestRegistrySharedTransportAcrossConsumers(t *testing.T) {
	script := &dialScript{}
	r := NewRegistry(func(channel string) *Manager {
		return NewManager(testConfig(channel, script), nil, nil, nil)
	})
	defer r.Shutdown(context.Background())

	// Two independent consumers asking for the same channel by name ride
	// the same transport.
	for i := 0; i < 2; i++ {
		m := r.Get("primary")
		unsub, err := m.Subscribe(Listener{OnUpdate: func(Update) {}})
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		defer unsub()
	}

	waitFor(t, time.Second, func() bool { return r.Get("primary").State() == StateOpen })

	if got := script.dials.Load(); got != 1 {
		t.Errorf("expected 1 dial for 2 consumers, got %d", got)
	}
}

func TestRegistryShutdownStopsAllManagers(t *testing.T) {
	script := &dialScript{}
	r := NewRegistry(func(channel string) *Manager {
		return NewManager(testConfig(channel, script), nil, nil, nil)
	})

	for _, name := range []string{"primary", "secondary"} {
		unsub, _ := r.Get(name).Subscribe(Listener{OnUpdate: func(Update) {}})
		defer unsub()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	for _, name := range []string{"primary", "secondary"} {
		if _, err := r.Get(name).Subscribe(Listener{}); err == nil {
			t.Errorf("manager %q accepted a subscriber after shutdown", name)
		}
	}
}
