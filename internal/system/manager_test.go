package system

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/dinehall/boardlink/pkg/logger"
)

func discardLogger() *logger.Logger {
	log := logger.NewDefault("system-test")
	log.SetOutput(io.Discard)
	return log
}

func TestManager_StartStopOrder(t *testing.T) {
	var order []string
	mk := func(name string) Service {
		return ServiceFunc{
			ServiceName: name,
			OnStart: func(context.Context) error {
				order = append(order, "start:"+name)
				return nil
			},
			OnStop: func(context.Context) error {
				order = append(order, "stop:"+name)
				return nil
			},
		}
	}

	m := NewManager(discardLogger())
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(mk(name)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}
	if err := m.StopAll(context.Background()); err != nil {
		t.Fatalf("stop all: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(order) != len(want) {
		t.Fatalf("unexpected order: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected order at %d: got %v", i, order)
		}
	}
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	var stopped []string
	ok := ServiceFunc{
		ServiceName: "ok",
		OnStop: func(context.Context) error {
			stopped = append(stopped, "ok")
			return nil
		},
	}
	bad := ServiceFunc{
		ServiceName: "bad",
		OnStart:     func(context.Context) error { return errors.New("boom") },
	}

	m := NewManager(discardLogger())
	if err := m.Register(ok); err != nil {
		t.Fatalf("register ok: %v", err)
	}
	if err := m.Register(bad); err != nil {
		t.Fatalf("register bad: %v", err)
	}

	if err := m.StartAll(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if len(stopped) != 1 || stopped[0] != "ok" {
		t.Fatalf("expected rollback stop of ok, got %v", stopped)
	}
}

func TestManager_RejectsDuplicateNames(t *testing.T) {
	m := NewManager(discardLogger())
	if err := m.Register(ServiceFunc{ServiceName: "dup"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := m.Register(ServiceFunc{ServiceName: "dup"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}
