package loadable

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type appConfig struct {
	Name string `json:"name" yaml:"name"`
	Port int    `json:"port" yaml:"port"`
}

func (c appConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// syncAndWait triggers a sync on the loop and blocks until the loadable
// settles in a terminal state.
func syncAndWait(t *testing.T, loop *RunLoop, target Syncable) State {
	t.Helper()
	settled := make(chan State, 1)
	loop.Post(func() {
		var obs *Observer
		obs = target.AddObserver(func(p Pure) {
			if p.State() == StateSyncing {
				return
			}
			obs.Remove()
			settled <- p.State()
		})
		target.Sync()
	})
	select {
	case st := <-settled:
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("sync never settled")
		return StateIdle
	}
}

// onLoop runs fn on the loop and waits for it, keeping reads confined.
func onLoop(t *testing.T, loop *RunLoop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	loop.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not process posted work")
	}
}

func TestFileLoadable_LoadsJSON(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.json", `{"name":"svc","port":8080}`)
	loop := NewRunLoop()
	startLoop(t, loop)
	f := NewFile[appConfig](loop, path)

	if st := syncAndWait(t, loop, f); st != StateSucceeded {
		t.Fatalf("expected succeeded, got %s", st)
	}
	onLoop(t, loop, func() {
		v, ok := f.Value()
		if !ok {
			t.Error("expected a value")
		}
		if v.Name != "svc" || v.Port != 8080 {
			t.Errorf("unexpected payload %+v", v)
		}
		if !f.ContentsAvailable() {
			t.Error("expected contents available")
		}
	})
}

func TestFileLoadable_MissingFile(t *testing.T) {
	loop := NewRunLoop()
	startLoop(t, loop)
	f := NewFile[appConfig](loop, filepath.Join(t.TempDir(), "absent.json"))

	if st := syncAndWait(t, loop, f); st != StateFailed {
		t.Fatalf("expected failed, got %s", st)
	}
	onLoop(t, loop, func() {
		if err := f.Error(); err == nil || !strings.Contains(err.Error(), "read") {
			t.Errorf("expected a read error, got %v", err)
		}
		if _, ok := f.Value(); ok {
			t.Error("expected no value")
		}
	})
}

func TestFileLoadable_DecodeError(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.json", `{not json`)
	loop := NewRunLoop()
	startLoop(t, loop)
	f := NewFile[appConfig](loop, path)

	if st := syncAndWait(t, loop, f); st != StateFailed {
		t.Fatalf("expected failed, got %s", st)
	}
	onLoop(t, loop, func() {
		if err := f.Error(); err == nil || !strings.Contains(err.Error(), "decode") {
			t.Errorf("expected a decode error, got %v", err)
		}
	})
}

func TestFileLoadable_ValidationError(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.json", `{"name":"svc","port":0}`)
	loop := NewRunLoop()
	startLoop(t, loop)
	f := NewFile[appConfig](loop, path)

	if st := syncAndWait(t, loop, f); st != StateFailed {
		t.Fatalf("expected failed, got %s", st)
	}
	onLoop(t, loop, func() {
		if err := f.Error(); err == nil || !strings.Contains(err.Error(), "validate") {
			t.Errorf("expected a validation error, got %v", err)
		}
	})
}

func TestFileLoadable_YAMLCodec(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "name: svc\nport: 9090\n")
	loop := NewRunLoop()
	startLoop(t, loop)
	f := NewFile[appConfig](loop, path).Codec(YAMLCodec{})

	if st := syncAndWait(t, loop, f); st != StateSucceeded {
		t.Fatalf("expected succeeded, got %s", st)
	}
	onLoop(t, loop, func() {
		if v, _ := f.Value(); v.Port != 9090 {
			t.Errorf("unexpected payload %+v", v)
		}
	})
}

func TestFileLoadable_ResyncPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json", `{"name":"svc","port":1}`)
	loop := NewRunLoop()
	startLoop(t, loop)
	f := NewFile[appConfig](loop, path)

	if st := syncAndWait(t, loop, f); st != StateSucceeded {
		t.Fatalf("expected succeeded, got %s", st)
	}
	writeConfig(t, dir, "config.json", `{"name":"svc","port":2}`)
	if st := syncAndWait(t, loop, f); st != StateSucceeded {
		t.Fatalf("expected the resync to succeed, got %s", st)
	}
	onLoop(t, loop, func() {
		if v, _ := f.Value(); v.Port != 2 {
			t.Errorf("expected the updated payload, got %+v", v)
		}
	})
}

// The payload from the last success survives a later failure.
func TestFileLoadable_ValueSurvivesFailedResync(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json", `{"name":"svc","port":1}`)
	loop := NewRunLoop()
	startLoop(t, loop)
	f := NewFile[appConfig](loop, path)

	if st := syncAndWait(t, loop, f); st != StateSucceeded {
		t.Fatalf("expected succeeded, got %s", st)
	}
	writeConfig(t, dir, "config.json", `{broken`)
	if st := syncAndWait(t, loop, f); st != StateFailed {
		t.Fatalf("expected the resync to fail, got %s", st)
	}
	onLoop(t, loop, func() {
		if v, ok := f.Value(); !ok || v.Port != 1 {
			t.Errorf("expected the previous payload kept, got %+v ok=%v", v, ok)
		}
		if !f.ContentsAvailable() {
			t.Error("expected contents still available")
		}
	})
}

func TestFileLoadable_WatchResyncsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json", `{"name":"svc","port":1}`)
	loop := NewRunLoop()
	startLoop(t, loop)
	f := NewFile[appConfig](loop, path)

	if st := syncAndWait(t, loop, f); st != StateSucceeded {
		t.Fatalf("expected succeeded, got %s", st)
	}

	updated := make(chan appConfig, 16)
	onLoop(t, loop, func() {
		f.AddObserver(func(Pure) {
			if f.State() != StateSucceeded {
				return
			}
			if v, ok := f.Value(); ok {
				select {
				case updated <- v:
				default:
				}
			}
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.Watch(ctx); err != nil {
		t.Fatal(err)
	}

	writeConfig(t, dir, "config.json", `{"name":"svc","port":2}`)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case v := <-updated:
			if v.Port == 2 {
				return
			}
		case <-deadline:
			t.Fatal("watcher never delivered the update")
		}
	}
}
