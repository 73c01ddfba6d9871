package loadable

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

// Validator is implemented by payload types that can check themselves
// after decoding.
type Validator interface {
	Validate() error
}

// FileLoadable is a concrete producer: a loadable whose payload of type T
// is read from a file, decoded via a Codec and validated. It exists both
// as a useful producer and as the reference for implementing your own:
// it publishes the payload before reporting success, and it marshals the
// outcome of its background read back through the scheduler before
// touching any state.
type FileLoadable[T Validator] struct {
	*Loadable
	sched Scheduler
	path  string
	codec Codec
	value *T
}

// NewFile creates an idle file loadable for path. The payload is decoded
// with JSONCodec unless Codec is called.
func NewFile[T Validator](sched Scheduler, path string) *FileLoadable[T] {
	f := &FileLoadable[T]{
		sched: sched,
		path:  path,
		codec: JSONCodec{},
	}
	f.Loadable = New(f.doSync).
		Contents(func() bool { return f.value != nil }).
		Owner(f)
	return f
}

// Codec sets the payload codec. Must be called before the first sync.
func (f *FileLoadable[T]) Codec(codec Codec) *FileLoadable[T] {
	f.codec = codec
	return f
}

// Value returns the current payload and true, or the zero value and
// false while no payload is available.
func (f *FileLoadable[T]) Value() (T, bool) {
	if f.value == nil {
		var zero T
		return zero, false
	}
	return *f.value, true
}

// doSync reads and decodes off the confinement context, then posts the
// terminal transition back onto it.
func (f *FileLoadable[T]) doSync() {
	go func() {
		value, err := f.load()
		f.sched.Post(func() {
			if err != nil {
				f.SetFailed(err)
				return
			}
			f.value = &value
			f.SetSucceeded()
		})
	}()
}

func (f *FileLoadable[T]) load() (T, error) {
	var value T
	data, err := os.ReadFile(f.path)
	if err != nil {
		return value, fmt.Errorf("read %s: %w", f.path, err)
	}
	if err := f.codec.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if err := value.Validate(); err != nil {
		return value, fmt.Errorf("validate %s: %w", f.path, err)
	}
	return value, nil
}

// Watch re-syncs the loadable whenever the file is written, until ctx is
// canceled. The sync is posted onto the scheduler; watch errors are
// tolerated and watching continues.
func (f *FileLoadable[T]) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(f.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", f.path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				f.sched.Post(f.Sync)

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return nil
}
