package serving

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"fae/ml"
	"fae/monitoring"
)

var ErrNoModel = errors.New("no model loaded")

// Holder owns the model currently used for serving. Readers get an immutable
// *ml.Model without locking; reloads swap the whole model at once.
type Holder struct {
	path     string
	log      *zap.Logger
	recorder monitoring.Recorder
	debounce time.Duration

	current atomic.Pointer[ml.Model]

	mu     sync.Mutex
	onSwap []func(*ml.Model)
}

func NewHolder(path string, log *zap.Logger, recorder monitoring.Recorder) *Holder {
	if recorder == nil {
		recorder = monitoring.Nop
	}
	return &Holder{
		path:     path,
		log:      log.Named("model"),
		recorder: recorder,
		debounce: 200 * time.Millisecond,
	}
}

func (h *Holder) Path() string { return h.path }

// Current returns the serving model, or ErrNoModel before the first successful load.
func (h *Holder) Current() (*ml.Model, error) {
	m := h.current.Load()
	if m == nil {
		return nil, ErrNoModel
	}
	return m, nil
}

// OnSwap registers fn to run after every model swap.
func (h *Holder) OnSwap(fn func(*ml.Model)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSwap = append(h.onSwap, fn)
}

func (h *Holder) Set(m *ml.Model) {
	h.current.Store(m)
	h.mu.Lock()
	hooks := append(([]func(*ml.Model))(nil), h.onSwap...)
	h.mu.Unlock()
	for _, fn := range hooks {
		fn(m)
	}
}

// Load reads the artifact and swaps it in. On failure the previous model keeps serving.
func (h *Holder) Load(ctx context.Context) (*ml.Model, error) {
	m, err := ml.LoadArtifact(h.path)
	event := monitoring.Event{Type: monitoring.EventModelReload, Detail: h.path}
	if err != nil {
		event.Error = err.Error()
		if prev := h.current.Load(); prev != nil {
			event.ModelID = prev.ID()
		}
		h.record(ctx, event)
		return nil, err
	}
	h.Set(m)
	event.ModelID = m.ID()
	h.record(ctx, event)
	return m, nil
}

func (h *Holder) record(ctx context.Context, event monitoring.Event) {
	if err := h.recorder.Record(ctx, event); err != nil {
		h.log.Warn("record reload event", zap.Error(err))
	}
}

// Watch reloads the model whenever the artifact file is written or replaced.
// It blocks until ctx is done.
func (h *Holder) Watch(ctx context.Context) error {
	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(h.path)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending = time.After(h.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.log.Warn("watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			if m, err := h.Load(ctx); err != nil {
				h.log.Error("model reload failed, keeping previous model", zap.Error(err))
			} else {
				h.log.Info("model reloaded", zap.String("model_id", m.ID()))
			}
		}
	}
}
