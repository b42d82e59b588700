package alert

import (
	"log"
	"sync"

	"github.com/speedwatch/speedwatch/internal/store"
)

// defaultTimeoutMs bounds how long a hook may run per event.
const defaultTimeoutMs = 5000

// Notifier fans speed events out to the discovered hooks. Hooks run in
// their own goroutines so a slow hook never stalls the pipeline.
type Notifier struct {
	manager  *Manager
	executor *Executor
	wg       sync.WaitGroup
}

// NewNotifier creates a Notifier over the given hook directory and
// discovers the hooks in it.
func NewNotifier(hookDir string) (*Notifier, error) {
	m := NewManager(hookDir)
	if err := m.Discover(); err != nil {
		return nil, err
	}
	return &Notifier{
		manager:  m,
		executor: NewExecutor(defaultTimeoutMs),
	}, nil
}

// Manager exposes the underlying hook manager.
func (n *Notifier) Manager() *Manager {
	return n.manager
}

// Notify dispatches a recorded speed event to every subscribed hook.
// Safe to use as the pipeline's event callback.
func (n *Notifier) Notify(ev *store.SpeedEvent) {
	kind := KindSpeed
	if ev.IsOverspeed {
		kind = KindOverspeed
	}

	payload := &Event{
		Kind:        kind,
		SessionID:   ev.SessionID,
		TrackID:     ev.TrackID,
		VehicleType: ev.Label,
		SpeedKMH:    ev.SpeedKMH,
		SpeedLimit:  ev.SpeedLimit,
		RecordedAt:  ev.RecordedAt.UnixMilli(),
	}

	for _, hook := range n.manager.List() {
		if !hook.wants(kind) {
			continue
		}
		n.wg.Add(1)
		go func(h *Hook) {
			defer n.wg.Done()
			resp, err := n.executor.Execute(h, payload)
			if err != nil {
				log.Printf("alert hook %s failed: %v", h.Manifest.Name, err)
				return
			}
			if !resp.Success {
				log.Printf("alert hook %s rejected event: %s", h.Manifest.Name, resp.Error)
			}
		}(hook)
	}
}

// Wait blocks until all in-flight hook executions finish. Called on
// shutdown.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
