package monitor

import (
	"sync"

	"github.com/gfiorelli/plantwatch/internal/model"
)

// maxAlerts bounds the retained notification ring.
const maxAlerts = 50

type alertRing struct {
	mu  sync.Mutex
	cap int
	buf []model.Alert
}

func newAlertRing(capacity int) *alertRing {
	return &alertRing{cap: capacity}
}

func (r *alertRing) add(a model.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, a)
	if len(r.buf) > r.cap {
		r.buf = r.buf[len(r.buf)-r.cap:]
	}
}

// list returns the retained alerts, most recent first.
func (r *alertRing) list() []model.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Alert, len(r.buf))
	for i, a := range r.buf {
		out[len(r.buf)-1-i] = a
	}
	return out
}

func (r *alertRing) markRead(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.buf {
		if r.buf[i].ID == id {
			r.buf[i].Read = true
			return true
		}
	}
	return false
}
