// Package notify holds short-lived user-visible status notices. Notices
// never block interaction; they expire on their own and failed operations
// can always be retried.
package notify

import (
	"sync"
	"time"
)

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// DefaultLifetime is how long a notice stays visible.
const DefaultLifetime = 3 * time.Second

type Notice struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Notifier is a bounded, self-expiring notice buffer. Safe for concurrent
// use.
type Notifier struct {
	mu       sync.Mutex
	lifetime time.Duration
	notices  []Notice
	now      func() time.Time
}

func New(lifetime time.Duration) *Notifier {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Notifier{lifetime: lifetime, now: time.Now}
}

func (n *Notifier) Publish(kind Kind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prune()
	n.notices = append(n.notices, Notice{
		Kind:      kind,
		Message:   message,
		ExpiresAt: n.now().Add(n.lifetime),
	})
}

func (n *Notifier) Successf(message string) { n.Publish(Success, message) }
func (n *Notifier) Errorf(message string)   { n.Publish(Error, message) }

// Active returns the notices that have not yet expired, oldest first.
func (n *Notifier) Active() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prune()
	return append([]Notice(nil), n.notices...)
}

func (n *Notifier) prune() {
	now := n.now()
	kept := n.notices[:0]
	for _, notice := range n.notices {
		if notice.ExpiresAt.After(now) {
			kept = append(kept, notice)
		}
	}
	n.notices = kept
}
