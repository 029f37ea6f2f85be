package authweb

import (
	"sync"
	"time"
)

// NotificationLevel is the severity of a Notification.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a transient message shown to the user.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}

// NotificationBuffer collects notifications raised while handling a request.
// The HTTP layer renders them inline or forwards them as flash messages.
type NotificationBuffer struct {
	mu    sync.Mutex
	items []Notification
}

// Success implements Notifier.
func (b *NotificationBuffer) Success(message string) {
	b.add(NotificationSuccess, message)
}

// Error implements Notifier.
func (b *NotificationBuffer) Error(message string) {
	b.add(NotificationError, message)
}

func (b *NotificationBuffer) add(level NotificationLevel, message string) {
	b.mu.Lock()
	b.items = append(b.items, Notification{Level: level, Message: message})
	b.mu.Unlock()
}

// Items returns the notifications in the order they were raised.
func (b *NotificationBuffer) Items() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

// Last returns the most recent notification of level.
func (b *NotificationBuffer) Last(level NotificationLevel) (Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.items) - 1; i >= 0; i-- {
		if b.items[i].Level == level {
			return b.items[i], true
		}
	}
	return Notification{}, false
}

// Navigation is a pending page change.
type Navigation struct {
	Path  string
	Delay time.Duration
}

// Immediate reports whether the navigation should happen right away.
func (n Navigation) Immediate() bool { return n.Delay <= 0 }

// NavigationRecorder captures the navigation requested by a controller so
// the HTTP layer can turn it into a redirect or a delayed refresh.
type NavigationRecorder struct {
	mu      sync.Mutex
	pending *Navigation
	calls   int
}

// Navigate implements Navigator.
func (r *NavigationRecorder) Navigate(path string) {
	r.set(Navigation{Path: path})
}

// NavigateAfter implements Navigator.
func (r *NavigationRecorder) NavigateAfter(path string, delay time.Duration) {
	r.set(Navigation{Path: path, Delay: delay})
}

func (r *NavigationRecorder) set(n Navigation) {
	r.mu.Lock()
	r.pending = &n
	r.calls++
	r.mu.Unlock()
}

// Pending returns the last requested navigation.
func (r *NavigationRecorder) Pending() (Navigation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return Navigation{}, false
	}
	return *r.pending, true
}

// Calls returns how many times navigation was requested.
func (r *NavigationRecorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
