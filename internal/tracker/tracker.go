// Package tracker maintains per-resource in-flight operation flags and
// the single-slot rating panel state. It exists so the UI state machine
// is testable without any rendering layer.
package tracker

import "sync"

// Kind identifies an asynchronous per-resource operation.
type Kind int

const (
	// Download marks a file download in progress.
	Download Kind = iota
	// Rate marks a rating submission in progress.
	Rate
)

func (k Kind) String() string {
	switch k {
	case Download:
		return "download"
	case Rate:
		return "rate"
	default:
		return "unknown"
	}
}

type opKey struct {
	id   string
	kind Kind
}

// Tracker rejects duplicate operations of the same kind on the same
// resource while letting different resources, or different kinds on the
// same resource, proceed independently.
type Tracker struct {
	mu       sync.Mutex
	inflight map[opKey]struct{}
	panelID  string
	panelSet bool
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{inflight: make(map[opKey]struct{})}
}

// Begin marks (id, kind) in flight. Returns false if an operation of the
// same kind is already outstanding for that id; the caller must then
// reject the request.
func (t *Tracker) Begin(id string, kind Kind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := opKey{id: id, kind: kind}
	if _, busy := t.inflight[k]; busy {
		return false
	}
	t.inflight[k] = struct{}{}
	return true
}

// End clears the flag for (id, kind). Callers run it unconditionally
// (deferred) on success and failure alike so no resource can stay stuck.
func (t *Tracker) End(id string, kind Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, opKey{id: id, kind: kind})
}

// InFlight reports whether an operation of kind is outstanding for id.
func (t *Tracker) InFlight(id string, kind Kind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, busy := t.inflight[opKey{id: id, kind: kind}]
	return busy
}

// OpenPanel opens the rating panel for id. At most one panel is open at
// a time; opening one implicitly closes any other.
func (t *Tracker) OpenPanel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.panelID = id
	t.panelSet = true
}

// ClosePanel dismisses the rating panel.
func (t *Tracker) ClosePanel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.panelID = ""
	t.panelSet = false
}

// OpenPanelID returns the id whose rating panel is open, if any.
func (t *Tracker) OpenPanelID() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.panelID, t.panelSet
}
