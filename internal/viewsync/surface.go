package viewsync

import (
	"slices"
	"sync"
)

// EventKind identifies an interaction a rendering surface reports.
type EventKind int

const (
	EventPointHover EventKind = iota
	EventPointUnhover
	EventLegendEnter
	EventLegendLeave
	EventVisibility
)

func (k EventKind) String() string {
	switch k {
	case EventPointHover:
		return "point_hover"
	case EventPointUnhover:
		return "point_unhover"
	case EventLegendEnter:
		return "legend_enter"
	case EventLegendLeave:
		return "legend_leave"
	case EventVisibility:
		return "visibility"
	default:
		return "unknown"
	}
}

// Event is one interaction on a surface. Series and Year are set for point
// and legend events, Visible for visibility events.
type Event struct {
	Kind    EventKind
	Series  string
	Year    int
	Visible bool
}

// Listener receives surface events.
type Listener func(Event)

// ListenerID identifies an installed listener for removal.
type ListenerID uint64

// Surface is the rendering element a view draws on. Listeners installed on it
// must be removable so redraws never accumulate handlers.
type Surface interface {
	AddListener(fn Listener) ListenerID
	RemoveListener(id ListenerID)
}

// ListenerSet is an in-memory Surface. The rendering layer calls Emit when the
// user interacts with the chart.
type ListenerSet struct {
	mu        sync.Mutex
	next      ListenerID
	listeners map[ListenerID]Listener
}

// NewListenerSet returns an empty surface.
func NewListenerSet() *ListenerSet {
	return &ListenerSet{listeners: make(map[ListenerID]Listener)}
}

func (s *ListenerSet) AddListener(fn Listener) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.listeners[s.next] = fn
	return s.next
}

func (s *ListenerSet) RemoveListener(id ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

// Len reports how many listeners are installed.
func (s *ListenerSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Emit delivers e to every listener in installation order. Listeners run
// without the set's lock held and may add or remove listeners.
func (s *ListenerSet) Emit(e Event) {
	s.mu.Lock()
	ids := make([]ListenerID, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]Listener, len(ids))
	for i, id := range ids {
		fns[i] = s.listeners[id]
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
