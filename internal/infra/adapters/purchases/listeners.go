package purchases

import (
	"sort"
	"sync"

	"applyassist/internal/domain/model"
	"applyassist/internal/domain/ports/adapter"
)

// listenerSet is the customer info listener registry shared by backends.
type listenerSet struct {
	mu   sync.Mutex
	next adapter.ListenerID
	byID map[adapter.ListenerID]adapter.CustomerInfoListener
}

func (s *listenerSet) add(l adapter.CustomerInfoListener) adapter.ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byID == nil {
		s.byID = make(map[adapter.ListenerID]adapter.CustomerInfoListener)
	}
	s.next++
	s.byID[s.next] = l
	return s.next
}

func (s *listenerSet) remove(id adapter.ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func (s *listenerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// notify calls listeners in registration order, outside the lock.
func (s *listenerSet) notify(cs *model.CustomerState) {
	s.mu.Lock()
	ids := make([]adapter.ListenerID, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ls := make([]adapter.CustomerInfoListener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.byID[id])
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(cs)
	}
}
