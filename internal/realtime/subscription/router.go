package subscription

import (
	"sort"
	"sync"

	"github.com/vintage-realtime/internal/domain"
)

// Member is a live connection that can be placed in topic groups.
type Member interface {
	ID() string
	Send(ev domain.Event) bool
}

// Router holds per-connection topic membership. Both directions of the
// mapping are updated under one lock so they never disagree.
type Router struct {
	mu     sync.RWMutex
	topics map[domain.Topic]map[string]Member
	joined map[string]map[domain.Topic]struct{}
}

func NewRouter() *Router {
	return &Router{
		topics: make(map[domain.Topic]map[string]Member),
		joined: make(map[string]map[domain.Topic]struct{}),
	}
}

// Join adds m to topic and reports whether it was not already a member.
func (r *Router) Join(m Member, topic domain.Topic) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.topics[topic]
	if !ok {
		members = make(map[string]Member)
		r.topics[topic] = members
	}
	if _, dup := members[m.ID()]; dup {
		return false
	}
	members[m.ID()] = m

	set, ok := r.joined[m.ID()]
	if !ok {
		set = make(map[domain.Topic]struct{})
		r.joined[m.ID()] = set
	}
	set[topic] = struct{}{}
	return true
}

// Leave removes m from topic and reports whether it was a member.
func (r *Router) Leave(m Member, topic domain.Topic) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leave(m.ID(), topic)
}

func (r *Router) leave(connID string, topic domain.Topic) bool {
	members, ok := r.topics[topic]
	if !ok {
		return false
	}
	if _, member := members[connID]; !member {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.topics, topic)
	}
	if set, ok := r.joined[connID]; ok {
		delete(set, topic)
		if len(set) == 0 {
			delete(r.joined, connID)
		}
	}
	return true
}

// LeaveAll removes m from every topic and returns the topics it left.
func (r *Router) LeaveAll(m Member) []domain.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.joined[m.ID()]
	left := make([]domain.Topic, 0, len(set))
	for topic := range set {
		left = append(left, topic)
	}
	for _, topic := range left {
		r.leave(m.ID(), topic)
	}
	return left
}

// MembersOf returns a snapshot of the connections in topic.
func (r *Router) MembersOf(topic domain.Topic) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.topics[topic]
	out := make([]Member, 0, len(members))
	for _, m := range members {
		out = append(out, m)
	}
	return out
}

// TopicsOf lists the topics connID belongs to, sorted.
func (r *Router) TopicsOf(connID string) []domain.Topic {
	r.mu.RLock()
	set := r.joined[connID]
	out := make([]domain.Topic, 0, len(set))
	for topic := range set {
		out = append(out, topic)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
