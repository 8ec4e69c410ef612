package runtime

import "hash/fnv"

// execTarget is one frontier entry: a node plus the set of incoming
// execution pins that triggered it (§4.4 "keeps execution targets (node
// + incoming-execution-pin set) uniqued by pointer identity").
type execTarget struct {
	node *InternalNode
	pins map[*InternalPin]bool
}

func newExecTarget(node *InternalNode, pin *InternalPin) *execTarget {
	t := &execTarget{node: node, pins: make(map[*InternalPin]bool)}
	if pin != nil {
		t.pins[pin] = true
	}
	return t
}

// merge folds pin into an existing target for the same node (pointer
// identity dedup within a frontier).
func (t *execTarget) merge(pin *InternalPin) {
	if pin != nil {
		t.pins[pin] = true
	}
}

// hash64 derives this target's contribution to the frontier signature:
// FNV-1a over the node's id and every incoming pin id, order-independent
// via XOR-accumulation at the call site.
func (t *execTarget) hash64() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(t.node.ID))
	sum := h.Sum64()
	for p := range t.pins {
		h2 := fnv.New64a()
		_, _ = h2.Write([]byte(p.ID))
		sum ^= h2.Sum64()
	}
	return sum
}

// RunStack is the deduplicated frontier (§4.4): targets uniqued by node
// pointer identity, with a running XOR-of-hashes signature used to
// detect stagnation across scheduler steps.
type RunStack struct {
	targets   map[*InternalNode]*execTarget
	order     []*InternalNode // preserves first-enqueued order for determinism
	signature uint64
}

// NewRunStack creates an empty frontier.
func NewRunStack() *RunStack {
	return &RunStack{targets: make(map[*InternalNode]*execTarget)}
}

// Push enqueues node as a target, deduplicating by node pointer identity
// and merging the triggering pin into the existing entry if present.
func (s *RunStack) Push(node *InternalNode, pin *InternalPin) {
	if t, ok := s.targets[node]; ok {
		t.merge(pin)
		s.recomputeSignature()
		return
	}
	t := newExecTarget(node, pin)
	s.targets[node] = t
	s.order = append(s.order, node)
	s.signature ^= t.hash64()
}

// Len reports the number of distinct targets currently enqueued.
func (s *RunStack) Len() int { return len(s.order) }

// Drain returns every enqueued target and empties the frontier.
func (s *RunStack) Drain() []*execTarget {
	out := make([]*execTarget, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.targets[n])
	}
	s.targets = make(map[*InternalNode]*execTarget)
	s.order = nil
	return out
}

// Signature returns the current 64-bit XOR-of-hashes frontier signature.
func (s *RunStack) Signature() uint64 { return s.signature }

func (s *RunStack) recomputeSignature() {
	var sig uint64
	for _, t := range s.targets {
		sig ^= t.hash64()
	}
	s.signature = sig
}

// Empty reports whether the frontier has no enqueued targets.
func (s *RunStack) Empty() bool { return len(s.order) == 0 }
