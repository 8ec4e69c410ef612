package board

import "fmt"

// AddNode registers a node on the board.
func (b *Board) AddNode(n *Node) {
	if b.Nodes == nil {
		b.Nodes = make(map[string]*Node)
	}
	b.Nodes[n.ID] = n
}

// Connect wires a reciprocal edge between two pins: from.ConnectedTo gets
// to, and to.DependsOn gets from. This is the only way edges should be
// created — it keeps the §3 invariant
//
//	b ∈ a.connected_to ⇔ a ∈ b.depends_on
//
// true by construction; FixPinsSetLayer exists to repair boards that
// reached this package without going through Connect (e.g. loaded from
// storage written by an older version, or hand-edited).
func (b *Board) Connect(fromPinID, toPinID string) error {
	from := b.FindPin(fromPinID)
	to := b.FindPin(toPinID)
	if from == nil {
		return fmt.Errorf("board: unknown source pin %q", fromPinID)
	}
	if to == nil {
		return fmt.Errorf("board: unknown target pin %q", toPinID)
	}
	if from.ConnectedTo == nil {
		from.ConnectedTo = make(map[string]struct{})
	}
	if to.DependsOn == nil {
		to.DependsOn = make(map[string]struct{})
	}
	from.ConnectedTo[toPinID] = struct{}{}
	to.DependsOn[fromPinID] = struct{}{}
	return nil
}

// Disconnect removes a reciprocal edge, if present.
func (b *Board) Disconnect(fromPinID, toPinID string) {
	if from := b.FindPin(fromPinID); from != nil {
		delete(from.ConnectedTo, toPinID)
	}
	if to := b.FindPin(toPinID); to != nil {
		delete(to.DependsOn, fromPinID)
	}
}

// AllPins returns every pin on the board: node-owned and relay.
func (b *Board) AllPins() map[string]*Pin {
	all := make(map[string]*Pin, len(b.relayPins))
	for id, p := range b.relayPins {
		all[id] = p
	}
	for _, n := range b.Nodes {
		for id, p := range n.Pins {
			all[id] = p
		}
	}
	return all
}
