package board

import (
	"github.com/google/uuid"

	"github.com/flowcore-run/flowcore/pkg/value"
)

// RepairReport summarizes what FixPinsSetLayer changed, for diagnostics
// and for the idempotence property in §8 ("repairing an already
// consistent board is a no-op").
type RepairReport struct {
	OrphanedEdgesRemoved int
	BridgePinsSynthesized int
}

// FixPinsSetLayer repairs violations of the reciprocal-edge invariant
// (§3: "For every pin a, every b ∈ a.connected_to ⇒ a ∈ b.depends_on")
// and synthesizes bridge pins for layers that have none, supplementing
// the behavior documented in original_source's Board::fix_pins_set_layer.
//
// It is safe to call on an already-consistent board: no edges are added
// or removed, and no new bridge pins appear (§8 round-trip property).
func (b *Board) FixPinsSetLayer() RepairReport {
	var report RepairReport
	all := b.AllPins()
	bridges := make(map[string]bridgePair)

	// 1. Drop connected_to / depends_on entries that point at a pin that
	// no longer exists; for entries whose partner exists but lacks the
	// reciprocal entry, add that reciprocal entry.
	for _, p := range all {
		for target := range p.ConnectedTo {
			partner, ok := all[target]
			if !ok {
				delete(p.ConnectedTo, target)
				report.OrphanedEdgesRemoved++
				continue
			}
			if _, reciprocal := partner.DependsOn[p.ID]; !reciprocal {
				if partner.DependsOn == nil {
					partner.DependsOn = make(map[string]struct{})
				}
				partner.DependsOn[p.ID] = struct{}{}
			}
		}
		for source := range p.DependsOn {
			partner, ok := all[source]
			if !ok {
				delete(p.DependsOn, source)
				report.OrphanedEdgesRemoved++
				continue
			}
			if _, reciprocal := partner.ConnectedTo[p.ID]; !reciprocal {
				if partner.ConnectedTo == nil {
					partner.ConnectedTo = make(map[string]struct{})
				}
				partner.ConnectedTo[p.ID] = struct{}{}
			}
		}
	}

	// 2. Synthesize bridge pins for layers with cross-boundary edges but
	// no relay pins at all (original_source supplement: a layer that owns
	// nodes connected to the outside world, but has zero pins of its own,
	// gets a relay *pair* per distinct external data type crossing its
	// boundary, and every direct edge of that type is rewired through the
	// pair so the connection survives instead of being dropped).
	for layerID, layer := range b.Layers {
		if len(layer.PinIDs) > 0 {
			continue // layer already has relays; leave it alone (idempotence)
		}
		for _, e := range b.crossingEdges(layerID) {
			key := string(e.dataType) + "|" + string(e.valueType)
			pair, ok := bridges[layerID+"|"+key]
			if !ok {
				inbound := NewPin(uuid.NewString(), "bridge_in_"+string(e.dataType), Input, e.dataType, e.valueType)
				outbound := NewPin(uuid.NewString(), "bridge_out_"+string(e.dataType), Output, e.dataType, e.valueType)
				b.AddRelayPin(layerID, inbound)
				b.AddRelayPin(layerID, outbound)
				_ = b.Connect(inbound.ID, outbound.ID) // pass-through across the boundary
				pair = bridgePair{inbound: inbound, outbound: outbound}
				bridges[layerID+"|"+key] = pair
				report.BridgePinsSynthesized += 2
			}
			b.Disconnect(e.from.ID, e.to.ID)
			_ = b.Connect(e.from.ID, pair.inbound.ID)
			_ = b.Connect(pair.outbound.ID, e.to.ID)
		}
	}

	return report
}

type bridgePair struct {
	inbound, outbound *Pin
}

type crossingEdge struct {
	from, to  *Pin
	dataType  value.DataType
	valueType value.ValueType
}

// crossingEdges finds the directed edges that cross a layer's boundary
// (one endpoint's node is a member of the layer, the other isn't) while
// the layer has no relay pins to carry them.
func (b *Board) crossingEdges(layerID string) []crossingEdge {
	layer, ok := b.Layers[layerID]
	if !ok {
		return nil
	}
	inLayer := func(nodeID string) bool {
		_, ok := layer.NodeIDs[nodeID]
		return ok
	}
	all := b.AllPins()
	var out []crossingEdge
	for _, p := range all {
		if p.IsRelay() {
			continue
		}
		pInLayer := inLayer(p.NodeID)
		for target := range p.ConnectedTo {
			tp, ok := all[target]
			if !ok || tp.IsRelay() {
				continue
			}
			if pInLayer == inLayer(tp.NodeID) {
				continue // both sides on the same side of the boundary
			}
			out = append(out, crossingEdge{from: p, to: tp, dataType: p.DataType, valueType: p.ValueType})
		}
	}
	return out
}
