// Package board implements the authoring graph (§3): nodes, typed pins,
// layers, variables and the repair pass that keeps reciprocal pin edges
// consistent. A Board is immutable for the lifetime of a run; it is
// mirrored into a runnable internal graph by internal/runtime.
package board

import (
	"sort"

	"github.com/google/uuid"

	"github.com/flowcore-run/flowcore/internal/telemetry"
	"github.com/flowcore-run/flowcore/pkg/value"
)

// Stage is the execution stage a board is deployed at (§3 Board).
type Stage string

const (
	StageDev     Stage = "dev"
	StageInt     Stage = "int"
	StageQA      Stage = "qa"
	StagePreProd Stage = "preprod"
	StageProd    Stage = "prod"
)

// LogLevelFloor returns the log level floor for a board's stage: Debug
// for Dev/Int/QA, Info for PreProd/Prod. The runtime and the trace store
// do not filter logged or persisted rows by this floor.
func (s Stage) LogLevelFloor() telemetry.Level {
	switch s {
	case StageProd, StagePreProd:
		return telemetry.Info
	default:
		return telemetry.Debug
	}
}

// PinDirection distinguishes input from output pins.
type PinDirection string

const (
	Input  PinDirection = "input"
	Output PinDirection = "output"
)

// Pin is a typed connection point on a node (§3 Pin).
type Pin struct {
	ID           string
	Name         string
	FriendlyName string
	Direction    PinDirection
	DataType     value.DataType
	ValueType    value.ValueType
	Schema       []byte // optional JSON schema, for Struct/Generic pins
	Default      []byte // wire-form default, decoded lazily (§4.1 step 3)
	ConnectedTo  map[string]struct{}
	DependsOn    map[string]struct{}
	Index        int // stable display index, used for resolution order (§4.1 rule 4)

	// node is the owning node's ID, empty for layer relay pins (§3 Layer).
	NodeID string
	// LayerID is set when this pin is a layer relay/bridge pin.
	LayerID string
}

// IsExecution reports whether this pin is execution-typed.
func (p *Pin) IsExecution() bool { return p.DataType == value.Execution }

// IsRelay reports whether this pin has no owning node (§3 Layer / Relay pin).
func (p *Pin) IsRelay() bool { return p.NodeID == "" }

// NewPin constructs a Pin with initialized edge sets.
func NewPin(id, name string, dir PinDirection, dt value.DataType, vt value.ValueType) *Pin {
	return &Pin{
		ID:          id,
		Name:        name,
		Direction:   dir,
		DataType:    dt,
		ValueType:   vt,
		ConnectedTo: make(map[string]struct{}),
		DependsOn:   make(map[string]struct{}),
	}
}

// Node is an authored graph node (§3 Node).
type Node struct {
	ID          string
	LogicName   string // catalog key resolved against the NodeLogic registry
	Name        string
	Description string
	Pins        map[string]*Pin
	X, Y        float64
	LayerID     string // optional parent layer id

	HasErrorHandler bool // whether auto_handle_error pins are present
}

// IsPure reports whether a node has no execution pins — a lazily
// evaluated value producer (§3 Node).
func (n *Node) IsPure() bool {
	for _, p := range n.Pins {
		if p.IsExecution() {
			return false
		}
	}
	return true
}

// PinsByDirection returns a node's pins of the given direction, ordered
// by declared index (§4.1 rule 4: "resolution order follows declared
// pin indices").
func (n *Node) PinsByDirection(dir PinDirection) []*Pin {
	out := make([]*Pin, 0, len(n.Pins))
	for _, p := range n.Pins {
		if p.Direction == dir {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// AutoHandleErrorPin returns the node's auto_handle_error output execution
// pin, if present (§3 Node, §4.5).
func (n *Node) AutoHandleErrorPin() *Pin {
	for _, p := range n.Pins {
		if p.Name == "auto_handle_error" && p.Direction == Output {
			return p
		}
	}
	return nil
}

// AutoHandleErrorStringPin returns the auto_handle_error_string data pin.
func (n *Node) AutoHandleErrorStringPin() *Pin {
	for _, p := range n.Pins {
		if p.Name == "auto_handle_error_string" {
			return p
		}
	}
	return nil
}

// Variable is a board-level variable (§3 Variable).
type Variable struct {
	ID               string
	Name             string
	DataType         value.DataType
	ValueType        value.ValueType
	Default          []byte
	Exposed          bool // can be set by event
	Secret           bool
	RuntimeConfigured bool // may be overridden by trusted runtime
	Current          value.Value
}

// Layer is a named subgraph container (§3 Layer).
type Layer struct {
	ID        string
	Name      string
	ParentID  string // empty for top-level layers
	NodeIDs   map[string]struct{}
	PinIDs    map[string]struct{} // relay/bridge pins owned by this layer
	VarIDs    map[string]struct{}
	CommentIDs map[string]struct{}
}

// Board is the authoring graph (§3 Board): immutable during a run.
type Board struct {
	ID           string
	Name         string
	Version      [3]int // semantic version triple
	Stage        Stage
	LogLevel     telemetry.Level // configured floor; EffectiveLogLevelFloor() combines it with the stage floor
	Nodes        map[string]*Node
	Variables    map[string]*Variable
	Layers       map[string]*Layer
	Refs         map[string]string // hash -> de-duplicated description string

	relayPins map[string]*Pin // owner-less pins (layer bridges), keyed by pin id
}

// New creates an empty Board.
func New(name string, stage Stage) *Board {
	return &Board{
		ID:        uuid.NewString(),
		Name:      name,
		Version:   [3]int{0, 1, 0},
		Stage:     stage,
		LogLevel:  telemetry.Debug,
		Nodes:     make(map[string]*Node),
		Variables: make(map[string]*Variable),
		Layers:    make(map[string]*Layer),
		Refs:      make(map[string]string),
		relayPins: make(map[string]*Pin),
	}
}

// EffectiveLogLevelFloor combines the board's configured floor with the
// stage-derived floor, taking the stricter (higher) of the two.
func (b *Board) EffectiveLogLevelFloor() telemetry.Level {
	floor := b.Stage.LogLevelFloor()
	if b.LogLevel > floor {
		return b.LogLevel
	}
	return floor
}

// FindPin looks up a pin by id across all nodes and layer relays.
func (b *Board) FindPin(pinID string) *Pin {
	for _, n := range b.Nodes {
		if p, ok := n.Pins[pinID]; ok {
			return p
		}
	}
	return b.relayPins[pinID]
}

// AddRelayPin registers an owner-less bridge pin for a layer (§3 Layer /
// Relay pin). Used both when authoring layers and by the repair pass in
// repair.go when it synthesizes bridge pins for empty layers.
func (b *Board) AddRelayPin(layerID string, p *Pin) {
	p.NodeID = ""
	p.LayerID = layerID
	if b.relayPins == nil {
		b.relayPins = make(map[string]*Pin)
	}
	b.relayPins[p.ID] = p
	if l, ok := b.Layers[layerID]; ok {
		if l.PinIDs == nil {
			l.PinIDs = make(map[string]struct{})
		}
		l.PinIDs[p.ID] = struct{}{}
	}
}

// RelayPins returns every owner-less bridge pin on the board.
func (b *Board) RelayPins() map[string]*Pin { return b.relayPins }
