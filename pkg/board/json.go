package board

import (
	"encoding/json"
	"fmt"

	"github.com/flowcore-run/flowcore/pkg/value"
)

// wirePin/wireNode/wireBoard are the JSON-friendly shapes authoring
// tools emit; Board.FromJSON expands them into the map/set-based
// in-memory structures the repair pass and InternalRun construction
// expect.
type wirePin struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	FriendlyName string          `json:"friendly_name,omitempty"`
	Direction    string          `json:"direction"`
	DataType     string          `json:"data_type"`
	ValueType    string          `json:"value_type,omitempty"`
	Schema       json.RawMessage `json:"schema,omitempty"`
	Default      json.RawMessage `json:"default,omitempty"`
	ConnectedTo  []string        `json:"connected_to,omitempty"`
	DependsOn    []string        `json:"depends_on,omitempty"`
	Index        int             `json:"index"`
}

type wireNode struct {
	ID          string    `json:"id"`
	LogicName   string    `json:"logic_name"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Pins        []wirePin `json:"pins"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	LayerID     string    `json:"layer_id,omitempty"`
}

type wireVariable struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	DataType          string          `json:"data_type"`
	ValueType         string          `json:"value_type,omitempty"`
	Default           json.RawMessage `json:"default,omitempty"`
	Exposed           bool            `json:"exposed,omitempty"`
	Secret            bool            `json:"secret,omitempty"`
	RuntimeConfigured bool            `json:"runtime_configured,omitempty"`
}

type wireLayer struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parent_id,omitempty"`
	NodeIDs  []string `json:"node_ids,omitempty"`
}

type wireBoard struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Version   [3]int         `json:"version"`
	Stage     string         `json:"stage"`
	Nodes     []wireNode     `json:"nodes"`
	Variables []wireVariable `json:"variables,omitempty"`
	Layers    []wireLayer    `json:"layers,omitempty"`
}

// FromJSON decodes an authored board document into a Board, followed by
// FixPinsSetLayer to repair any dangling edges the authoring tool left
// behind (§8 idempotent repair contract).
func FromJSON(data []byte) (*Board, error) {
	var w wireBoard
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("board: decode json: %w", err)
	}

	b := New(w.Name, Stage(w.Stage))
	b.ID = w.ID
	b.Version = w.Version

	for _, wn := range w.Nodes {
		n := &Node{
			ID:          wn.ID,
			LogicName:   wn.LogicName,
			Name:        wn.Name,
			Description: wn.Description,
			X:           wn.X,
			Y:           wn.Y,
			LayerID:     wn.LayerID,
			Pins:        make(map[string]*Pin, len(wn.Pins)),
		}
		for _, wp := range wn.Pins {
			p, err := wp.toPin(wn.ID)
			if err != nil {
				return nil, fmt.Errorf("board: node %s pin %s: %w", wn.ID, wp.ID, err)
			}
			n.Pins[p.ID] = p
		}
		b.AddNode(n)
	}

	for _, wl := range w.Layers {
		l := &Layer{
			ID:       wl.ID,
			Name:     wl.Name,
			ParentID: wl.ParentID,
			NodeIDs:  make(map[string]struct{}, len(wl.NodeIDs)),
		}
		for _, id := range wl.NodeIDs {
			l.NodeIDs[id] = struct{}{}
		}
		b.Layers[l.ID] = l
	}

	for _, wv := range w.Variables {
		v := &Variable{
			ID:                wv.ID,
			Name:              wv.Name,
			DataType:          value.DataType(wv.DataType),
			ValueType:         value.ValueType(wv.ValueType),
			Default:           []byte(wv.Default),
			Exposed:           wv.Exposed,
			Secret:            wv.Secret,
			RuntimeConfigured: wv.RuntimeConfigured,
		}
		b.Variables[v.ID] = v
	}

	b.FixPinsSetLayer()
	return b, nil
}

func (wp wirePin) toPin(nodeID string) (*Pin, error) {
	p := NewPin(wp.ID, wp.Name, PinDirection(wp.Direction), value.DataType(wp.DataType), value.ValueType(wp.ValueType))
	p.FriendlyName = wp.FriendlyName
	p.Schema = []byte(wp.Schema)
	p.Default = []byte(wp.Default)
	p.Index = wp.Index
	p.NodeID = nodeID
	for _, id := range wp.ConnectedTo {
		p.ConnectedTo[id] = struct{}{}
	}
	for _, id := range wp.DependsOn {
		p.DependsOn[id] = struct{}{}
	}
	return p, nil
}
