package workflow

import (
	"encoding/json"
	"fmt"
)

// NodeKind classifies a lifecycle node
type NodeKind string

const (
	KindNormal   NodeKind = "normal"
	KindTerminal NodeKind = "terminal"
)

// Node represents one lifecycle state of a reviewable resource
type Node struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind NodeKind `json:"kind"`
}

// UnmarshalJSON accepts both the current "kind" field and the legacy
// "type" field name used by older backend deployments
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Kind string `json:"kind"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	kind := raw.Kind
	if kind == "" {
		kind = raw.Type
	}
	if kind == "" {
		kind = string(KindNormal)
	}

	n.ID = raw.ID
	n.Name = raw.Name
	n.Kind = NodeKind(kind)
	return nil
}

// IsTerminal returns true if the node permits no further transitions
func (n Node) IsTerminal() bool {
	return n.Kind == KindTerminal
}

// Action represents an operation a reviewer can invoke on a resource
type Action struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Transition declares that an action is legal from a node. The target
// node is resolved server-side when the action is executed, so it is
// deliberately absent here.
type Transition struct {
	FromNode string `json:"from_node"`
	Action   string `json:"action"`
}

// Definition is the full node/action/transition graph for one resource
// type. It is fetched as configuration and treated as read-only for the
// lifetime of a review screen, so it is safe to share across a session
// and a batch coordinator without locking.
type Definition struct {
	ResourceType string       `json:"resource_type"`
	Nodes        []Node       `json:"nodes"`
	Actions      []Action     `json:"actions"`
	Transitions  []Transition `json:"transitions"`

	// Degraded marks a static fallback definition built when the
	// backend fetch failed. Degraded definitions offer no actions.
	Degraded bool `json:"-"`
}

// Validate checks the structural invariants of a fetched definition.
func (d *Definition) Validate() error {
	nodeIDs := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if nodeIDs[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		nodeIDs[n.ID] = true
	}

	actionIDs := make(map[string]bool, len(d.Actions))
	for _, a := range d.Actions {
		if a.ID == "" {
			return fmt.Errorf("action with empty id")
		}
		if actionIDs[a.ID] {
			return fmt.Errorf("duplicate action id %q", a.ID)
		}
		actionIDs[a.ID] = true
	}

	seen := make(map[[2]string]bool, len(d.Transitions))
	for _, t := range d.Transitions {
		if !nodeIDs[t.FromNode] {
			return fmt.Errorf("transition from unknown node %q", t.FromNode)
		}
		if !actionIDs[t.Action] {
			return fmt.Errorf("transition via unknown action %q", t.Action)
		}
		key := [2]string{t.FromNode, t.Action}
		if seen[key] {
			return fmt.Errorf("duplicate transition (%s, %s)", t.FromNode, t.Action)
		}
		seen[key] = true
	}

	return nil
}

// node finds a node by id, reporting whether it exists.
func (d *Definition) node(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// action finds an action by id, reporting whether it exists.
func (d *Definition) action(id string) (Action, bool) {
	for _, a := range d.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// HasAction reports whether the action id is declared by the definition.
func (d *Definition) HasAction(id string) bool {
	_, ok := d.action(id)
	return ok
}

// NodeName resolves a human label for a node id: the definition first,
// then the static fallback table, then the raw id.
func (d *Definition) NodeName(id string) string {
	if n, ok := d.node(id); ok && n.Name != "" {
		return n.Name
	}
	if label, ok := fallbackLabels[id]; ok {
		return label
	}
	return id
}

// IsTerminal reports whether the node disables further actions. Unknown
// ids are treated as non-terminal so stale metadata never hides
// legitimate actions from the reviewer.
func (d *Definition) IsTerminal(id string) bool {
	n, ok := d.node(id)
	return ok && n.IsTerminal()
}

// ActionsFrom returns the actions reachable from a node, de-duplicated
// by action id and in the order the backend declared the transitions.
// Terminal and unknown nodes yield no actions.
func (d *Definition) ActionsFrom(nodeID string) []Action {
	if d.IsTerminal(nodeID) {
		return nil
	}

	var actions []Action
	seen := make(map[string]bool)
	for _, t := range d.Transitions {
		if t.FromNode != nodeID || seen[t.Action] {
			continue
		}
		seen[t.Action] = true
		if a, ok := d.action(t.Action); ok {
			actions = append(actions, a)
		}
	}
	return actions
}
