// Package dom keeps the document as an arena of nodes addressed by
// caller-supplied numeric ids. Id 0 is reserved for the root, which exists
// from creation and cannot be destroyed or reparented.
package dom

import (
	"go.uber.org/zap"
)

// NodeID identifies a node within one tree. Callers choose ids for the
// nodes they create; 0 always denotes the root.
type NodeID uint64

// Root is the reserved id of the tree root.
const Root NodeID = 0

type node struct {
	id       NodeID
	text     string
	attrs    map[string]string
	parent   *node // nil for the root and for detached nodes
	children []*node
}

// Tree is a single document. It is not safe for concurrent mutation; the
// engine serializes access per instance.
type Tree struct {
	log   *zap.Logger
	nodes map[NodeID]*node
}

// NewTree creates a tree holding only the root node.
func NewTree(log *zap.Logger) *Tree {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tree{
		log:   log.Named("dom"),
		nodes: make(map[NodeID]*node),
	}
	t.nodes[Root] = &node{id: Root, attrs: make(map[string]string)}
	return t
}

// RootID returns the reserved root id.
func (t *Tree) RootID() NodeID {
	return Root
}

// Len returns the number of nodes, root included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Contains reports whether id names an existing node.
func (t *Tree) Contains(id NodeID) bool {
	_, ok := t.nodes[id]
	return ok
}

// CreateNode adds a detached node with the given id and optional text
// content. It fails with ErrInvalidID for id 0 and ErrDuplicateID when the
// id is already taken; the tree is unchanged on failure.
func (t *Tree) CreateNode(id NodeID, text string) (NodeID, error) {
	if id == Root {
		return 0, ErrInvalidID
	}
	if _, ok := t.nodes[id]; ok {
		return 0, ErrDuplicateID
	}
	t.nodes[id] = &node{id: id, text: text, attrs: make(map[string]string)}
	t.log.Debug("Node created", zap.Uint64("id", uint64(id)), zap.Bool("text", text != ""))
	return id, nil
}

// SetParent attaches child under parent, detaching it from any previous
// parent first. Moving a whole subtree is allowed. The operation is
// rejected, leaving the tree unchanged, when either node is unknown, when
// parent and child are the same node, or when the child is an ancestor of
// the proposed parent.
func (t *Tree) SetParent(parentID, childID NodeID) error {
	if parentID == childID {
		return ErrSelfParent
	}
	if childID == Root {
		return ErrReparentRoot
	}
	parent, ok := t.nodes[parentID]
	if !ok {
		return ErrUnknownNode
	}
	child, ok := t.nodes[childID]
	if !ok {
		return ErrUnknownNode
	}

	// Walk the proposed parent's ancestor chain before committing.
	for anc := parent.parent; anc != nil; anc = anc.parent {
		if anc == child {
			return ErrCycle
		}
	}

	if child.parent == parent {
		// Already in place; keep current sibling order.
		return nil
	}
	if old := child.parent; old != nil {
		old.children = removeChild(old.children, child)
	}
	child.parent = parent
	parent.children = append(parent.children, child)

	t.log.Debug("Node reparented",
		zap.Uint64("parent", uint64(parentID)),
		zap.Uint64("child", uint64(childID)))
	return nil
}

func removeChild(children []*node, child *node) []*node {
	out := children[:0]
	for _, c := range children {
		if c != child {
			out = append(out, c)
		}
	}
	return out
}

// SetAttribute sets key to value on the node, replacing any previous value.
// Keys are case-sensitive. The "class" attribute holds whitespace-separated
// class tokens; the "tag" attribute names the node's element type and the
// "id" attribute backs id selectors.
func (t *Tree) SetAttribute(id NodeID, key, value string) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	n.attrs[key] = value
	return nil
}

// Attribute returns the value for key on the node.
func (t *Tree) Attribute(id NodeID, key string) (string, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return "", false
	}
	v, ok := n.attrs[key]
	return v, ok
}

// Attributes returns a copy of the node's attribute mapping.
func (t *Tree) Attributes(id NodeID) map[string]string {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(n.attrs))
	for k, v := range n.attrs {
		out[k] = v
	}
	return out
}

// Text returns the node's text content, empty when it has none.
func (t *Tree) Text(id NodeID) string {
	if n, ok := t.nodes[id]; ok {
		return n.text
	}
	return ""
}

// Parent returns the node's parent id. The boolean is false for the root,
// for detached nodes and for unknown ids.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	n, ok := t.nodes[id]
	if !ok || n.parent == nil {
		return 0, false
	}
	return n.parent.id, true
}

// Children returns the node's children ids in insertion order.
func (t *Tree) Children(id NodeID) []NodeID {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]NodeID, len(n.children))
	for i, c := range n.children {
		out[i] = c.id
	}
	return out
}

// Ancestors returns the node's ancestor chain ordered root-first, the node
// itself excluded. Detached nodes have no ancestors.
func (t *Tree) Ancestors(id NodeID) []NodeID {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	var chain []NodeID
	for cur := n.parent; cur != nil; cur = cur.parent {
		chain = append([]NodeID{cur.id}, chain...)
	}
	return chain
}

// Subtree returns id and all ids below it in depth-first order.
func (t *Tree) Subtree(id NodeID) []NodeID {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	var out []NodeID
	var walk func(*node)
	walk = func(cur *node) {
		out = append(out, cur.id)
		for _, c := range cur.children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// IDs returns every node id in the tree in unspecified order.
func (t *Tree) IDs() []NodeID {
	out := make([]NodeID, 0, len(t.nodes))
	for id := range t.nodes {
		out = append(out, id)
	}
	return out
}
