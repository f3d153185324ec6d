package dom

import "errors"

var (
	// ErrInvalidID is returned when a caller tries to create a node with
	// the reserved id 0.
	ErrInvalidID = errors.New("dom: node id 0 is reserved for the root")

	// ErrDuplicateID is returned when the node id already exists.
	ErrDuplicateID = errors.New("dom: duplicate node id")

	// ErrUnknownNode is returned when a node id does not exist in the tree.
	ErrUnknownNode = errors.New("dom: unknown node")

	// ErrSelfParent is returned when a node is made its own parent.
	ErrSelfParent = errors.New("dom: node cannot be its own parent")

	// ErrCycle is returned when reparenting would make a node its own
	// ancestor.
	ErrCycle = errors.New("dom: reparenting would create a cycle")

	// ErrReparentRoot is returned when the root is given a parent.
	ErrReparentRoot = errors.New("dom: root cannot be reparented")
)
