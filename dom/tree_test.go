package dom_test

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"stylo/dom"
)

func TestTree_RootExists(t *testing.T) {
	tree := dom.NewTree(zap.NewNop())
	if !tree.Contains(dom.Root) {
		t.Fatal("expected root to exist from creation")
	}
	if tree.Len() != 1 {
		t.Errorf("expected Len 1, got %d", tree.Len())
	}
	if _, ok := tree.Parent(dom.Root); ok {
		t.Error("root must not have a parent")
	}
}

func TestTree_CreateNode(t *testing.T) {
	tree := dom.NewTree(zap.NewNop())

	id, err := tree.CreateNode(1, "hello")
	if err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	if id != 1 {
		t.Errorf("expected id 1, got %d", id)
	}
	if tree.Text(1) != "hello" {
		t.Errorf("expected text 'hello', got %q", tree.Text(1))
	}

	// Created nodes start detached.
	if _, ok := tree.Parent(1); ok {
		t.Error("new node must be detached")
	}

	if _, err := tree.CreateNode(1, ""); !errors.Is(err, dom.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := tree.CreateNode(0, ""); !errors.Is(err, dom.ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
	if tree.Len() != 2 {
		t.Errorf("failed creates must not change the tree, Len = %d", tree.Len())
	}
}

func TestTree_SetParent(t *testing.T) {
	tree := dom.NewTree(zap.NewNop())
	for id := dom.NodeID(1); id <= 3; id++ {
		if _, err := tree.CreateNode(id, ""); err != nil {
			t.Fatalf("CreateNode(%d): %v", id, err)
		}
	}

	if err := tree.SetParent(dom.Root, 1); err != nil {
		t.Fatalf("SetParent(root, 1): %v", err)
	}
	if err := tree.SetParent(1, 2); err != nil {
		t.Fatalf("SetParent(1, 2): %v", err)
	}
	if err := tree.SetParent(2, 3); err != nil {
		t.Fatalf("SetParent(2, 3): %v", err)
	}

	if pid, ok := tree.Parent(2); !ok || pid != 1 {
		t.Errorf("Parent(2) = %d, %v", pid, ok)
	}

	anc := tree.Ancestors(3)
	want := []dom.NodeID{dom.Root, 1, 2}
	if len(anc) != len(want) {
		t.Fatalf("Ancestors(3) = %v, want %v", anc, want)
	}
	for i := range want {
		if anc[i] != want[i] {
			t.Fatalf("Ancestors(3) = %v, want %v", anc, want)
		}
	}
}

func TestTree_SetParentRejections(t *testing.T) {
	tree := dom.NewTree(zap.NewNop())
	for id := dom.NodeID(1); id <= 3; id++ {
		if _, err := tree.CreateNode(id, ""); err != nil {
			t.Fatalf("CreateNode(%d): %v", id, err)
		}
	}
	if err := tree.SetParent(dom.Root, 1); err != nil {
		t.Fatal(err)
	}
	if err := tree.SetParent(1, 2); err != nil {
		t.Fatal(err)
	}
	if err := tree.SetParent(2, 3); err != nil {
		t.Fatal(err)
	}

	if err := tree.SetParent(1, 1); !errors.Is(err, dom.ErrSelfParent) {
		t.Errorf("self parent: got %v", err)
	}
	if err := tree.SetParent(1, dom.Root); !errors.Is(err, dom.ErrReparentRoot) {
		t.Errorf("reparent root: got %v", err)
	}
	if err := tree.SetParent(99, 1); !errors.Is(err, dom.ErrUnknownNode) {
		t.Errorf("unknown parent: got %v", err)
	}
	if err := tree.SetParent(1, 99); !errors.Is(err, dom.ErrUnknownNode) {
		t.Errorf("unknown child: got %v", err)
	}
	// 1 is an ancestor of 3; making 1 a child of 3 would close a cycle.
	if err := tree.SetParent(3, 1); !errors.Is(err, dom.ErrCycle) {
		t.Errorf("cycle: got %v", err)
	}

	// The rejected operations left everything in place.
	if pid, ok := tree.Parent(1); !ok || pid != dom.Root {
		t.Errorf("Parent(1) = %d, %v after rejections", pid, ok)
	}
	if pid, ok := tree.Parent(3); !ok || pid != 2 {
		t.Errorf("Parent(3) = %d, %v after rejections", pid, ok)
	}
}

func TestTree_MoveSubtree(t *testing.T) {
	tree := dom.NewTree(zap.NewNop())
	for id := dom.NodeID(1); id <= 4; id++ {
		if _, err := tree.CreateNode(id, ""); err != nil {
			t.Fatal(err)
		}
	}
	// root -> 1 -> 2 -> 3, root -> 4
	for _, link := range [][2]dom.NodeID{{dom.Root, 1}, {1, 2}, {2, 3}, {dom.Root, 4}} {
		if err := tree.SetParent(link[0], link[1]); err != nil {
			t.Fatal(err)
		}
	}

	// Move the subtree rooted at 2 under 4.
	if err := tree.SetParent(4, 2); err != nil {
		t.Fatalf("moving subtree: %v", err)
	}
	if pid, _ := tree.Parent(2); pid != 4 {
		t.Errorf("Parent(2) = %d, want 4", pid)
	}
	if pid, _ := tree.Parent(3); pid != 2 {
		t.Errorf("Parent(3) = %d, want 2 (subtree moves whole)", pid)
	}
	if kids := tree.Children(1); len(kids) != 0 {
		t.Errorf("Children(1) = %v, want none", kids)
	}

	sub := tree.Subtree(4)
	if len(sub) != 3 || sub[0] != 4 || sub[1] != 2 || sub[2] != 3 {
		t.Errorf("Subtree(4) = %v", sub)
	}
}

func TestTree_SetParentIdempotent(t *testing.T) {
	tree := dom.NewTree(zap.NewNop())
	for id := dom.NodeID(1); id <= 2; id++ {
		if _, err := tree.CreateNode(id, ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := tree.SetParent(dom.Root, 1); err != nil {
		t.Fatal(err)
	}
	if err := tree.SetParent(dom.Root, 2); err != nil {
		t.Fatal(err)
	}

	// Repeating an attachment keeps the sibling order.
	if err := tree.SetParent(dom.Root, 1); err != nil {
		t.Fatalf("repeat attach: %v", err)
	}
	kids := tree.Children(dom.Root)
	if len(kids) != 2 || kids[0] != 1 || kids[1] != 2 {
		t.Errorf("Children(root) = %v, want [1 2]", kids)
	}
}

func TestTree_Attributes(t *testing.T) {
	tree := dom.NewTree(zap.NewNop())
	if _, err := tree.CreateNode(1, ""); err != nil {
		t.Fatal(err)
	}

	if err := tree.SetAttribute(1, "class", "note warning"); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	if v, ok := tree.Attribute(1, "class"); !ok || v != "note warning" {
		t.Errorf("Attribute = %q, %v", v, ok)
	}

	// Replacement, not accumulation.
	if err := tree.SetAttribute(1, "class", "plain"); err != nil {
		t.Fatal(err)
	}
	if v, _ := tree.Attribute(1, "class"); v != "plain" {
		t.Errorf("Attribute after replace = %q", v)
	}

	if err := tree.SetAttribute(99, "k", "v"); !errors.Is(err, dom.ErrUnknownNode) {
		t.Errorf("unknown node: got %v", err)
	}

	// Root takes attributes like any node.
	if err := tree.SetAttribute(dom.Root, "tag", "html"); err != nil {
		t.Errorf("root attribute: %v", err)
	}

	attrs := tree.Attributes(1)
	attrs["class"] = "mutated"
	if v, _ := tree.Attribute(1, "class"); v != "plain" {
		t.Error("Attributes must return a copy")
	}
}
