package markup_test

import (
	"strings"
	"testing"

	"stylo/dom"
	"stylo/markup"
)

// recorder implements the load target and keeps the replayed structure.
type recorder struct {
	nodes   map[dom.NodeID]string            // id -> text
	parents map[dom.NodeID]dom.NodeID        // child -> parent
	attrs   map[dom.NodeID]map[string]string // id -> attributes
	order   []dom.NodeID
}

func newRecorder() *recorder {
	return &recorder{
		nodes:   make(map[dom.NodeID]string),
		parents: make(map[dom.NodeID]dom.NodeID),
		attrs:   make(map[dom.NodeID]map[string]string),
	}
}

func (r *recorder) CreateNode(id dom.NodeID, text string) (dom.NodeID, error) {
	r.nodes[id] = text
	r.attrs[id] = make(map[string]string)
	r.order = append(r.order, id)
	return id, nil
}

func (r *recorder) SetParent(parent, child dom.NodeID) error {
	r.parents[child] = parent
	return nil
}

func (r *recorder) SetAttribute(id dom.NodeID, key, value string) error {
	r.attrs[id][key] = value
	return nil
}

const sampleDoc = `<html lang="en">
	<body>
		<div class="box">
			<p id="intro">Hello</p>
			<p>World</p>
		</div>
	</body>
</html>`

func TestLoad(t *testing.T) {
	rec := newRecorder()
	count, err := markup.Load(strings.NewReader(sampleDoc), rec)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if count != 5 {
		t.Fatalf("count = %d, want 5", count)
	}

	// Sequential ids in document order.
	for i, id := range rec.order {
		if id != dom.NodeID(i+1) {
			t.Fatalf("order = %v, want sequential from 1", rec.order)
		}
	}

	// The document element hangs off the reserved root.
	if rec.parents[1] != dom.Root {
		t.Errorf("parent of html node = %d, want root", rec.parents[1])
	}
	if rec.parents[4] != 3 {
		t.Errorf("parent of first p = %d, want 3", rec.parents[4])
	}

	// Element names land in the "tag" attribute, XML attributes carry over.
	if rec.attrs[1]["tag"] != "html" || rec.attrs[1]["lang"] != "en" {
		t.Errorf("html attrs = %v", rec.attrs[1])
	}
	if rec.attrs[3]["tag"] != "div" || rec.attrs[3]["class"] != "box" {
		t.Errorf("div attrs = %v", rec.attrs[3])
	}
	if rec.attrs[4]["id"] != "intro" {
		t.Errorf("p attrs = %v", rec.attrs[4])
	}

	if rec.nodes[4] != "Hello" || rec.nodes[5] != "World" {
		t.Errorf("text = %q, %q", rec.nodes[4], rec.nodes[5])
	}
}

func TestLoad_Malformed(t *testing.T) {
	rec := newRecorder()
	if _, err := markup.Load(strings.NewReader("<a><b></a>"), rec); err == nil {
		t.Error("expected mismatched tags to fail")
	}
	if _, err := markup.Load(strings.NewReader(""), rec); err == nil {
		t.Error("expected empty document to fail")
	}
}

func TestLoad_IntoTree(t *testing.T) {
	tree := dom.NewTree(nil)
	target := treeTarget{tree}
	count, err := markup.Load(strings.NewReader(sampleDoc), target)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tree.Len() != count+1 { // plus the root
		t.Errorf("tree.Len() = %d, want %d", tree.Len(), count+1)
	}
	if tag, _ := tree.Attribute(3, "tag"); tag != "div" {
		t.Errorf("tag of node 3 = %q", tag)
	}
}

// treeTarget adapts dom.Tree to the loader.
type treeTarget struct {
	tree *dom.Tree
}

func (t treeTarget) CreateNode(id dom.NodeID, text string) (dom.NodeID, error) {
	return t.tree.CreateNode(id, text)
}

func (t treeTarget) SetParent(parent, child dom.NodeID) error {
	return t.tree.SetParent(parent, child)
}

func (t treeTarget) SetAttribute(id dom.NodeID, key, value string) error {
	return t.tree.SetAttribute(id, key, value)
}
