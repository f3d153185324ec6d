// Package markup loads an XML document description and replays it onto a
// styling target as node, parent and attribute operations.
package markup

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beevik/etree"

	"stylo/dom"
)

// Target receives the replayed document structure. Both the in-process
// engine and a registry-bound handle satisfy it.
type Target interface {
	CreateNode(id dom.NodeID, text string) (dom.NodeID, error)
	SetParent(parent, child dom.NodeID) error
	SetAttribute(id dom.NodeID, key, value string) error
}

// Load parses XML from r and replays it onto t. Element names become the
// "tag" attribute, element attributes carry over verbatim, and character
// data becomes node text. Node ids are assigned sequentially from 1; the
// document element attaches under the target's root. Returns the number of
// nodes created.
func Load(r io.Reader, t Target) (int, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return 0, fmt.Errorf("markup: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return 0, fmt.Errorf("markup: document has no root element")
	}

	next := dom.NodeID(1)
	if err := replay(root, dom.Root, &next, t); err != nil {
		return 0, err
	}
	return int(next) - 1, nil
}

// LoadFile is Load over a file path.
func LoadFile(path string, t Target) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("markup: %w", err)
	}
	defer f.Close()
	return Load(f, t)
}

func replay(el *etree.Element, parent dom.NodeID, next *dom.NodeID, t Target) error {
	id := *next
	*next++

	if _, err := t.CreateNode(id, strings.TrimSpace(el.Text())); err != nil {
		return fmt.Errorf("markup: element <%s>: %w", el.Tag, err)
	}
	if err := t.SetAttribute(id, "tag", el.Tag); err != nil {
		return err
	}
	for _, attr := range el.Attr {
		if err := t.SetAttribute(id, attr.Key, attr.Value); err != nil {
			return err
		}
	}
	if err := t.SetParent(parent, id); err != nil {
		return err
	}

	for _, child := range el.ChildElements() {
		if err := replay(child, id, next, t); err != nil {
			return err
		}
	}
	return nil
}
