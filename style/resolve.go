package style

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"stylo/css"
	"stylo/dom"
)

// NoRule marks provenance entries not supplied by any stylesheet rule.
const NoRule = -1

// PropertyValue is one resolved property together with its provenance:
// the origin index of the rule that supplied it (NoRule for initial
// values), and whether it was copied from an ancestor's resolved value.
type PropertyValue struct {
	Value     css.Value
	Origin    int
	Inherited bool
}

// Resolved is the complete property mapping of one node. It is ephemeral:
// the resolver recomputes it whenever the tree or the stylesheet set
// changes.
type Resolved struct {
	Props map[string]PropertyValue
}

// Get returns the resolved entry for the property.
func (r *Resolved) Get(property string) (PropertyValue, bool) {
	pv, ok := r.Props[property]
	return pv, ok
}

// Keyword returns the keyword of the resolved property, or "" when the
// property is unset or not a keyword.
func (r *Resolved) Keyword(property string) string {
	if pv, ok := r.Props[property]; ok {
		return pv.Value.Keyword
	}
	return ""
}

// Dump renders the mapping deterministically, one "property: raw" line per
// entry in property order, with provenance markers. Used by the CLI output
// and golden tests.
func (r *Resolved) Dump() string {
	names := make([]string, 0, len(r.Props))
	for name := range r.Props {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		pv := r.Props[name]
		fmt.Fprintf(&b, "%s: %s", name, pv.Value.Raw)
		switch {
		case pv.Inherited:
			b.WriteString(" (inherited)")
		case pv.Origin == NoRule:
			b.WriteString(" (initial)")
		default:
			fmt.Fprintf(&b, " (rule %d)", pv.Origin)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Resolver computes resolved styles against one tree and one stylesheet
// store. Results are memoized per node; mutations must be followed by
// Invalidate on the affected subtree (or InvalidateAll for stylesheet
// appends) before the next resolution.
type Resolver struct {
	log   *zap.Logger
	tree  *dom.Tree
	sheet *css.Store
	cache map[dom.NodeID]*Resolved
}

// NewResolver creates a resolver over the given tree and store.
func NewResolver(tree *dom.Tree, sheet *css.Store, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		log:   log.Named("resolver"),
		tree:  tree,
		sheet: sheet,
		cache: make(map[dom.NodeID]*Resolved),
	}
}

// Invalidate drops the memoized styles for the whole subtree rooted at id.
// Conservative on purpose: the dropped set is a superset of what the
// mutation could have affected.
func (r *Resolver) Invalidate(id dom.NodeID) {
	for _, nid := range r.tree.Subtree(id) {
		delete(r.cache, nid)
	}
}

// InvalidateAll drops every memoized style.
func (r *Resolver) InvalidateAll() {
	r.cache = make(map[dom.NodeID]*Resolved)
}

// Resolve computes the node's resolved style. It is a pure function of the
// current tree and stylesheet state and performs no mutation.
func (r *Resolver) Resolve(id dom.NodeID) (*Resolved, error) {
	if !r.tree.Contains(id) {
		return nil, dom.ErrUnknownNode
	}
	if cached, ok := r.cache[id]; ok {
		return cached, nil
	}

	// Parent first; inheritance is recursive up to the root.
	var parent *Resolved
	if pid, ok := r.tree.Parent(id); ok {
		var err error
		if parent, err = r.Resolve(pid); err != nil {
			return nil, err
		}
	}

	resolved := &Resolved{Props: make(map[string]PropertyValue)}

	// Matching rules, ranked ascending by specificity then origin. Later
	// applications overwrite earlier ones, so the per-property winner is
	// the last matching rule in this order that declares it.
	matched := r.matchingRules(id)
	sort.SliceStable(matched, func(i, j int) bool {
		if c := matched[i].Selector.Specificity().Compare(matched[j].Selector.Specificity()); c != 0 {
			return c < 0
		}
		return matched[i].Origin < matched[j].Origin
	})
	for _, rule := range matched {
		for _, decl := range rule.Declarations {
			resolved.Props[decl.Property] = PropertyValue{Value: decl.Value, Origin: rule.Origin}
		}
	}

	// Unset properties: inherit where defined inheritable and some rule up
	// the chain actually supplied a value, otherwise take the initial
	// value. A chain that bottoms out at initial values stays "initial".
	for name, def := range properties {
		if _, ok := resolved.Props[name]; ok {
			continue
		}
		if def.inherited && parent != nil {
			if pv, ok := parent.Props[name]; ok && pv.Origin != NoRule {
				resolved.Props[name] = PropertyValue{Value: pv.Value, Origin: pv.Origin, Inherited: true}
				continue
			}
		}
		resolved.Props[name] = PropertyValue{Value: def.initial, Origin: NoRule}
	}

	r.cache[id] = resolved
	r.log.Debug("Style resolved",
		zap.Uint64("node", uint64(id)),
		zap.Int("matched", len(matched)))
	return resolved, nil
}

// matchingRules returns every stored rule whose selector matches the node.
func (r *Resolver) matchingRules(id dom.NodeID) []css.Rule {
	var matched []css.Rule
	rules := r.sheet.Rules()
	for i := range rules {
		if r.matches(&rules[i].Selector, id) {
			matched = append(matched, rules[i])
		}
	}
	return matched
}

// matches tests the selector chain against the node: the rightmost compound
// against the node itself, ancestor compounds against the ancestor chain
// with backtracking for descendant combinators.
func (r *Resolver) matches(sel *css.Selector, id dom.NodeID) bool {
	if !sel.IsCompound() {
		return false
	}
	if !r.matchCompound(sel, id) {
		return false
	}
	return r.matchAncestors(sel, id)
}

func (r *Resolver) matchAncestors(sel *css.Selector, id dom.NodeID) bool {
	anc := sel.Ancestor
	if anc == nil {
		return true
	}

	parent, ok := r.tree.Parent(id)
	if !ok {
		return false
	}

	if sel.Combinator == css.Child {
		return r.matchCompound(anc, parent) && r.matchAncestors(anc, parent)
	}

	// Descendant: try every ancestor, backtracking through the rest of the
	// chain from each candidate.
	for cur, ok := parent, true; ok; cur, ok = r.tree.Parent(cur) {
		if r.matchCompound(anc, cur) && r.matchAncestors(anc, cur) {
			return true
		}
	}
	return false
}

// matchCompound tests one compound selector against one node. Type
// selectors consult the reserved "tag" attribute, id selectors the reserved
// "id" attribute, class selectors the whitespace-separated "class" token
// set, attribute-presence selectors the attribute mapping directly.
func (r *Resolver) matchCompound(sel *css.Selector, id dom.NodeID) bool {
	if sel.Element != "" {
		tag, ok := r.tree.Attribute(id, "tag")
		if !ok || !strings.EqualFold(tag, sel.Element) {
			return false
		}
	}
	if sel.ID != "" {
		nid, ok := r.tree.Attribute(id, "id")
		if !ok || nid != sel.ID {
			return false
		}
	}
	if len(sel.Classes) > 0 {
		classAttr, ok := r.tree.Attribute(id, "class")
		if !ok {
			return false
		}
		tokens := strings.Fields(classAttr)
		for _, want := range sel.Classes {
			found := false
			for _, tok := range tokens {
				if tok == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, key := range sel.Attrs {
		if _, ok := r.tree.Attribute(id, key); !ok {
			return false
		}
	}
	return true
}
