// Package css parses stylesheets and keeps them as an ordered, append-only
// list of rules for the cascade.
package css

import (
	"fmt"
	"strings"
	"unicode"
)

// Value represents a parsed CSS property value.
type Value struct {
	Raw     string  // Original CSS value string (e.g., "1.2em", "bold", "#ff0000")
	Value   float64 // Numeric value if applicable
	Unit    string  // Unit if applicable: "em", "px", "%", "pt", etc.
	Keyword string  // Keyword if applicable: "bold", "italic", "center", etc.
}

// IsNumeric returns true if the value has a numeric component.
// This includes explicit zero values like "0" or "0px".
func (v Value) IsNumeric() bool {
	if v.Unit != "" {
		return true
	}
	if v.Value != 0 && v.Keyword == "" {
		return true
	}
	if v.Raw != "" && v.Keyword == "" {
		firstChar := rune(v.Raw[0])
		if unicode.IsDigit(firstChar) || firstChar == '.' || firstChar == '-' || firstChar == '+' {
			return true
		}
	}
	return false
}

// IsKeyword returns true if the value is a keyword (no numeric component).
func (v Value) IsKeyword() bool {
	return v.Keyword != "" && v.Unit == ""
}

// KeywordValue builds a keyword-only value. Used for property initial values.
func KeywordValue(kw string) Value {
	return Value{Raw: kw, Keyword: kw}
}

// Dimension builds a numeric value with a unit.
func Dimension(n float64, unit string) Value {
	raw := fmt.Sprintf("%g", n)
	return Value{Raw: raw + unit, Value: n, Unit: unit}
}

// Declaration is a single "property: value" pair. Declarations keep their
// source order within a rule; the cascade applies them in that order.
type Declaration struct {
	Property string
	Value    Value
}

// Combinator relates a compound selector to its Ancestor.
type Combinator int

const (
	// Descendant matches when the ancestor selector matches any ancestor
	// of the node ("a b").
	Descendant Combinator = iota
	// Child matches only the immediate parent ("a > b").
	Child
)

func (c Combinator) String() string {
	if c == Child {
		return ">"
	}
	return " "
}

// Selector is one compound selector, possibly chained to an ancestor
// compound through a combinator. For "div > .note p" the Selector describes
// "p"; its Ancestor describes ".note" with Combinator Descendant, and the
// ancestor's own Ancestor describes "div" with Combinator Child.
//
// Supported simple selectors: type, universal "*", class ".c", id "#i" and
// attribute presence "[key]".
type Selector struct {
	Raw       string   // Original selector text
	Element   string   // Type selector, empty if none
	Universal bool     // "*" was present
	ID        string   // "#id" selector, empty if none
	Classes   []string // ".class" selectors in source order
	Attrs     []string // "[key]" attribute-presence selectors

	Combinator Combinator // Relation to Ancestor, meaningful only when Ancestor != nil
	Ancestor   *Selector
}

// IsCompound returns true when the rightmost compound carries at least one
// simple selector.
func (s *Selector) IsCompound() bool {
	return s.Element != "" || s.Universal || s.ID != "" || len(s.Classes) > 0 || len(s.Attrs) > 0
}

// Specificity is the CSS selector weight: id count, class/attribute count,
// type count, most significant first.
type Specificity [3]int

// Compare returns -1, 0 or 1 comparing lexicographically.
func (s Specificity) Compare(o Specificity) int {
	for i := range s {
		switch {
		case s[i] < o[i]:
			return -1
		case s[i] > o[i]:
			return 1
		}
	}
	return 0
}

func (s Specificity) String() string {
	return fmt.Sprintf("(%d,%d,%d)", s[0], s[1], s[2])
}

// Specificity computes the weight of the whole selector chain.
func (s *Selector) Specificity() Specificity {
	var sp Specificity
	for cur := s; cur != nil; cur = cur.Ancestor {
		if cur.ID != "" {
			sp[0]++
		}
		sp[1] += len(cur.Classes) + len(cur.Attrs)
		if cur.Element != "" {
			sp[2]++
		}
	}
	return sp
}

// String reassembles the selector chain, leftmost ancestor first.
func (s *Selector) String() string {
	var chain []*Selector
	for cur := s; cur != nil; cur = cur.Ancestor {
		chain = append([]*Selector{cur}, chain...)
	}
	var b strings.Builder
	for i, cur := range chain {
		if i > 0 {
			// the combinator lives on the right-hand compound
			if chain[i].Combinator == Child {
				b.WriteString(" > ")
			} else {
				b.WriteString(" ")
			}
		}
		if cur.Element != "" {
			b.WriteString(cur.Element)
		}
		if cur.Universal {
			b.WriteByte('*')
		}
		if cur.ID != "" {
			b.WriteByte('#')
			b.WriteString(cur.ID)
		}
		for _, c := range cur.Classes {
			b.WriteByte('.')
			b.WriteString(c)
		}
		for _, a := range cur.Attrs {
			b.WriteByte('[')
			b.WriteString(a)
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Rule is a parsed style rule. Origin is the position of the rule across
// every stylesheet ever appended to the owning Store; it is the sole cascade
// tie-breaker at equal specificity.
type Rule struct {
	Selector     Selector
	Declarations []Declaration
	Origin       int
}

// Declaration returns the last declaration for the property, if any.
// Within one rule a repeated property is won by the later declaration.
func (r *Rule) Declaration(property string) (Value, bool) {
	for i := len(r.Declarations) - 1; i >= 0; i-- {
		if r.Declarations[i].Property == property {
			return r.Declarations[i].Value, true
		}
	}
	return Value{}, false
}

// ParseError reports an unrecoverable syntax failure. Per-rule problems are
// recovered from and reported as warnings instead.
type ParseError struct {
	Offset int // Byte offset into the stylesheet text
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("css: parse error at offset %d: %s", e.Offset, e.Msg)
}
