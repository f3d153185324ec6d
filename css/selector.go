package css

import (
	"errors"
	"strings"
)

var (
	errEmptySelector    = errors.New("empty selector")
	errDanglingChild    = errors.New("dangling child combinator")
	errUnsupportedForm  = errors.New("pseudo and sibling selectors are not supported")
	errUnsupportedMatch = errors.New("attribute value matchers are not supported")
)

// parseSelectorChain parses a single (non-grouped) selector string into a
// compound chain. The returned Selector describes the rightmost compound;
// ancestors hang off it leftwards.
func parseSelectorChain(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Selector{}, errEmptySelector
	}
	if strings.ContainsAny(raw, ":+~") {
		return Selector{}, errUnsupportedForm
	}

	// Make child combinators their own fields.
	fields := strings.Fields(strings.ReplaceAll(raw, ">", " > "))

	var (
		left  *Selector
		comb  = Descendant
		child bool
	)
	for _, f := range fields {
		if f == ">" {
			if left == nil || child {
				return Selector{}, errDanglingChild
			}
			comb = Child
			child = true
			continue
		}

		cur, err := parseCompound(f)
		if err != nil {
			return Selector{}, err
		}
		cur.Combinator = comb
		cur.Ancestor = left
		left = cur
		comb = Descendant
		child = false
	}
	if left == nil || child {
		return Selector{}, errDanglingChild
	}

	subject := *left
	subject.Raw = raw
	return subject, nil
}

// parseCompound parses one compound selector with no combinators, e.g.
// "div", "*", ".note", "#main", "p.note[lang]", "*.a.b".
func parseCompound(s string) (*Selector, error) {
	sel := &Selector{}
	i := 0
	for i < len(s) {
		switch s[i] {
		case '*':
			sel.Universal = true
			i++
		case '.':
			name, n := scanIdent(s[i+1:])
			if n == 0 {
				return nil, errors.New("class selector without a name")
			}
			sel.Classes = append(sel.Classes, name)
			i += 1 + n
		case '#':
			name, n := scanIdent(s[i+1:])
			if n == 0 {
				return nil, errors.New("id selector without a name")
			}
			sel.ID = name
			i += 1 + n
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, errors.New("unterminated attribute selector")
			}
			key := s[i+1 : i+end]
			if strings.ContainsAny(key, "=^$|*~") {
				return nil, errUnsupportedMatch
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, errors.New("attribute selector without a key")
			}
			sel.Attrs = append(sel.Attrs, key)
			i += end + 1
		default:
			name, n := scanIdent(s[i:])
			if n == 0 || i != 0 {
				// A type selector may only start the compound.
				return nil, errors.New("unexpected character in selector")
			}
			sel.Element = strings.ToLower(name)
			i += n
		}
	}
	if !sel.IsCompound() {
		return nil, errEmptySelector
	}
	return sel, nil
}

// scanIdent reads a leading CSS identifier and returns it with its length.
func scanIdent(s string) (string, int) {
	n := 0
	for n < len(s) {
		c := s[n]
		if c == '-' || c == '_' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c >= 0x80 {
			n++
			continue
		}
		break
	}
	return s[:n], n
}
