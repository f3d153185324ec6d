package css

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Store accumulates parsed rules across every Add call. Rules are never
// removed; each appended rule receives an origin index equal to the running
// count of all rules ever appended, which gives the cascade its total order.
type Store struct {
	log      *zap.Logger
	rules    []Rule
	warnings []string
	total    int
}

// NewStore creates an empty stylesheet store.
func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{log: log.Named("css-store")}
}

// Add parses cssText and appends all recognized rules in document order.
// Parsing is tolerant: per-rule problems (unsupported selector forms,
// unknown at-rules, mid-sheet syntax errors) are skipped and the rest of
// the stylesheet is kept; only a construct still open at end of input or a
// read failure returns a *ParseError, in which case the store is left
// unchanged.
func (s *Store) Add(cssText string) error {
	rules, warnings, err := s.parse([]byte(cssText))
	if err != nil {
		return err
	}

	for i := range rules {
		rules[i].Origin = s.total
		s.total++
	}
	s.rules = append(s.rules, rules...)
	s.warnings = append(s.warnings, warnings...)

	s.log.Debug("Stylesheet appended",
		zap.Int("rules", len(rules)),
		zap.Int("warnings", len(warnings)),
		zap.Int("total", s.total))
	return nil
}

// Rules returns the accumulated rules in origin order. The returned slice
// is shared; callers must not modify it.
func (s *Store) Rules() []Rule {
	return s.rules
}

// Len returns the number of rules ever appended.
func (s *Store) Len() int {
	return s.total
}

// Warnings returns the accumulated tolerant-parsing warnings.
func (s *Store) Warnings() []string {
	return s.warnings
}

// parse runs a single pass over the stylesheet text. It returns the parsed
// rules (origins unassigned) so that a failing call cannot leave a partial
// append behind.
func (s *Store) parse(data []byte) ([]Rule, []string, error) {
	var (
		rules    []Rule
		warnings []string
	)

	input := parse.NewInput(bytes.NewReader(data))
	parser := css.NewParser(input, false)

	for {
		gt, _, tokenData := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			err := parser.Err()
			if err == nil || errors.Is(err, io.EOF) {
				return rules, warnings, nil
			}
			if !parser.HasParseError() || errors.Is(input.Err(), io.EOF) {
				// Read failure or a construct still open at end of input,
				// nothing left to resync on.
				return nil, nil, &ParseError{Offset: input.Offset(), Msg: err.Error()}
			}
			// Recoverable syntax error: keep everything parsed so far and
			// resync at the next construct.
			warnings = append(warnings, "syntax error: "+err.Error())
			s.log.Debug("Recovering from syntax error", zap.Error(err))

		case css.BeginAtRuleGrammar:
			// Unsupported at-rules are tolerated no-ops.
			s.log.Debug("Skipping at-rule", zap.String("rule", string(tokenData)))
			s.skipAtRuleBlock(parser)

		case css.AtRuleGrammar:
			s.log.Debug("Skipping at-rule", zap.String("rule", string(tokenData)))

		case css.BeginRulesetGrammar:
			selectors := splitSelectors(tokenData, parser.Values())
			decls, declWarnings, err := s.parseDeclarations(parser, input)
			if err != nil {
				return nil, nil, err
			}
			warnings = append(warnings, declWarnings...)

			for _, selStr := range selectors {
				sel, err := parseSelectorChain(selStr)
				if err != nil {
					warnings = append(warnings, "unsupported selector '"+selStr+"': "+err.Error())
					s.log.Debug("Skipping selector", zap.String("selector", selStr), zap.Error(err))
					continue
				}
				declsCopy := make([]Declaration, len(decls))
				copy(declsCopy, decls)
				rules = append(rules, Rule{Selector: sel, Declarations: declsCopy})
			}
		}
	}
}

// splitSelectors extracts the comma-separated selector strings of a ruleset
// from its leading token data and values.
func splitSelectors(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}

	var selectors []string
	for s := range strings.SplitSeq(sb.String(), ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			selectors = append(selectors, s)
		}
	}
	return selectors
}

// parseDeclarations collects property declarations until the end of the
// current ruleset, preserving source order. Malformed declarations become
// warnings; the rest of the block is kept.
func (s *Store) parseDeclarations(parser *css.Parser, input *parse.Input) ([]Declaration, []string, error) {
	var (
		decls    []Declaration
		warnings []string
	)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.EndRulesetGrammar:
			return decls, warnings, nil

		case css.ErrorGrammar:
			err := parser.Err()
			if err == nil || errors.Is(err, io.EOF) {
				return decls, warnings, nil
			}
			if !parser.HasParseError() || errors.Is(input.Err(), io.EOF) {
				return nil, nil, &ParseError{Offset: input.Offset(), Msg: err.Error()}
			}
			warnings = append(warnings, "syntax error: "+err.Error())
			s.log.Debug("Recovering from syntax error", zap.Error(err))

		case css.DeclarationGrammar:
			prop := strings.ToLower(string(data))
			values := parser.Values()
			if len(values) > 0 {
				decls = append(decls, Declaration{Property: prop, Value: parsePropertyValue(values)})
			}

		case css.CustomPropertyGrammar:
			// CSS custom properties (--var) - skip
			continue
		}
	}
}

// parsePropertyValue converts CSS value tokens to a Value.
func parsePropertyValue(tokens []css.Token) Value {
	if len(tokens) == 0 {
		return Value{}
	}

	var rawParts []string
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			rawParts = append(rawParts, string(t.Data))
		} else if len(rawParts) > 0 {
			rawParts = append(rawParts, " ")
		}
	}
	raw := strings.TrimSpace(strings.Join(rawParts, ""))

	val := Value{Raw: raw}

	// Single token (possibly followed by trailing whitespace)
	if len(tokens) == 1 || (len(tokens) == 2 && tokens[1].TokenType == css.WhitespaceToken) {
		t := tokens[0]
		switch t.TokenType {
		case css.DimensionToken:
			val.Value, val.Unit = parseDimension(string(t.Data))
		case css.PercentageToken:
			val.Value, _ = strconv.ParseFloat(strings.TrimSuffix(string(t.Data), "%"), 64)
			val.Unit = "%"
		case css.NumberToken:
			val.Value, _ = strconv.ParseFloat(string(t.Data), 64)
		case css.IdentToken:
			val.Keyword = strings.ToLower(string(t.Data))
		case css.StringToken:
			val.Keyword = unquote(string(t.Data))
		case css.HashToken:
			// Color value
			val.Keyword = string(t.Data)
		}
		return val
	}

	// Functions (rgb(), url(), ...) and multi-value properties keep the raw text.
	val.Keyword = raw
	return val
}

// parseDimension extracts numeric value and unit from a dimension token.
func parseDimension(s string) (float64, string) {
	numEnd := 0
	for i, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == '-' || r == '+' {
			numEnd = i + 1
		} else {
			break
		}
	}

	if numEnd == 0 {
		return 0, ""
	}

	num, _ := strconv.ParseFloat(s[:numEnd], 64)
	unit := strings.ToLower(s[numEnd:])
	return num, unit
}

// skipAtRuleBlock skips tokens until the matching end of an @-rule block.
func (s *Store) skipAtRuleBlock(parser *css.Parser) {
	depth := 1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if !parser.HasParseError() {
				return
			}
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
