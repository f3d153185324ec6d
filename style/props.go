// Package style computes the effective style of document nodes: matched
// rules ranked by specificity and origin, plus inheritance down the
// ancestor chain.
package style

import (
	"stylo/css"
)

// propertyDef describes how the cascade treats one property when no
// matching rule sets it.
type propertyDef struct {
	inherited bool
	initial   css.Value
}

// properties is the supported property table. Inheritable properties copy
// the parent's resolved value when unset; the rest fall back to their
// initial value. Properties set by rules but absent from this table are
// carried through as specified and are not inherited.
var properties = map[string]propertyDef{
	// Inherited
	"color":          {true, css.KeywordValue("black")},
	"font-family":    {true, css.KeywordValue("sans-serif")},
	"font-size":      {true, css.Dimension(16, "px")},
	"font-style":     {true, css.KeywordValue("normal")},
	"font-weight":    {true, css.KeywordValue("normal")},
	"line-height":    {true, css.KeywordValue("normal")},
	"letter-spacing": {true, css.KeywordValue("normal")},
	"text-align":     {true, css.KeywordValue("start")},
	"text-indent":    {true, css.Dimension(0, "px")},
	"visibility":     {true, css.KeywordValue("visible")},

	// Not inherited
	"display":          {false, css.KeywordValue("flex")},
	"background-color": {false, css.KeywordValue("transparent")},
	"width":            {false, css.KeywordValue("auto")},
	"height":           {false, css.KeywordValue("auto")},
	"margin-top":       {false, css.Dimension(0, "px")},
	"margin-right":     {false, css.Dimension(0, "px")},
	"margin-bottom":    {false, css.Dimension(0, "px")},
	"margin-left":      {false, css.Dimension(0, "px")},
	"padding-top":      {false, css.Dimension(0, "px")},
	"padding-right":    {false, css.Dimension(0, "px")},
	"padding-bottom":   {false, css.Dimension(0, "px")},
	"padding-left":     {false, css.Dimension(0, "px")},
	"border-width":     {false, css.Dimension(0, "px")},
	"border-style":     {false, css.KeywordValue("none")},
	"border-color":     {false, css.KeywordValue("currentcolor")},
	"border-radius":    {false, css.Dimension(0, "px")},
	"box-sizing":       {false, css.KeywordValue("content-box")},
	"flex-direction":   {false, css.KeywordValue("row")},
	"flex-wrap":        {false, css.KeywordValue("nowrap")},
	"justify-content":  {false, css.KeywordValue("flex-start")},
	"align-items":      {false, css.KeywordValue("stretch")},
	"align-content":    {false, css.KeywordValue("stretch")},
	"align-self":       {false, css.KeywordValue("auto")},
	"flex-grow":        {false, css.Value{Raw: "0"}},
	"flex-shrink":      {false, css.Value{Raw: "1", Value: 1}},
	"flex-basis":       {false, css.KeywordValue("auto")},
	"row-gap":          {false, css.Dimension(0, "px")},
	"column-gap":       {false, css.Dimension(0, "px")},
	"order":            {false, css.Value{Raw: "0"}},
}

// Inherited reports whether the property inherits from the parent.
func Inherited(property string) bool {
	def, ok := properties[property]
	return ok && def.inherited
}

// Initial returns the property's initial value. Unknown properties have
// none.
func Initial(property string) (css.Value, bool) {
	def, ok := properties[property]
	if !ok {
		return css.Value{}, false
	}
	return def.initial, true
}
