package engine

import (
	"stylo/dom"
	"stylo/style"
)

// Backend is the one operation set both execution modes satisfy. The
// Registry resolves a handle to a Backend without knowing whether calls
// execute directly or cross a process boundary; callers and the cascade
// logic are oblivious to the mode.
type Backend interface {
	AddStylesheet(cssText string) error
	CreateNode(id dom.NodeID, text string) (dom.NodeID, error)
	SetParent(parent, child dom.NodeID) error
	SetAttribute(id dom.NodeID, key, value string) error
	RootID() (dom.NodeID, error)
	Resolve(id dom.NodeID) (*style.Resolved, error)
	Run() error
	Stop() error
	Destroy() error
}

var (
	_ Backend = (*Engine)(nil)
	_ Backend = (*workerProxy)(nil)
)
