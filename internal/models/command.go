// Package models defines the data structures shared by the rgo server and CLI.
// Command kinds double as the tags of the channel wire format.
package models

import "fmt"

// Kind names a Command variant.
type Kind string

const (
	KindAdd     Kind = "Add"
	KindRemove  Kind = "Remove"
	KindList    Kind = "List"
	KindPersist Kind = "Persist"
)

// Command is a control-plane request sent over the command channel.
// The set of variants is closed: Add, Remove, List and Persist.
type Command interface {
	Kind() Kind
	isCommand()
}

// Add maps Key to Value, overwriting any previous target.
type Add struct {
	Key   string
	Value string
}

// Remove deletes Key.
type Remove struct {
	Key string
}

// List requests a snapshot of every stored link.
type List struct{}

// Persist requests a snapshot write to the persistence file.
type Persist struct{}

func (Add) Kind() Kind     { return KindAdd }
func (Remove) Kind() Kind  { return KindRemove }
func (List) Kind() Kind    { return KindList }
func (Persist) Kind() Kind { return KindPersist }

func (Add) isCommand()     {}
func (Remove) isCommand()  {}
func (List) isCommand()    {}
func (Persist) isCommand() {}

func (c Add) String() string    { return fmt.Sprintf("Add{key=%q value=%q}", c.Key, c.Value) }
func (c Remove) String() string { return fmt.Sprintf("Remove{key=%q}", c.Key) }
func (List) String() string     { return "List" }
func (Persist) String() string  { return "Persist" }
