// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plandef

import (
	"fmt"

	"github.com/google/btree"
)

// VarID is a handle to a Variable within a SymbolTable. The zero value is not
// a valid handle.
type VarID int32

// ValueType is the declared type of the values held by a Variable.
type ValueType uint8

// ValueType values.
const (
	TypeDataset ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeVertex
	TypeEdge
	TypePath
	TypeList
	TypeMap
)

func (t ValueType) String() string {
	switch t {
	case TypeDataset:
		return "Dataset"
	case TypeBool:
		return "Bool"
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeString:
		return "String"
	case TypeVertex:
		return "Vertex"
	case TypeEdge:
		return "Edge"
	case TypePath:
		return "Path"
	case TypeList:
		return "List"
	case TypeMap:
		return "Map"
	}
	return fmt.Sprintf("ValueType(%d)", uint8(t))
}

// A NodeSet is an ordered set of node IDs. The zero value is an empty set
// ready to use.
type NodeSet struct {
	// Each item in the btree has type NodeID. Allocated lazily.
	tree *btree.BTree
}

// Less is needed to order the btree.
func (id NodeID) Less(other btree.Item) bool {
	return id < other.(NodeID)
}

func (s *NodeSet) add(id NodeID) {
	if s.tree == nil {
		s.tree = btree.New(8)
	}
	s.tree.ReplaceOrInsert(id)
}

func (s *NodeSet) remove(id NodeID) {
	if s.tree != nil {
		s.tree.Delete(id)
	}
}

// Contains returns true if id is in the set.
func (s *NodeSet) Contains(id NodeID) bool {
	return s.tree != nil && s.tree.Has(id)
}

// Len returns the number of IDs in the set.
func (s *NodeSet) Len() int {
	if s.tree == nil {
		return 0
	}
	return s.tree.Len()
}

// IDs returns the members of the set in ascending order.
func (s *NodeSet) IDs() []NodeID {
	res := make([]NodeID, 0, s.Len())
	if s.tree != nil {
		s.tree.Ascend(func(item btree.Item) bool {
			res = append(res, item.(NodeID))
			return true
		})
	}
	return res
}

// A Variable names the output of a plan node: a stream of rows (or a single
// value) that other nodes read.
type Variable struct {
	// The handle of this variable in its SymbolTable.
	ID VarID
	// Unique within the SymbolTable.
	Name string
	// The declared type of the values.
	Type ValueType
	// The names of the columns, for Dataset variables.
	ColNames []string
	// The nodes that currently read this variable as an input.
	readBy NodeSet
	// The nodes that currently write this variable as their output.
	writtenBy NodeSet
	// Maintained by the planning phase; the optimizer only reports it.
	useCount int
}

// ReadBy returns the IDs of the nodes that read this variable, in ascending
// order.
func (v *Variable) ReadBy() []NodeID {
	return v.readBy.IDs()
}

// WrittenBy returns the IDs of the nodes that write this variable, in
// ascending order.
func (v *Variable) WrittenBy() []NodeID {
	return v.writtenBy.IDs()
}

// IsReadBy returns true if the given node reads this variable.
func (v *Variable) IsReadBy(node NodeID) bool {
	return v.readBy.Contains(node)
}

// IsWrittenBy returns true if the given node writes this variable.
func (v *Variable) IsWrittenBy(node NodeID) bool {
	return v.writtenBy.Contains(node)
}

// UseCount returns the number of references recorded with IncUseCount.
func (v *Variable) UseCount() int {
	return v.useCount
}

func (v *Variable) String() string {
	return v.Name
}

// A SymbolTable is the registry of Variables for one query. Variables are
// never deleted; a node that goes away only clears its membership in the
// read and write sets. A SymbolTable is not safe for concurrent use.
type SymbolTable struct {
	// Indexed by VarID. vars[0] is always nil.
	vars   []*Variable
	byName map[string]VarID
	// Used to generate names in NewVar.
	seq int
}

// NewSymbolTable returns an empty SymbolTable.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		vars:   []*Variable{nil},
		byName: make(map[string]VarID),
	}
}

// Declare registers a new variable with the given name and type. It returns
// an error if the name is empty or already declared.
func (st *SymbolTable) Declare(name string, typ ValueType) (*Variable, error) {
	if name == "" {
		return nil, fmt.Errorf("variable name may not be empty")
	}
	if _, exists := st.byName[name]; exists {
		return nil, fmt.Errorf("variable %q already declared", name)
	}
	v := &Variable{
		ID:   VarID(len(st.vars)),
		Name: name,
		Type: typ,
	}
	st.vars = append(st.vars, v)
	st.byName[name] = v.ID
	return v, nil
}

// NewVar declares a Dataset variable with a generated name of the form
// "__<prefix>_<n>" that isn't used by any other variable.
func (st *SymbolTable) NewVar(prefix string) *Variable {
	for {
		name := fmt.Sprintf("__%s_%d", prefix, st.seq)
		st.seq++
		if _, exists := st.byName[name]; exists {
			continue
		}
		v, err := st.Declare(name, TypeDataset)
		if err != nil {
			panic(fmt.Sprintf("NewVar: %v", err))
		}
		return v
	}
}

// Get returns the variable with the given name, or nil if there's none.
func (st *SymbolTable) Get(name string) *Variable {
	id, ok := st.byName[name]
	if !ok {
		return nil
	}
	return st.vars[id]
}

// Lookup returns the variable with the given handle, or nil if the handle is
// not valid.
func (st *SymbolTable) Lookup(id VarID) *Variable {
	if id <= 0 || int(id) >= len(st.vars) {
		return nil
	}
	return st.vars[id]
}

// Vars returns every declared variable in declaration order.
func (st *SymbolTable) Vars() []*Variable {
	return append([]*Variable(nil), st.vars[1:]...)
}

// Len returns the number of declared variables.
func (st *SymbolTable) Len() int {
	return len(st.vars) - 1
}

func (st *SymbolTable) mustGet(name string) (*Variable, error) {
	v := st.Get(name)
	if v == nil {
		return nil, fmt.Errorf("unknown variable %q", name)
	}
	return v, nil
}

// ReadBy records that node reads the named variable. Recording the same
// reader twice has no further effect.
func (st *SymbolTable) ReadBy(name string, node NodeID) error {
	v, err := st.mustGet(name)
	if err != nil {
		return err
	}
	v.readBy.add(node)
	return nil
}

// WrittenBy records that node writes the named variable. Recording the same
// writer twice has no further effect.
func (st *SymbolTable) WrittenBy(name string, node NodeID) error {
	v, err := st.mustGet(name)
	if err != nil {
		return err
	}
	v.writtenBy.add(node)
	return nil
}

// DeleteReadBy removes node from the readers of the named variable, if
// present.
func (st *SymbolTable) DeleteReadBy(name string, node NodeID) error {
	v, err := st.mustGet(name)
	if err != nil {
		return err
	}
	v.readBy.remove(node)
	return nil
}

// DeleteWrittenBy removes node from the writers of the named variable, if
// present.
func (st *SymbolTable) DeleteWrittenBy(name string, node NodeID) error {
	v, err := st.mustGet(name)
	if err != nil {
		return err
	}
	v.writtenBy.remove(node)
	return nil
}

// Rename moves node's read and write memberships from the variable oldName
// to the variable newName. If either variable is unknown, it returns an error
// and neither variable is changed.
func (st *SymbolTable) Rename(oldName, newName string, node NodeID) error {
	from, err := st.mustGet(oldName)
	if err != nil {
		return err
	}
	to, err := st.mustGet(newName)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if from.readBy.Contains(node) {
		from.readBy.remove(node)
		to.readBy.add(node)
	}
	if from.writtenBy.Contains(node) {
		from.writtenBy.remove(node)
		to.writtenBy.add(node)
	}
	return nil
}

// IncUseCount increments the use count of the named variable.
func (st *SymbolTable) IncUseCount(name string) error {
	v, err := st.mustGet(name)
	if err != nil {
		return err
	}
	v.useCount++
	return nil
}
