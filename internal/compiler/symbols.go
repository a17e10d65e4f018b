package compiler

// SymbolKind distinguishes variable slots from function entries (builtins,
// and user-defined functions as a forward-compatible extension the surface
// grammar does not yet expose).
type SymbolKind byte

const (
	SymVar SymbolKind = iota
	SymFunc
)

// Symbol is one entry of the symbol table: a name bound to a storage slot
// (for SymVar, an index into the VM's variable store) or a value (for
// SymFunc, a builtin tag; a user-defined function's code offset is a
// forward-compatible extension this compiler never emits).
type Symbol struct {
	Kind  SymbolKind
	Name  string
	Index uint32
}

// SymbolTable assigns stable slot indices to variable names in first-seen
// order, mirroring how a single-pass module-level compiler builds its
// symbol table: every name ever assigned anywhere in the program gets a
// slot, regardless of which branch the assignment lexically sits in.
//
// Builtin FUNC entries (print, input) live in the entry list from
// construction but outside byName: they are never Declare'd or Lookup'd as
// variables (the front end's print()/input() calls are resolved by name in
// the compiler's call-compiling switch, not through the symbol table), but
// they still need a stable index in Entries() so a serialized container's
// CALL instructions have something to point their symbol-index operand at.
type SymbolTable struct {
	byName  map[string]int
	entries []Symbol
	varN    uint32
}

// Builtin tags a FUNC symbol's value names, per the data model: for FUNC,
// value is a builtin tag (print = 0, input = 1) or a user-function code
// offset (unused; this grammar has no user-defined functions).
const (
	BuiltinPrint uint32 = 0
	BuiltinInput uint32 = 1
)

// NewSymbolTable creates a table pre-seeded with the print/input builtins.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName: make(map[string]int),
		entries: []Symbol{
			{Kind: SymFunc, Name: "print", Index: BuiltinPrint},
			{Kind: SymFunc, Name: "input", Index: BuiltinInput},
		},
	}
}

// Declare returns the slot index for name, allocating a fresh one on first
// sight. Re-declaring an already-known name is a no-op that returns its
// existing slot.
func (t *SymbolTable) Declare(name string) uint32 {
	if idx, ok := t.byName[name]; ok {
		return t.entries[idx].Index
	}
	slot := t.varN
	t.varN++
	t.byName[name] = len(t.entries)
	t.entries = append(t.entries, Symbol{Kind: SymVar, Name: name, Index: slot})
	return slot
}

// Lookup returns the slot index bound to name, if any.
func (t *SymbolTable) Lookup(name string) (uint32, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return 0, false
	}
	return t.entries[idx].Index, true
}

// Entries returns every symbol in declaration order.
func (t *SymbolTable) Entries() []Symbol { return t.entries }

// VarCount reports how many distinct variables were declared.
func (t *SymbolTable) VarCount() uint32 { return t.varN }
