package bytecode

import (
	"encoding/binary"
	"fmt"
)

// CodeBuffer is an append-only byte vector with backpatch support for
// forward branches, per the label machinery in the code generator design.
type CodeBuffer struct {
	bytes     []byte
	patches   map[int]int // patch-site offset (start of the 4-byte operand) -> label id
	labelPos  map[int]int // label id -> resolved absolute code offset, -1 if unresolved
	nextLabel int
}

// NewCodeBuffer creates an empty CodeBuffer.
func NewCodeBuffer() *CodeBuffer {
	return &CodeBuffer{
		patches:  make(map[int]int),
		labelPos: make(map[int]int),
	}
}

// Len returns the number of bytes emitted so far.
func (c *CodeBuffer) Len() int { return len(c.bytes) }

// Bytes returns the underlying code section. Valid only after Finalize.
func (c *CodeBuffer) Bytes() []byte { return c.bytes }

// EmitOp appends a bare opcode with no operand.
func (c *CodeBuffer) EmitOp(op Op) {
	c.bytes = append(c.bytes, byte(op))
}

// EmitByte appends an opcode with a 1-byte unsigned operand.
func (c *CodeBuffer) EmitByte(op Op, operand uint8) {
	c.bytes = append(c.bytes, byte(op), operand)
}

// EmitWide appends an opcode with a 2-byte little-endian unsigned operand.
func (c *CodeBuffer) EmitWide(op Op, operand uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], operand)
	c.bytes = append(c.bytes, byte(op), buf[0], buf[1])
}

// EmitCall appends CALL with a 2-byte symbol index and a 1-byte argc.
func (c *CodeBuffer) EmitCall(symbolIndex uint16, argc uint8) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], symbolIndex)
	c.bytes = append(c.bytes, byte(CALL), buf[0], buf[1], argc)
}

// NewLabel allocates a fresh, unresolved label.
func (c *CodeBuffer) NewLabel() int {
	id := c.nextLabel
	c.nextLabel++
	c.labelPos[id] = -1
	return id
}

// BindLabel records the current code offset as label's resolved target.
func (c *CodeBuffer) BindLabel(label int) {
	c.labelPos[label] = len(c.bytes)
}

// EmitJump appends a jump opcode with a 4-byte absolute target operand,
// recording a patch site if the label is not yet bound.
func (c *CodeBuffer) EmitJump(op Op, label int) {
	c.bytes = append(c.bytes, byte(op))
	site := len(c.bytes)
	c.bytes = append(c.bytes, 0, 0, 0, 0)
	if pos, ok := c.labelPos[label]; ok && pos >= 0 {
		binary.LittleEndian.PutUint32(c.bytes[site:site+4], uint32(int32(pos)))
		return
	}
	c.patches[site] = label
}

// Finalize resolves every pending patch site against its label's bound
// offset. Any label still unresolved is a CompileError-class failure.
func (c *CodeBuffer) Finalize() error {
	for site, label := range c.patches {
		pos, ok := c.labelPos[label]
		if !ok || pos < 0 {
			return fmt.Errorf("bytecode: unresolved label %d referenced at offset %d", label, site)
		}
		binary.LittleEndian.PutUint32(c.bytes[site:site+4], uint32(int32(pos)))
	}
	c.patches = make(map[int]int)
	return nil
}
