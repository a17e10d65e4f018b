// Package container implements the little-endian binary format compiled
// programs are serialized to and loaded from: a fixed header, the constant
// pool, the symbol table, the code section and an optional debug section.
package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/vmerr"
)

// Magic identifies a pyvm container: "PYMV".
var Magic = [4]byte{0x50, 0x59, 0x4D, 0x56}

// CurrentVersion is the format version this package writes. The high byte
// is the major version (bumped on breaking layout changes); the low byte is
// the minor version (bumped on additive, flag-guarded changes).
const CurrentVersion uint16 = 0x0001

const (
	FlagDebugPresent   uint16 = 1 << 0
	FlagBuildIDPresent uint16 = 1 << 1

	knownFlags = FlagDebugPresent | FlagBuildIDPresent

	headerSize = 20
)

const (
	wireConstInt    byte = 1
	wireConstFloat  byte = 2
	wireConstString byte = 3
	wireConstBool   byte = 4

	wireSymVar  byte = 1
	wireSymFunc byte = 2
)

// Program is the in-memory form of a container: everything the VM and
// disassembler need, already decoded from the wire format.
type Program struct {
	Version   uint16
	Flags     uint16
	Constants []compiler.Constant
	Symbols   []compiler.Symbol
	Code      []byte
	Lines     []compiler.LineEntry // present iff Flags&FlagDebugPresent
	BuildID   uuid.UUID            // valid iff Flags&FlagBuildIDPresent
}

// FromResult builds a Program ready for serialization from a compiler
// result. withDebug controls whether the line table (and, if buildID is
// non-nil, the build-ID record) is included.
func FromResult(res *compiler.Result, withDebug bool, buildID *uuid.UUID) *Program {
	p := &Program{
		Version:   CurrentVersion,
		Constants: res.Constants.Entries(),
		Symbols:   res.Symbols.Entries(),
		Code:      res.Code,
	}
	if withDebug {
		p.Flags |= FlagDebugPresent
		p.Lines = append([]compiler.LineEntry(nil), res.Lines...)
		sort.Slice(p.Lines, func(i, j int) bool { return p.Lines[i].PC < p.Lines[j].PC })
		if buildID != nil {
			p.Flags |= FlagBuildIDPresent
			p.BuildID = *buildID
		}
	}
	return p
}

// Serialize encodes p into the wire format described by the container spec.
func Serialize(p *Program) ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(Magic[:])
	writeU16(&buf, p.Version)
	writeU16(&buf, p.Flags)
	writeU32(&buf, uint32(len(p.Constants)))
	writeU32(&buf, uint32(len(p.Symbols)))
	writeU32(&buf, uint32(len(p.Code)))

	for _, c := range p.Constants {
		if err := writeConstant(&buf, c); err != nil {
			return nil, err
		}
	}
	for _, s := range p.Symbols {
		if err := writeSymbol(&buf, s); err != nil {
			return nil, err
		}
	}
	buf.Write(p.Code)

	if p.Flags&FlagDebugPresent != 0 {
		writeU32(&buf, uint32(len(p.Lines)))
		for _, l := range p.Lines {
			writeU32(&buf, l.PC)
			writeU32(&buf, l.Line)
			writeU16(&buf, l.Column)
		}
		if p.Flags&FlagBuildIDPresent != 0 {
			idBytes, err := p.BuildID.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("container: marshal build id: %w", err)
			}
			buf.Write(idBytes)
		}
	}

	out := buf.Bytes()
	if len(out) != headerSize+headerBodyLen(p) {
		// Defensive only: a mismatch here means the writers above drifted
		// from the length fields written into the header.
		return nil, fmt.Errorf("container: internal length mismatch (wrote %d bytes)", len(out))
	}
	return out, nil
}

func headerBodyLen(p *Program) int {
	n := 0
	for _, c := range p.Constants {
		n += 1 + 4 + constantDataLen(c)
	}
	for _, s := range p.Symbols {
		n += 1 + 2 + len(s.Name) + 4
	}
	n += len(p.Code)
	if p.Flags&FlagDebugPresent != 0 {
		n += 4 + len(p.Lines)*(4+4+2)
		if p.Flags&FlagBuildIDPresent != 0 {
			n += 16
		}
	}
	return n
}

func constantDataLen(c compiler.Constant) int {
	switch c.Kind {
	case compiler.ConstInt:
		return 4
	case compiler.ConstFloat:
		return 8
	case compiler.ConstString:
		return len(c.Str) + 1
	case compiler.ConstBool:
		return 1
	default:
		return 0
	}
}

func writeConstant(buf *bytes.Buffer, c compiler.Constant) error {
	switch c.Kind {
	case compiler.ConstInt:
		buf.WriteByte(wireConstInt)
		writeU32(buf, 4)
		writeU32(buf, uint32(c.Int))
	case compiler.ConstFloat:
		buf.WriteByte(wireConstFloat)
		writeU32(buf, 8)
		writeU64(buf, math.Float64bits(c.Float))
	case compiler.ConstString:
		buf.WriteByte(wireConstString)
		writeU32(buf, uint32(len(c.Str)+1))
		buf.WriteString(c.Str)
		buf.WriteByte(0)
	case compiler.ConstBool:
		buf.WriteByte(wireConstBool)
		writeU32(buf, 1)
		if c.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	default:
		return fmt.Errorf("container: unknown constant kind %d", c.Kind)
	}
	return nil
}

func writeSymbol(buf *bytes.Buffer, s compiler.Symbol) error {
	var wt byte
	switch s.Kind {
	case compiler.SymVar:
		wt = wireSymVar
	case compiler.SymFunc:
		wt = wireSymFunc
	default:
		return fmt.Errorf("container: unknown symbol kind %d", s.Kind)
	}
	buf.WriteByte(wt)
	if len(s.Name) > 0xFFFF {
		return fmt.Errorf("container: symbol name %q too long", s.Name)
	}
	writeU16(buf, uint16(len(s.Name)))
	buf.WriteString(s.Name)
	writeU32(buf, s.Index)
	return nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// Load decodes and validates a serialized container, returning a LoadError
// for any structural or range violation.
func Load(data []byte) (*Program, error) {
	r := &reader{data: data}

	magic, err := r.take(4)
	if err != nil {
		return nil, loadErr("truncated header")
	}
	if !bytes.Equal(magic, Magic[:]) {
		return nil, loadErr("bad magic")
	}
	version, err := r.u16()
	if err != nil {
		return nil, loadErr("truncated header")
	}
	if byte(version>>8) != byte(CurrentVersion>>8) {
		return nil, loadErr(fmt.Sprintf("unsupported major version %d", version>>8))
	}
	flags, err := r.u16()
	if err != nil {
		return nil, loadErr("truncated header")
	}
	if flags&^knownFlags != 0 {
		return nil, loadErr("unsupported reserved flag bit set")
	}
	constCount, err := r.u32()
	if err != nil {
		return nil, loadErr("truncated header")
	}
	symCount, err := r.u32()
	if err != nil {
		return nil, loadErr("truncated header")
	}
	codeSize, err := r.u32()
	if err != nil {
		return nil, loadErr("truncated header")
	}

	p := &Program{Version: version, Flags: flags}

	for i := uint32(0); i < constCount; i++ {
		c, err := readConstant(r)
		if err != nil {
			return nil, err
		}
		p.Constants = append(p.Constants, c)
	}
	for i := uint32(0); i < symCount; i++ {
		s, err := readSymbol(r)
		if err != nil {
			return nil, err
		}
		p.Symbols = append(p.Symbols, s)
	}

	code, err := r.take(int(codeSize))
	if err != nil {
		return nil, loadErr("truncated code section")
	}
	p.Code = code

	if flags&FlagDebugPresent != 0 {
		lineCount, err := r.u32()
		if err != nil {
			return nil, loadErr("truncated debug section")
		}
		var last uint32
		for i := uint32(0); i < lineCount; i++ {
			pc, err := r.u32()
			if err != nil {
				return nil, loadErr("truncated debug section")
			}
			line, err := r.u32()
			if err != nil {
				return nil, loadErr("truncated debug section")
			}
			col, err := r.u16()
			if err != nil {
				return nil, loadErr("truncated debug section")
			}
			if i > 0 && pc < last {
				return nil, loadErr("debug section not sorted by pc")
			}
			last = pc
			p.Lines = append(p.Lines, compiler.LineEntry{PC: pc, Line: line, Column: col})
		}
		if flags&FlagBuildIDPresent != 0 {
			raw, err := r.take(16)
			if err != nil {
				return nil, loadErr("truncated build id")
			}
			id, err := uuid.FromBytes(raw)
			if err != nil {
				return nil, loadErr("malformed build id")
			}
			p.BuildID = id
		}
	}

	if err := validateJumpTargets(p); err != nil {
		return nil, err
	}

	return p, nil
}

func readConstant(r *reader) (compiler.Constant, error) {
	wt, err := r.byte()
	if err != nil {
		return compiler.Constant{}, loadErr("truncated constant")
	}
	size, err := r.u32()
	if err != nil {
		return compiler.Constant{}, loadErr("truncated constant")
	}
	data, err := r.take(int(size))
	if err != nil {
		return compiler.Constant{}, loadErr("truncated constant data")
	}
	switch wt {
	case wireConstInt:
		if len(data) != 4 {
			return compiler.Constant{}, loadErr("malformed int constant")
		}
		return compiler.Constant{Kind: compiler.ConstInt, Int: int32(binary.LittleEndian.Uint32(data))}, nil
	case wireConstFloat:
		if len(data) != 8 {
			return compiler.Constant{}, loadErr("malformed float constant")
		}
		return compiler.Constant{Kind: compiler.ConstFloat, Float: math.Float64frombits(binary.LittleEndian.Uint64(data))}, nil
	case wireConstString:
		if len(data) == 0 || data[len(data)-1] != 0 {
			return compiler.Constant{}, loadErr("malformed string constant")
		}
		return compiler.Constant{Kind: compiler.ConstString, Str: string(data[:len(data)-1])}, nil
	case wireConstBool:
		if len(data) != 1 {
			return compiler.Constant{}, loadErr("malformed bool constant")
		}
		return compiler.Constant{Kind: compiler.ConstBool, Bool: data[0] != 0}, nil
	default:
		return compiler.Constant{}, loadErr(fmt.Sprintf("unknown constant type %d", wt))
	}
}

func readSymbol(r *reader) (compiler.Symbol, error) {
	wt, err := r.byte()
	if err != nil {
		return compiler.Symbol{}, loadErr("truncated symbol")
	}
	nameLen, err := r.u16()
	if err != nil {
		return compiler.Symbol{}, loadErr("truncated symbol")
	}
	name, err := r.take(int(nameLen))
	if err != nil {
		return compiler.Symbol{}, loadErr("truncated symbol name")
	}
	value, err := r.u32()
	if err != nil {
		return compiler.Symbol{}, loadErr("truncated symbol")
	}
	var kind compiler.SymbolKind
	switch wt {
	case wireSymVar:
		kind = compiler.SymVar
	case wireSymFunc:
		kind = compiler.SymFunc
	default:
		return compiler.Symbol{}, loadErr(fmt.Sprintf("unknown symbol type %d", wt))
	}
	return compiler.Symbol{Kind: kind, Name: string(name), Index: value}, nil
}

func loadErr(msg string) error { return &vmerr.LoadError{Message: msg} }

type reader struct {
	data []byte
	pos  int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("short read")
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}
