package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders every instruction in c as a human-readable table,
// one line per instruction: byte offset, source line (or "|" when it
// repeats the previous instruction's line), mnemonic, and operand. This
// is the --trace/disassemble support named in spec section 6, grounded
// on the original implementation's chunk/disassembler.cpp and generalized
// from one fixed opcode set to this ISA.
func Disassemble(c *Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	offset := 0
	lastLine := -1
	for offset < len(c.Code) {
		offset = disassembleInstr(&b, c, offset, &lastLine)
	}
	return b.String()
}

func disassembleInstr(b *strings.Builder, c *Chunk, offset int, lastLine *int) int {
	fmt.Fprintf(b, "%04d ", offset)
	line := c.GetLine(offset)
	if line == *lastLine {
		fmt.Fprint(b, "   | ")
	} else {
		fmt.Fprintf(b, "%4d ", line)
		*lastLine = line
	}

	op := Opcode(c.Code[offset])
	switch op {
	case OpLoadConst, OpDefGlobal, OpLoadGlobal, OpStoreGlobal,
		OpLoadProperty, OpStoreProperty, OpMakeMethod, OpLoadSuperMethod, OpMakeClass:
		idx := c.ReadU16(offset + 1)
		fmt.Fprintf(b, "%-18s %4d", op, idx)
		if int(idx) < len(c.Constants) {
			fmt.Fprintf(b, " ; %s", describeConstant(c.Constants[idx]))
		}
		fmt.Fprintln(b)
		return offset + 3
	case OpLoadLocal, OpStoreLocal, OpLoadUpvalue, OpStoreUpvalue:
		idx := c.ReadU16(offset + 1)
		fmt.Fprintf(b, "%-18s %4d\n", op, idx)
		return offset + 3
	case OpJumpFwd, OpJumpBwd, OpJumpTrue, OpJumpTrueNoPop, OpJumpFalse, OpJumpFalseNoPop, OpBeginTry:
		jump := c.ReadU16(offset + 1)
		fmt.Fprintf(b, "%-18s %4d\n", op, jump)
		return offset + 3
	case OpCall:
		argc := c.Code[offset+1]
		fmt.Fprintf(b, "%-18s %4d\n", op, argc)
		return offset + 2
	case OpInvokeMethod:
		idx := c.ReadU16(offset + 1)
		argc := c.Code[offset+3]
		fmt.Fprintf(b, "%-18s %4d (%d args)\n", op, idx, argc)
		return offset + 4
	case OpPopN:
		n := c.Code[offset+1]
		fmt.Fprintf(b, "%-18s %4d\n", op, n)
		return offset + 2
	case OpMakeList, OpMakeMap:
		n := c.ReadU16(offset + 1)
		fmt.Fprintf(b, "%-18s %4d\n", op, n)
		return offset + 3
	case OpImport:
		input := c.ReadU16(offset + 1)
		mod := c.ReadU16(offset + 3)
		fmt.Fprintf(b, "%-18s %4d %4d\n", op, input, mod)
		return offset + 5
	case OpClosure:
		idx := c.ReadU16(offset + 1)
		fmt.Fprintf(b, "%-18s %4d\n", op, idx)
		next := offset + 3
		if int(idx) < len(c.Constants) {
			if fn, ok := c.Constants[idx].AsObj().(interface{ UpvalueCount() int }); ok {
				for i := 0; i < fn.UpvalueCount(); i++ {
					isLocal := c.Code[next]
					uvIdx := c.ReadU16(next + 1)
					kind := "upvalue"
					if isLocal != 0 {
						kind = "local"
					}
					fmt.Fprintf(b, "%04d      |                     %s %d\n", next, kind, uvIdx)
					next += 3
				}
			}
		}
		return next
	default:
		fmt.Fprintf(b, "%s\n", op)
		return offset + 1
	}
}

func describeConstant(v Value) string {
	if v.IsObjKind(KindString) {
		if s, ok := v.AsObj().(interface{ GoString() string }); ok {
			return s.GoString()
		}
	}
	if v.IsNumber() {
		return fmt.Sprintf("%g", v.AsNumber())
	}
	return "<const>"
}

// Binary bytecode encoding. A precompiled chunk is written as a small
// self-describing container: a magic number, a format version, then the
// constant pool and code stream. This is a generalization of the
// teacher/pack's precompiled-bytecode file convention (a length-prefixed
// section per chunk field) to this opcode set and value representation.
const (
	magicNumber   uint32 = 0x41524942 // "ARIB"
	formatVersion uint16 = 1
)

// EncodeChunk serializes c's code, line table and constant pool (numbers
// and strings only — function/closure constants are not serializable,
// since a precompiled unit is always a single flat chunk with no nested
// closures materialized yet).
func EncodeChunk(c *Chunk) ([]byte, error) {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, magicNumber)
	buf = binary.LittleEndian.AppendUint16(buf, formatVersion)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.Code)))
	buf = append(buf, c.Code...)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.Lines)))
	for _, run := range c.Lines {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(run.line))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(run.count))
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.Constants)))
	for _, v := range c.Constants {
		switch {
		case v.IsNil():
			buf = append(buf, 0)
		case v.IsBool():
			buf = append(buf, 1, boolByte(v.AsBool()))
		case v.IsNumber():
			bits := uint64frombits(v.AsNumber())
			buf = append(buf, 2)
			buf = binary.LittleEndian.AppendUint64(buf, bits)
		case v.IsObjKind(KindString):
			s, ok := v.AsObj().(interface{ GoString() string })
			if !ok {
				return nil, fmt.Errorf("bytecode: non-serializable string constant")
			}
			text := s.GoString()
			buf = append(buf, 3)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(text)))
			buf = append(buf, text...)
		default:
			return nil, fmt.Errorf("bytecode: non-serializable constant of kind %v", v.AsObj().ObjKind())
		}
	}
	return buf, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func uint64frombits(f float64) uint64 {
	return Number(f).num
}

// DecodeChunkHeader validates the magic/version prologue and returns the
// remaining payload, for a caller (pkg/vm) that owns string interning
// and therefore must construct String objects itself while decoding
// constants.
func DecodeChunkHeader(data []byte) ([]byte, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("bytecode: truncated header")
	}
	magic := binary.LittleEndian.Uint32(data)
	if magic != magicNumber {
		return nil, fmt.Errorf("bytecode: not an aria bytecode file")
	}
	version := binary.LittleEndian.Uint16(data[4:])
	if version != formatVersion {
		return nil, fmt.Errorf("bytecode: unsupported format version %d", version)
	}
	return data[6:], nil
}
