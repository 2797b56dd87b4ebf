package bytecode

// Opcode is a single bytecode instruction's operation. Instructions are
// variable length: an Opcode byte followed by zero or more operand
// bytes, little-endian for multi-byte operands. See spec section 4.4 for
// the full ISA and runtime/vm.cpp's generateByteCode.cpp /
// disassembler.cpp in the original implementation for the operand shapes
// confirmed here.
type Opcode byte

const (
	// Stack
	OpLoadConst Opcode = iota // u16 const index
	OpLoadNil
	OpLoadTrue
	OpLoadFalse
	OpPop
	OpPopN // u8 count

	// Variables
	OpLoadLocal  // u16 slot
	OpStoreLocal // u16 slot
	OpLoadUpvalue
	OpStoreUpvalue
	OpCloseUpvalue
	OpDefGlobal   // u16 name-const
	OpLoadGlobal  // u16 name-const
	OpStoreGlobal // u16 name-const

	// Attributes
	OpLoadProperty  // u16 name-const
	OpStoreProperty // u16 name-const
	OpLoadSubscr
	OpStoreSubscr

	// Arithmetic & comparison
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpMod
	OpNegate
	OpNot
	OpInc
	OpDec

	// Control
	OpJumpFwd        // u16 offset
	OpJumpBwd        // u16 offset
	OpJumpTrue       // u16 offset
	OpJumpTrueNoPop  // u16 offset
	OpJumpFalse      // u16 offset
	OpJumpFalseNoPop // u16 offset

	// Calls
	OpCall          // u8 argc
	OpInvokeMethod  // u16 name-const, u8 argc
	OpLoadSuperMethod // u16 name-const

	// Closures & classes
	OpClosure // const index of Function, then per-upvalue (u8 isLocal, u16 index)
	OpMakeClass
	OpInherit
	OpMakeMethod // u16 name-const
	OpMakeInitMethod

	// Collections
	OpMakeList // u16 count
	OpMakeMap  // u16 pair-count

	// Import
	OpImport // u16 input-name-const, u16 module-name-const

	// Iteration
	OpGetIter
	OpIterHasNext
	OpIterGetNext

	// Exceptions
	OpBeginTry // u16 handler offset
	OpEndTry
	OpThrow

	// Terminators
	OpReturn
	OpPrint
	OpNop
)

var opNames = [...]string{
	OpLoadConst:       "LOAD_CONST",
	OpLoadNil:         "LOAD_NIL",
	OpLoadTrue:        "LOAD_TRUE",
	OpLoadFalse:       "LOAD_FALSE",
	OpPop:             "POP",
	OpPopN:            "POP_N",
	OpLoadLocal:       "LOAD_LOCAL",
	OpStoreLocal:      "STORE_LOCAL",
	OpLoadUpvalue:     "LOAD_UPVALUE",
	OpStoreUpvalue:    "STORE_UPVALUE",
	OpCloseUpvalue:    "CLOSE_UPVALUE",
	OpDefGlobal:       "DEF_GLOBAL",
	OpLoadGlobal:      "LOAD_GLOBAL",
	OpStoreGlobal:     "STORE_GLOBAL",
	OpLoadProperty:    "LOAD_PROPERTY",
	OpStoreProperty:   "STORE_PROPERTY",
	OpLoadSubscr:      "LOAD_SUBSCR",
	OpStoreSubscr:     "STORE_SUBSCR",
	OpEqual:           "EQUAL",
	OpNotEqual:        "NOT_EQUAL",
	OpGreater:         "GREATER",
	OpGreaterEqual:    "GREATER_EQUAL",
	OpLess:            "LESS",
	OpLessEqual:       "LESS_EQUAL",
	OpAdd:             "ADD",
	OpSubtract:        "SUBTRACT",
	OpMultiply:        "MULTIPLY",
	OpDivide:          "DIVIDE",
	OpMod:             "MOD",
	OpNegate:          "NEGATE",
	OpNot:             "NOT",
	OpInc:             "INC",
	OpDec:             "DEC",
	OpJumpFwd:         "JUMP_FWD",
	OpJumpBwd:         "JUMP_BWD",
	OpJumpTrue:        "JUMP_TRUE",
	OpJumpTrueNoPop:   "JUMP_TRUE_NOPOP",
	OpJumpFalse:       "JUMP_FALSE",
	OpJumpFalseNoPop:  "JUMP_FALSE_NOPOP",
	OpCall:            "CALL",
	OpInvokeMethod:    "INVOKE_METHOD",
	OpLoadSuperMethod: "LOAD_SUPER_METHOD",
	OpClosure:         "CLOSURE",
	OpMakeClass:       "MAKE_CLASS",
	OpInherit:         "INHERIT",
	OpMakeMethod:      "MAKE_METHOD",
	OpMakeInitMethod:  "MAKE_INIT_METHOD",
	OpMakeList:        "MAKE_LIST",
	OpMakeMap:         "MAKE_MAP",
	OpImport:          "IMPORT",
	OpGetIter:         "GET_ITER",
	OpIterHasNext:     "ITER_HAS_NEXT",
	OpIterGetNext:     "ITER_GET_NEXT",
	OpBeginTry:        "BEGIN_TRY",
	OpEndTry:          "END_TRY",
	OpThrow:           "THROW",
	OpReturn:          "RETURN",
	OpPrint:           "PRINT",
	OpNop:             "NOP",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "UNKNOWN"
}
