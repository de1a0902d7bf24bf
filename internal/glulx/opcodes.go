package glulx

// Opcode is a decoded Glulx instruction number (spec.md §4.5's
// variable-length opcode space, 0..0x3FFFFFFF).
type Opcode uint32

const (
	OpNop Opcode = 0x00

	OpAdd    Opcode = 0x10
	OpSub    Opcode = 0x11
	OpMul    Opcode = 0x12
	OpDiv    Opcode = 0x13
	OpMod    Opcode = 0x14
	OpNeg    Opcode = 0x15
	OpBitAnd Opcode = 0x18
	OpBitOr  Opcode = 0x19
	OpBitXor Opcode = 0x1A
	OpBitNot Opcode = 0x1B
	OpShiftL Opcode = 0x1C
	OpSShiftR Opcode = 0x1D
	OpUShiftR Opcode = 0x1E

	OpJump Opcode = 0x20
	OpJZ   Opcode = 0x22
	OpJNZ  Opcode = 0x23
	OpJEq  Opcode = 0x24
	OpJNe  Opcode = 0x25
	OpJLt  Opcode = 0x26
	OpJGe  Opcode = 0x27
	OpJGt  Opcode = 0x28
	OpJLe  Opcode = 0x29
	OpJLtU Opcode = 0x2A
	OpJGeU Opcode = 0x2B
	OpJGtU Opcode = 0x2C
	OpJLeU Opcode = 0x2D
	OpJumpAbs Opcode = 0x104

	OpCall     Opcode = 0x30
	OpReturn   Opcode = 0x31
	OpCatch    Opcode = 0x32
	OpThrow    Opcode = 0x33
	OpTailCall Opcode = 0x34

	OpCopy  Opcode = 0x40
	OpCopyS Opcode = 0x41
	OpCopyB Opcode = 0x42
	OpSexS  Opcode = 0x44
	OpSexB  Opcode = 0x45

	OpALoad      Opcode = 0x48
	OpALoadS     Opcode = 0x49
	OpALoadB     Opcode = 0x4A
	OpALoadBit   Opcode = 0x4B
	OpAStore     Opcode = 0x4C
	OpAStoreS    Opcode = 0x4D
	OpAStoreB    Opcode = 0x4E
	OpAStoreBit  Opcode = 0x4F

	OpStkCount Opcode = 0x50
	OpStkPeek  Opcode = 0x51
	OpStkSwap  Opcode = 0x52
	OpStkRoll  Opcode = 0x53
	OpStkCopy  Opcode = 0x54

	OpStreamChar     Opcode = 0x60
	OpStreamNum      Opcode = 0x61
	OpStreamStr      Opcode = 0x62
	OpStreamUniChar  Opcode = 0x63

	OpGestalt     Opcode = 0x70
	OpDebugTrap   Opcode = 0x71
	OpGetMemSize  Opcode = 0x72
	OpSetMemSize  Opcode = 0x73

	OpRandom    Opcode = 0x110
	OpSetRandom Opcode = 0x111

	OpQuit        Opcode = 0x120
	OpVerify      Opcode = 0x121
	OpRestart     Opcode = 0x122
	OpSave        Opcode = 0x123
	OpRestore     Opcode = 0x124
	OpSaveUndo    Opcode = 0x125
	OpRestoreUndo Opcode = 0x126
	OpProtect     Opcode = 0x127

	OpGlk           Opcode = 0x130
	OpGetStringTbl  Opcode = 0x138
	OpSetStringTbl  Opcode = 0x139
	OpGetIOSys      Opcode = 0x148
	OpSetIOSys      Opcode = 0x149

	OpLinearSearch Opcode = 0x150
	OpBinarySearch Opcode = 0x151
	OpLinkedSearch Opcode = 0x152

	OpCallF    Opcode = 0x160
	OpCallFI   Opcode = 0x161
	OpCallFII  Opcode = 0x162
	OpCallFIII Opcode = 0x163

	OpMZero  Opcode = 0x170
	OpMCopy  Opcode = 0x171
	OpMAlloc Opcode = 0x178
	OpMFree  Opcode = 0x179

	OpAccelFunc  Opcode = 0x180
	OpAccelParam Opcode = 0x181

	OpNumToF  Opcode = 0x190
	OpFToNumZ Opcode = 0x191
	OpFToNumN Opcode = 0x192
	OpCeil    Opcode = 0x198
	OpFloor   Opcode = 0x199
	OpFAdd    Opcode = 0x1A0
	OpFSub    Opcode = 0x1A1
	OpFMul    Opcode = 0x1A2
	OpFDiv    Opcode = 0x1A3
	OpFMod    Opcode = 0x1A4
	OpSqrt    Opcode = 0x1A8
	OpExp     Opcode = 0x1A9
	OpLog     Opcode = 0x1AA
	OpPow     Opcode = 0x1AB
	OpSin     Opcode = 0x1B0
	OpCos     Opcode = 0x1B1
	OpTan     Opcode = 0x1B2
	OpASin    Opcode = 0x1B3
	OpACos    Opcode = 0x1B4
	OpATan    Opcode = 0x1B5
	OpATan2   Opcode = 0x1B6
	OpJFEq    Opcode = 0x1C0
	OpJFNe    Opcode = 0x1C1
	OpJFLt    Opcode = 0x1C2
	OpJFLe    Opcode = 0x1C3
	OpJFGt    Opcode = 0x1C4
	OpJFGe    Opcode = 0x1C5
	OpJIsNaN  Opcode = 0x1C6
	OpJIsInf  Opcode = 0x1C7

	OpNumToD Opcode = 0x1D0
	OpDToNumZ Opcode = 0x1D1
	OpDToNumN Opcode = 0x1D2
	OpDCeil   Opcode = 0x1D8
	OpDFloor  Opcode = 0x1D9
	OpDAdd    Opcode = 0x1E0
	OpDSub    Opcode = 0x1E1
	OpDMul    Opcode = 0x1E2
	OpDDiv    Opcode = 0x1E3
	OpDMod    Opcode = 0x1E4
	OpDSqrt   Opcode = 0x1E8
	OpDExp    Opcode = 0x1E9
	OpDLog    Opcode = 0x1EA
	OpDPow    Opcode = 0x1EB
	OpDSin    Opcode = 0x1F0
	OpDCos    Opcode = 0x1F1
	OpDTan    Opcode = 0x1F2
	OpDASin   Opcode = 0x1F3
	OpDACos   Opcode = 0x1F4
	OpDATan   Opcode = 0x1F5
	OpDATan2  Opcode = 0x1F6
	OpJDEq    Opcode = 0x200
	OpJDNe    Opcode = 0x201
	OpJDLt    Opcode = 0x202
	OpJDLe    Opcode = 0x203
	OpJDGt    Opcode = 0x204
	OpJDGe    Opcode = 0x205
	OpJDIsNaN Opcode = 0x206
	OpJDIsInf Opcode = 0x207
)

// opInfo gives the operand shape for an opcode: how many load operands
// and how many store ("destination") operands it takes. Branch
// operands (spec.md §4.5's branch convention) are modeled as load
// operands whose resolved value is a branch offset, not a plain value;
// the execute loop special-cases them by opcode.
type opInfo struct {
	name    string
	loads   int
	stores  int
	isBranch bool
}

var opcodeTable = map[Opcode]opInfo{
	OpNop: {"nop", 0, 0, false},

	OpAdd: {"add", 2, 1, false}, OpSub: {"sub", 2, 1, false}, OpMul: {"mul", 2, 1, false},
	OpDiv: {"div", 2, 1, false}, OpMod: {"mod", 2, 1, false}, OpNeg: {"neg", 1, 1, false},
	OpBitAnd: {"bitand", 2, 1, false}, OpBitOr: {"bitor", 2, 1, false}, OpBitXor: {"bitxor", 2, 1, false},
	OpBitNot: {"bitnot", 1, 1, false}, OpShiftL: {"shiftl", 2, 1, false},
	OpSShiftR: {"sshiftr", 2, 1, false}, OpUShiftR: {"ushiftr", 2, 1, false},

	OpJump: {"jump", 1, 0, true},
	OpJZ: {"jz", 2, 0, true}, OpJNZ: {"jnz", 2, 0, true},
	OpJEq: {"jeq", 3, 0, true}, OpJNe: {"jne", 3, 0, true},
	OpJLt: {"jlt", 3, 0, true}, OpJGe: {"jge", 3, 0, true},
	OpJGt: {"jgt", 3, 0, true}, OpJLe: {"jle", 3, 0, true},
	OpJLtU: {"jltu", 3, 0, true}, OpJGeU: {"jgeu", 3, 0, true},
	OpJGtU: {"jgtu", 3, 0, true}, OpJLeU: {"jleu", 3, 0, true},
	OpJumpAbs: {"jumpabs", 1, 0, false},

	OpCall: {"call", 2, 1, false}, OpReturn: {"return", 1, 0, false},
	OpCatch: {"catch", 1, 1, true}, OpThrow: {"throw", 2, 0, false},
	OpTailCall: {"tailcall", 2, 0, false},

	OpCopy: {"copy", 1, 1, false}, OpCopyS: {"copys", 1, 1, false}, OpCopyB: {"copyb", 1, 1, false},
	OpSexS: {"sexs", 1, 1, false}, OpSexB: {"sexb", 1, 1, false},

	OpALoad: {"aload", 2, 1, false}, OpALoadS: {"aloads", 2, 1, false},
	OpALoadB: {"aloadb", 2, 1, false}, OpALoadBit: {"aloadbit", 2, 1, false},
	OpAStore: {"astore", 3, 0, false}, OpAStoreS: {"astores", 3, 0, false},
	OpAStoreB: {"astoreb", 3, 0, false}, OpAStoreBit: {"astorebit", 3, 0, false},

	OpStkCount: {"stkcount", 0, 1, false}, OpStkPeek: {"stkpeek", 1, 1, false},
	OpStkSwap: {"stkswap", 0, 0, false}, OpStkRoll: {"stkroll", 2, 0, false},
	OpStkCopy: {"stkcopy", 1, 0, false},

	OpStreamChar: {"streamchar", 1, 0, false}, OpStreamNum: {"streamnum", 1, 0, false},
	OpStreamStr: {"streamstr", 1, 0, false}, OpStreamUniChar: {"streamunichar", 1, 0, false},

	OpGestalt: {"gestalt", 2, 1, false}, OpDebugTrap: {"debugtrap", 1, 0, false},
	OpGetMemSize: {"getmemsize", 0, 1, false}, OpSetMemSize: {"setmemsize", 1, 1, false},

	OpRandom: {"random", 1, 1, false}, OpSetRandom: {"setrandom", 1, 0, false},

	OpQuit: {"quit", 0, 0, false}, OpVerify: {"verify", 0, 1, false},
	OpRestart: {"restart", 0, 0, false},
	OpSave: {"save", 1, 1, false}, OpRestore: {"restore", 1, 1, false},
	OpSaveUndo: {"saveundo", 0, 1, false}, OpRestoreUndo: {"restoreundo", 0, 1, false},
	OpProtect: {"protect", 2, 0, false},

	OpGlk: {"glk", 2, 1, false},
	OpGetStringTbl: {"getstringtbl", 0, 1, false}, OpSetStringTbl: {"setstringtbl", 1, 0, false},
	OpGetIOSys: {"getiosys", 0, 2, false}, OpSetIOSys: {"setiosys", 2, 0, false},

	OpLinearSearch: {"linearsearch", 7, 1, false},
	OpBinarySearch: {"binarysearch", 7, 1, false},
	OpLinkedSearch: {"linkedsearch", 6, 1, false},

	OpCallF: {"callf", 1, 1, false}, OpCallFI: {"callfi", 2, 1, false},
	OpCallFII: {"callfii", 3, 1, false}, OpCallFIII: {"callfiii", 4, 1, false},

	OpMZero: {"mzero", 2, 0, false}, OpMCopy: {"mcopy", 3, 0, false},
	OpMAlloc: {"malloc", 1, 1, false}, OpMFree: {"mfree", 1, 0, false},

	OpAccelFunc: {"accelfunc", 2, 0, false}, OpAccelParam: {"accelparam", 2, 0, false},

	OpNumToF: {"numtof", 1, 1, false}, OpFToNumZ: {"ftonumz", 1, 1, false}, OpFToNumN: {"ftonumn", 1, 1, false},
	OpCeil: {"ceil", 1, 1, false}, OpFloor: {"floor", 1, 1, false},
	OpFAdd: {"fadd", 2, 1, false}, OpFSub: {"fsub", 2, 1, false}, OpFMul: {"fmul", 2, 1, false},
	OpFDiv: {"fdiv", 2, 1, false}, OpFMod: {"fmod", 2, 2, false},
	OpSqrt: {"sqrt", 1, 1, false}, OpExp: {"exp", 1, 1, false}, OpLog: {"log", 1, 1, false}, OpPow: {"pow", 2, 1, false},
	OpSin: {"sin", 1, 1, false}, OpCos: {"cos", 1, 1, false}, OpTan: {"tan", 1, 1, false},
	OpASin: {"asin", 1, 1, false}, OpACos: {"acos", 1, 1, false}, OpATan: {"atan", 1, 1, false}, OpATan2: {"atan2", 2, 1, false},
	OpJFEq: {"jfeq", 4, 0, true}, OpJFNe: {"jfne", 4, 0, true},
	OpJFLt: {"jflt", 3, 0, true}, OpJFLe: {"jfle", 3, 0, true},
	OpJFGt: {"jfgt", 3, 0, true}, OpJFGe: {"jfge", 3, 0, true},
	OpJIsNaN: {"jisnan", 2, 0, true}, OpJIsInf: {"jisinf", 2, 0, true},

	OpNumToD: {"numtod", 1, 2, false}, OpDToNumZ: {"dtonumz", 2, 1, false}, OpDToNumN: {"dtonumn", 2, 1, false},
	OpDCeil: {"dceil", 2, 2, false}, OpDFloor: {"dfloor", 2, 2, false},
	OpDAdd: {"dadd", 4, 2, false}, OpDSub: {"dsub", 4, 2, false}, OpDMul: {"dmul", 4, 2, false},
	OpDDiv: {"ddiv", 4, 2, false}, OpDMod: {"dmod", 4, 4, false},
	OpDSqrt: {"dsqrt", 2, 2, false}, OpDExp: {"dexp", 2, 2, false}, OpDLog: {"dlog", 2, 2, false}, OpDPow: {"dpow", 4, 2, false},
	OpDSin: {"dsin", 2, 2, false}, OpDCos: {"dcos", 2, 2, false}, OpDTan: {"dtan", 2, 2, false},
	OpDASin: {"dasin", 2, 2, false}, OpDACos: {"dacos", 2, 2, false}, OpDATan: {"datan", 2, 2, false}, OpDATan2: {"datan2", 4, 2, false},
	OpJDEq: {"jdeq", 6, 0, true}, OpJDNe: {"jdne", 6, 0, true},
	OpJDLt: {"jdlt", 5, 0, true}, OpJDLe: {"jdle", 5, 0, true},
	OpJDGt: {"jdgt", 5, 0, true}, OpJDGe: {"jdge", 5, 0, true},
	OpJDIsNaN: {"jdisnan", 3, 0, true}, OpJDIsInf: {"jdisinf", 3, 0, true},
}

func (o Opcode) String() string {
	if info, ok := opcodeTable[o]; ok {
		return info.name
	}
	return "?unknown?"
}
