// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"encoding/binary"
	"fmt"
)

// emitResult is everything produced by driving one method's
// InstructionList through register allocation, offset resolution, and
// flow analysis, ready to become a CodeAttribute.
type emitResult struct {
	code         []byte
	maxStack     uint16
	maxLocals    uint16
	handlers     []CodeExceptionEntry
	stackMap     *StackMapTableAttribute
	inconsistent bool // a control-flow join disagreed on stack depth; see AnoInconsistentStackDepth
}

// emit runs the full pipeline described in spec.md §4.3 over l, in
// program order: liveness and register allocation, iterative branch-
// offset resolution to a fixed point, byte emission, and (for
// targetMajor >= 50, spec.md §6) stack-map frame computation. locals
// must already carry the method's pinned parameters (declareParams).
func emit(l *InstructionList, pool *ConstantPool, locals []*LocalVariable, targetMajor int) (*emitResult, error) {
	computeLiveness(l, locals)
	maxLocals := allocateRegisters(locals)

	if err := resolveOffsets(l); err != nil {
		return nil, err
	}

	code, err := emitBytes(l, pool)
	if err != nil {
		return nil, err
	}

	assignHandlers(l)

	entry := frame{locals: paramFrameLocals(locals, maxLocals)}
	maxStack, inconsistent := analyzeFlow(l, entry)

	handlers := make([]CodeExceptionEntry, 0, len(l.handlers))
	for _, h := range l.handlers {
		if !h.Start.Bound() || !h.End.Bound() || !h.Catch.Bound() {
			return nil, ErrUnresolvedLabel
		}
		var catchIdx uint16
		if h.CatchType != nil {
			idx, err := pool.AddClass(h.CatchType)
			if err != nil {
				return nil, err
			}
			catchIdx = idx
		}
		handlers = append(handlers, CodeExceptionEntry{
			StartPC: uint16(h.Start.node.location), EndPC: uint16(h.End.node.location),
			HandlerPC: uint16(h.Catch.node.location), CatchType: catchIdx,
		})
	}

	var stackMap *StackMapTableAttribute
	if targetMajor >= 50 {
		stackMap = buildStackMapTable(l)
	}

	l.maxStack = maxStack
	l.maxLocals = maxLocals
	l.analyzed = true

	return &emitResult{
		code:         code,
		maxStack:     uint16(maxStack),
		maxLocals:    uint16(maxLocals),
		handlers:     handlers,
		stackMap:     stackMap,
		inconsistent: inconsistent,
	}, nil
}

// assignHandlers records, on every instruction protected by a try range,
// the handlers whose catch entry is a successor for flow-analysis
// purposes (stackmap.go's analyzeFlow reads in.handlers directly rather
// than re-deriving this from the list's handler table on every step).
func assignHandlers(l *InstructionList) {
	seq, idx := sequence(l)
	for _, in := range seq {
		in.handlers = nil
	}
	for _, h := range l.handlers {
		if h.Start.node == nil || h.End.node == nil {
			continue
		}
		startIdx, endIdx := idx[h.Start.node], idx[h.End.node]
		for i := startIdx; i < endIdx && i < len(seq); i++ {
			seq[i].handlers = append(seq[i].handlers, h)
		}
	}
}

func paramFrameLocals(locals []*LocalVariable, width int) []vtype {
	out := make([]vtype, width)
	for i := range out {
		out[i] = vtype{kind: vTop}
	}
	for _, v := range locals {
		if !v.pinned {
			continue
		}
		out[v.register] = vtypeOf(v.Type)
		if v.Type.IsDoubleWord() {
			out[v.register+1] = vtype{kind: vTop}
		}
	}
	return out
}

// resolveOffsets assigns every instruction a byte location and decides
// the width of every branch, by iterating to a fixed point: a branch
// whose computed offset does not fit in a signed 16-bit value is
// widened (goto/jsr become goto_w/jsr_w; a conditional becomes its
// logical inverse over a short hop plus an unconditional goto_w, per
// spec.md §4.3.1), which can only ever grow instruction lengths, so the
// loop is monotone and terminates.
func resolveOffsets(l *InstructionList) error {
	seq, _ := sequence(l)
	for iter := 0; iter < len(seq)+2; iter++ {
		loc := 0
		for _, in := range seq {
			in.location = loc
			loc += instrLength(in, loc)
		}
		changed := false
		for _, in := range seq {
			if in.kind != instrBranch || in.wide {
				continue
			}
			if !in.target.Bound() {
				return ErrUnresolvedLabel
			}
			off := in.target.node.location - in.location
			if off < -32768 || off > 32767 {
				in.wide = true
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
	return fmt.Errorf("jclass: offset resolution did not converge")
}

// instrLength returns the number of bytes in's emitted form occupies,
// given its already-decided wide/tableForm flags and (for locals) its
// assigned register, at byte position loc (needed only for switch
// padding, which must align to the code array's own 4-byte boundaries).
func instrLength(in *Instruction, loc int) int {
	switch in.kind {
	case instrLabel:
		return 0
	case instrSimple, instrStackOp:
		return 1
	case instrConstOp:
		switch in.opcode {
		case OpNewarray:
			return 2
		case OpMultianewarray:
			return 4
		default:
			return 3
		}
	case instrNewObject:
		return 3
	case instrLoadConst:
		if in.ldcWide {
			return 3
		}
		if in.constIdx <= 0xFF {
			return 2
		}
		return 3
	case instrBranch:
		if in.wide {
			if in.opcode == OpGoto || in.opcode == OpJsr {
				return 5
			}
			return 8 // inverted short conditional (3) + goto_w (5)
		}
		return 3
	case instrLocalOp:
		return localOpLength(in)
	case instrSwitch:
		pad := alignTo4(loc + 1)
		if in.tableForm {
			n := len(in.switchKeys)
			lo, hi := int32(0), int32(-1)
			if n > 0 {
				lo, hi = in.switchKeys[0], in.switchKeys[n-1]
			}
			return 1 + pad + 12 + 4*int(hi-lo+1)
		}
		return 1 + pad + 8 + 8*len(in.switchKeys)
	case instrInvoke:
		if in.invokeIsIntf {
			return 5
		}
		return 3
	}
	return 1
}

func localOpLength(in *Instruction) int {
	reg := in.local.register
	switch in.localKind {
	case localIinc:
		if reg <= 0xFF && in.iincDelta >= -128 && in.iincDelta <= 127 {
			return 3
		}
		return 6 // wide iinc
	default: // load, store, ret
		if in.localKind == localStore && in.dead {
			return 1 // pop or pop2
		}
		if reg <= 3 && compactable(in.opcode) {
			return 1
		}
		if reg <= 0xFF {
			return 2
		}
		return 4 // wide prefix + u16 register
	}
}

func compactable(op Opcode) bool {
	switch op {
	case OpIload, OpLload, OpFload, OpDload, OpAload,
		OpIstore, OpLstore, OpFstore, OpDstore, OpAstore:
		return true
	}
	return false
}

var compactLoad = map[Opcode][4]Opcode{
	OpIload: {OpIload0, OpIload1, OpIload2, OpIload3},
	OpLload: {OpLload0, OpLload1, OpLload2, OpLload3},
	OpFload: {OpFload0, OpFload1, OpFload2, OpFload3},
	OpDload: {OpDload0, OpDload1, OpDload2, OpDload3},
	OpAload: {OpAload0, OpAload1, OpAload2, OpAload3},
}

var compactStore = map[Opcode][4]Opcode{
	OpIstore: {OpIstore0, OpIstore1, OpIstore2, OpIstore3},
	OpLstore: {OpLstore0, OpLstore1, OpLstore2, OpLstore3},
	OpFstore: {OpFstore0, OpFstore1, OpFstore2, OpFstore3},
	OpDstore: {OpDstore0, OpDstore1, OpDstore2, OpDstore3},
	OpAstore: {OpAstore0, OpAstore1, OpAstore2, OpAstore3},
}

var invertedCmp = map[Opcode]Opcode{
	OpIfeq: OpIfne, OpIfne: OpIfeq, OpIflt: OpIfge, OpIfge: OpIflt, OpIfgt: OpIfle, OpIfle: OpIfgt,
	OpIfIcmpeq: OpIfIcmpne, OpIfIcmpne: OpIfIcmpeq, OpIfIcmplt: OpIfIcmpge, OpIfIcmpge: OpIfIcmplt,
	OpIfIcmpgt: OpIfIcmple, OpIfIcmple: OpIfIcmpgt,
	OpIfAcmpeq: OpIfAcmpne, OpIfAcmpne: OpIfAcmpeq,
	OpIfnull: OpIfnonnull, OpIfnonnull: OpIfnull,
}

// emitBytes writes the final instruction stream, now that every
// instruction has a resolved location and width.
func emitBytes(l *InstructionList, pool *ConstantPool) ([]byte, error) {
	var out []byte
	seq, _ := sequence(l)
	for _, in := range seq {
		b, err := emitOne(in, pool)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func emitOne(in *Instruction, pool *ConstantPool) ([]byte, error) {
	be := binary.BigEndian
	u16 := func(v uint16) []byte { b := make([]byte, 2); be.PutUint16(b, v); return b }
	u32 := func(v uint32) []byte { b := make([]byte, 4); be.PutUint32(b, v); return b }

	switch in.kind {
	case instrLabel:
		return nil, nil
	case instrSimple, instrStackOp:
		return []byte{byte(in.opcode)}, nil
	case instrConstOp:
		switch in.opcode {
		case OpNewarray:
			return []byte{byte(in.opcode), byte(in.constIdx)}, nil
		case OpMultianewarray:
			out := append([]byte{byte(in.opcode)}, u16(in.constIdx)...)
			return append(out, in.dims), nil
		default:
			return append([]byte{byte(in.opcode)}, u16(in.constIdx)...), nil
		}
	case instrNewObject:
		return append([]byte{byte(OpNew)}, u16(in.constIdx)...), nil
	case instrLoadConst:
		if in.ldcWide {
			return append([]byte{byte(OpLdc2W)}, u16(in.constIdx)...), nil
		}
		if in.constIdx <= 0xFF {
			return []byte{byte(OpLdc), byte(in.constIdx)}, nil
		}
		return append([]byte{byte(OpLdcW)}, u16(in.constIdx)...), nil
	case instrLocalOp:
		return emitLocalOp(in), nil
	case instrBranch:
		return emitBranch(in, be), nil
	case instrSwitch:
		return emitSwitch(in, be), nil
	case instrInvoke:
		out := append([]byte{byte(in.opcode)}, u16(in.constIdx)...)
		if in.invokeIsIntf {
			if in.invokeArgSlots == 0 {
				return nil, ErrMissingInvokeInterfaceCount
			}
			out = append(out, in.invokeArgSlots, 0)
		}
		return out, nil
	}
	_ = u32
	return nil, fmt.Errorf("jclass: emitOne: unhandled instruction kind %d", in.kind)
}

func emitLocalOp(in *Instruction) []byte {
	reg := in.local.register
	be := binary.BigEndian
	if in.localKind == localIinc {
		if reg <= 0xFF && in.iincDelta >= -128 && in.iincDelta <= 127 {
			return []byte{byte(OpIinc), byte(reg), byte(int8(in.iincDelta))}
		}
		b := make([]byte, 6)
		b[0] = byte(OpWide)
		b[1] = byte(OpIinc)
		be.PutUint16(b[2:4], uint16(reg))
		be.PutUint16(b[4:6], uint16(in.iincDelta))
		return b
	}
	if in.localKind == localStore && in.dead {
		if in.local.Type.IsDoubleWord() {
			return []byte{byte(OpPop2)}
		}
		return []byte{byte(OpPop)}
	}
	if reg <= 3 && compactable(in.opcode) {
		var table map[Opcode][4]Opcode
		if in.localKind == localLoad {
			table = compactLoad
		} else {
			table = compactStore
		}
		return []byte{byte(table[in.opcode][reg])}
	}
	if reg <= 0xFF {
		return []byte{byte(in.opcode), byte(reg)}
	}
	b := make([]byte, 4)
	b[0] = byte(OpWide)
	b[1] = byte(in.opcode)
	be.PutUint16(b[2:4], uint16(reg))
	return b
}

func emitBranch(in *Instruction, be binary.ByteOrder) []byte {
	target := in.target.node.location
	if !in.wide {
		off := int16(target - in.location)
		b := make([]byte, 3)
		b[0] = byte(in.opcode)
		be.PutUint16(b[1:3], uint16(off))
		return b
	}
	if in.opcode == OpGoto || in.opcode == OpJsr {
		op := OpGotoW
		if in.opcode == OpJsr {
			op = OpJsrW
		}
		b := make([]byte, 5)
		b[0] = byte(op)
		off := int32(target - in.location)
		be.PutUint32(b[1:5], uint32(off))
		return b
	}
	// Wide conditional: the inverted test branches 8 bytes ahead, past
	// itself and an unconditional goto_w, matching spec.md §4.3.1 "inverted-
	// conditional+goto_w for wide conditional branches".
	inv := invertedCmp[in.opcode]
	b := make([]byte, 8)
	b[0] = byte(inv)
	be.PutUint16(b[1:3], 8) // hop over the goto_w to just after it
	b[3] = byte(OpGotoW)
	off := int32(target - (in.location + 3))
	be.PutUint32(b[4:8], uint32(off))
	return b
}

func emitSwitch(in *Instruction, be binary.ByteOrder) []byte {
	pad := alignTo4(in.location + 1)
	out := append([]byte{byte(opcodeForSwitch(in))}, make([]byte, pad)...)
	u32 := func(v int32) []byte { b := make([]byte, 4); be.PutUint32(b, uint32(v)); return b }
	defOff := int32(in.switchDefault.node.location - in.location)
	if in.tableForm {
		n := len(in.switchKeys)
		lo, hi := int32(0), int32(-1)
		if n > 0 {
			lo, hi = in.switchKeys[0], in.switchKeys[n-1]
		}
		out = append(out, u32(defOff)...)
		out = append(out, u32(lo)...)
		out = append(out, u32(hi)...)
		byKey := make(map[int32]*Label, n)
		for i, k := range in.switchKeys {
			byKey[k] = in.switchLabels[i]
		}
		for k := lo; k <= hi; k++ {
			lbl, ok := byKey[k]
			if !ok {
				out = append(out, u32(defOff)...)
				continue
			}
			out = append(out, u32(int32(lbl.node.location-in.location))...)
		}
		return out
	}
	out = append(out, u32(defOff)...)
	out = append(out, u32(int32(len(in.switchKeys)))...)
	for i, k := range in.switchKeys {
		out = append(out, u32(k)...)
		out = append(out, u32(int32(in.switchLabels[i].node.location-in.location))...)
	}
	return out
}

func opcodeForSwitch(in *Instruction) Opcode {
	if in.tableForm {
		return OpTableswitch
	}
	return OpLookupswitch
}

// buildStackMapTable walks the labels referenced as branch/switch/
// handler targets, in ascending offset order, and compacts each
// already-computed verification frame (stackBefore/localsBefore, from
// analyzeFlow) against the previous frame into one of the JVM's five
// frame encodings, per spec.md §4.3.4 and the JVM specification's
// StackMapTable frame-type table.
func buildStackMapTable(l *InstructionList) *StackMapTableAttribute {
	targets := collectFrameTargets(l)
	if len(targets) == 0 {
		return nil
	}
	out := &StackMapTableAttribute{}
	prevOffset := 0
	prevLocals := []vtype{}
	first := true
	for _, in := range targets {
		locals := trimTrailingTop(in.localsBefore)
		stack := in.stackBefore
		var offsetDelta int
		if first {
			offsetDelta = in.location
		} else {
			offsetDelta = in.location - prevOffset - 1
		}
		out.Frames = append(out.Frames, compactFrame(offsetDelta, prevLocals, locals, stack))
		prevOffset = in.location
		prevLocals = locals
		first = false
	}
	return out
}

// collectFrameTargets returns, in program order, every instruction that
// is the target of a branch, switch case/default, or exception handler:
// exactly the set of offsets the JVM specification requires an explicit
// stack-map frame at.
func collectFrameTargets(l *InstructionList) []*Instruction {
	seen := map[*Instruction]bool{}
	var out []*Instruction
	add := func(in *Instruction) {
		if in == nil || seen[in] {
			return
		}
		seen[in] = true
		out = append(out, in)
	}
	l.Each(func(in *Instruction) {
		switch in.kind {
		case instrBranch:
			if in.target.Bound() {
				add(in.target.node)
			}
		case instrSwitch:
			if in.switchDefault.Bound() {
				add(in.switchDefault.node)
			}
			for _, lbl := range in.switchLabels {
				if lbl.Bound() {
					add(lbl.node)
				}
			}
		}
	})
	for _, h := range l.handlers {
		if h.Catch.Bound() {
			add(h.Catch.node)
		}
	}
	seq, idx := sequence(l)
	ordered := make([]*Instruction, len(out))
	copy(ordered, out)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && idx[ordered[j-1]] > idx[ordered[j]]; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}
	_ = seq
	return ordered
}

func trimTrailingTop(locals []vtype) []vtype {
	n := len(locals)
	for n > 0 && locals[n-1].kind == vTop {
		n--
	}
	return locals[:n]
}

func compactFrame(offsetDelta int, prevLocals, locals []vtype, stack []vtype) StackMapFrameEntry {
	if len(stack) == 0 {
		if sameLocals(prevLocals, locals) {
			return StackMapFrameEntry{OffsetDelta: uint16(offsetDelta), FrameKind: frameSame}
		}
		if n := localsPrefix(prevLocals, locals); n >= 0 {
			extra := len(locals) - len(prevLocals)
			if extra > 0 && extra <= 3 {
				return StackMapFrameEntry{OffsetDelta: uint16(offsetDelta), FrameKind: frameAppend, Locals: locals[len(prevLocals):]}
			}
			if extra < 0 && extra >= -3 {
				return StackMapFrameEntry{OffsetDelta: uint16(offsetDelta), FrameKind: frameChop, ChopCount: -extra}
			}
		}
	} else if len(stack) == 1 && sameLocals(prevLocals, locals) {
		return StackMapFrameEntry{OffsetDelta: uint16(offsetDelta), FrameKind: frameSameLocals1Stack, Stack: stack}
	}
	return StackMapFrameEntry{OffsetDelta: uint16(offsetDelta), FrameKind: frameFull, Locals: locals, Stack: stack}
}

func sameLocals(a, b []vtype) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}

// localsPrefix reports (via its non-negative return, ignored by callers
// beyond a truthiness check) whether b's locals agree with a's on their
// common prefix, which is what legitimizes an append/chop frame instead
// of a full one.
func localsPrefix(a, b []vtype) int {
	n := minInt(len(a), len(b))
	for i := 0; i < n; i++ {
		if !a[i].equal(b[i]) {
			return -1
		}
	}
	return n
}
