// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import "fmt"

// instrKind tags the variant of an Instruction node, per the tagged-union
// design in spec.md §9 ("Replace with tagged variants... Instruction =
// Label | Simple(opcode) | ConstOp(...) | LoadConst(...) | Branch(...) |
// LocalOp(...) | Switch(...) | StackOp(opcode) | Invoke(...) |
// NewObject(...)").
type instrKind uint8

const (
	instrLabel instrKind = iota
	instrSimple
	instrStackOp
	instrConstOp
	instrLoadConst
	instrBranch
	instrLocalOp
	instrSwitch
	instrInvoke
	instrNewObject
)

// localOpKind distinguishes the four local-variable-referencing opcode
// families.
type localOpKind uint8

const (
	localLoad localOpKind = iota
	localStore
	localRet
	localIinc
)

// Label is a pseudo-instruction: zero bytes in the emitted stream, used
// as the target of branches, switches, and exception-handler ranges. It
// may be created unbound and must be bound (appended into some method's
// instruction list) before any instruction referencing it is emitted,
// per spec.md §3 "Label".
type Label struct {
	node     *Instruction
	location int // always -1; the resolved byte offset is node.location
}

// NewLabel returns a fresh, unbound label.
func NewLabel() *Label { return &Label{location: -1} }

// Bound reports whether the label has been appended to a method body.
func (l *Label) Bound() bool { return l.node != nil }

// ExceptionHandler is the tuple (start, end, catch, catchType) of
// spec.md §3 "Exception handler". catchType is nil for a finally
// handler, which the JVM encodes as catch_type == 0 (catches
// Throwable).
type ExceptionHandler struct {
	Start, End, Catch *Label
	CatchType         *Descriptor // nil => finally
}

// Instruction is one doubly-linked node in a method's instruction list.
// Operand fields are populated according to kind; the comment above each
// group of fields below names the kinds for which it is meaningful.
type Instruction struct {
	kind   instrKind
	opcode Opcode

	prev, next *Instruction
	list       *InstructionList // back-pointer only, for "mark stale"; no ownership cycle

	label *Label // for instrLabel: this node's own identity

	// instrConstOp / instrLoadConst / instrNewObject / instrInvoke
	constIdx     uint16
	ldcWide      bool // true if the constant is long/double (forces LDC2_W)
	invokeIsIntf bool
	invokeArgSlots uint8 // argument word count, for invokeinterface's count byte

	// instrConstOp: multianewarray's dimension count
	dims uint8

	// instrBranch
	target *Label
	wide   bool // computed during offset resolution; never un-set once true

	// instrLocalOp
	localKind localOpKind
	local     *LocalVariable
	iincDelta int16

	// instrSwitch
	switchDefault *Label
	switchKeys    []int32 // sorted ascending, deduplicated
	switchLabels  []*Label
	tableForm     bool // true => tableswitch, false => lookupswitch; chosen when the switch is appended

	// resultType, when non-nil, is the precise type codebuilder.go knows
	// this instruction pushes (a field/method's declared type, a loaded
	// constant's type, a newly allocated array's type, ...). Flow
	// analysis (stackmap.go) prefers this over opcode-generic guessing
	// wherever it is set.
	resultType *Descriptor
	resultNull bool // true for aconst_null: pushes the null type, not resultType

	// popWords is the exact operand-stack word count instrConstOp and
	// instrInvoke pop before any resultType push, independent of
	// stackDelta (whose sign alone cannot distinguish "pop a receiver,
	// push nothing wider" from "pop nothing, push a result").
	popWords int

	// populated by analysis passes
	location    int // -1 until resolved
	stackDelta  int
	handlers    []*ExceptionHandler
	stackBefore []vtype
	localsBefore []vtype
	dead        bool // dead store: emitted as pop/pop2 instead of the store
}

// Mnemonic returns the instruction's textual opcode name, used in error
// messages per spec.md §4.3.6 ("carrying the offending instruction's
// textual form").
func (in *Instruction) Mnemonic() string {
	switch in.kind {
	case instrLabel:
		return "label"
	case instrSwitch:
		if in.tableForm {
			return "tableswitch"
		}
		return "lookupswitch"
	case instrBranch:
		return mnemonic(in.opcode)
	default:
		return mnemonic(in.opcode)
	}
}

func (in *Instruction) String() string {
	return fmt.Sprintf("%s@%d", in.Mnemonic(), in.location)
}

// InstructionList is the mutable, ordered sequence of instructions for
// one method, per spec.md §4.3. It is single-owner mutable (spec.md §5):
// no internal locking is performed.
type InstructionList struct {
	head, tail *Instruction // sentinels; head.next..tail.prev are real nodes
	handlers   []*ExceptionHandler
	locals     []*LocalVariable
	params     int // number of pinned parameter locals (including receiver)

	analyzed bool // true once offsets/liveness/stackmap are computed
	maxStack int
	maxLocals int

	// onAppend, when non-nil, is called with every real (non-label,
	// non-sentinel) instruction as it is appended; codebuilder.go uses
	// this to attach pending source-line markers without every append*
	// constructor needing to know about line tracking.
	onAppend func(*Instruction)
}

// NewInstructionList returns an empty instruction list.
func NewInstructionList() *InstructionList {
	head := &Instruction{kind: instrLabel, location: -1}
	tail := &Instruction{kind: instrLabel, location: -1}
	head.next = tail
	tail.prev = head
	l := &InstructionList{head: head, tail: tail}
	head.list = l
	tail.list = l
	return l
}

func (l *InstructionList) markStale() { l.analyzed = false }

func (l *InstructionList) append(in *Instruction) *Instruction {
	in.list = l
	in.location = -1
	last := l.tail.prev
	last.next = in
	in.prev = last
	in.next = l.tail
	l.tail.prev = in
	l.markStale()
	if l.onAppend != nil && in.kind != instrLabel {
		l.onAppend(in)
	}
	return in
}

// First returns the first real instruction, or nil if the list is empty.
func (l *InstructionList) First() *Instruction {
	if l.head.next == l.tail {
		return nil
	}
	return l.head.next
}

// Each calls fn for every real instruction in program order.
func (l *InstructionList) Each(fn func(*Instruction)) {
	for in := l.head.next; in != l.tail; in = in.next {
		fn(in)
	}
}

// Len returns the number of real instructions (including labels).
func (l *InstructionList) Len() int {
	n := 0
	l.Each(func(*Instruction) { n++ })
	return n
}

// BindLabel appends lbl at the current end of the list, fixing its
// position relative to surrounding instructions. A label may be bound
// only once.
func (l *InstructionList) BindLabel(lbl *Label) *Instruction {
	if lbl.Bound() {
		panic("jclass: label already bound")
	}
	node := &Instruction{kind: instrLabel, label: lbl}
	l.append(node)
	lbl.node = node
	return node
}

// AddExceptionHandler registers a handler whose protected range is
// [start, end) and whose handler code begins at catch. catchType is nil
// for a finally handler.
func (l *InstructionList) AddExceptionHandler(start, end, catch *Label, catchType *Descriptor) *ExceptionHandler {
	h := &ExceptionHandler{Start: start, End: end, Catch: catch, CatchType: catchType}
	l.handlers = append(l.handlers, h)
	l.markStale()
	return h
}

func (l *InstructionList) appendSimple(op Opcode, delta int) *Instruction {
	return l.append(&Instruction{kind: instrSimple, opcode: op, stackDelta: delta})
}

func (l *InstructionList) appendStackOp(op Opcode, delta int) *Instruction {
	return l.append(&Instruction{kind: instrStackOp, opcode: op, stackDelta: delta})
}

func (l *InstructionList) appendConstOp(op Opcode, idx uint16, delta int, resultType *Descriptor) *Instruction {
	return l.append(&Instruction{kind: instrConstOp, opcode: op, constIdx: idx, stackDelta: delta, resultType: resultType, popWords: maxInt(0, -delta)})
}

// appendConstOpPop is appendConstOp for the cases (getfield, putfield,
// putstatic) where the word count popped is not simply max(0, -delta):
// a getfield of a wide field has a non-negative net delta yet still pops
// a one-word receiver first.
func (l *InstructionList) appendConstOpPop(op Opcode, idx uint16, pop int, delta int, resultType *Descriptor) *Instruction {
	return l.append(&Instruction{kind: instrConstOp, opcode: op, constIdx: idx, stackDelta: delta, resultType: resultType, popWords: pop})
}

func (l *InstructionList) appendMultianewarray(idx uint16, dims uint8, arrayType *Descriptor) *Instruction {
	return l.append(&Instruction{kind: instrConstOp, opcode: OpMultianewarray, constIdx: idx, dims: dims, stackDelta: 1 - int(dims), resultType: arrayType, popWords: int(dims)})
}

func (l *InstructionList) appendNewObject(idx uint16) *Instruction {
	return l.append(&Instruction{kind: instrNewObject, opcode: OpNew, constIdx: idx, stackDelta: 1})
}

func (l *InstructionList) appendLoadConst(idx uint16, wide bool, resultType *Descriptor) *Instruction {
	delta := 1
	if wide {
		delta = 2
	}
	return l.append(&Instruction{kind: instrLoadConst, constIdx: idx, ldcWide: wide, stackDelta: delta, resultType: resultType})
}

func (l *InstructionList) appendBranch(op Opcode, target *Label, delta int) *Instruction {
	return l.append(&Instruction{kind: instrBranch, opcode: op, target: target, stackDelta: delta})
}

func (l *InstructionList) appendLocalOp(kind localOpKind, op Opcode, v *LocalVariable, delta int) *Instruction {
	return l.append(&Instruction{kind: instrLocalOp, localKind: kind, opcode: op, local: v, stackDelta: delta})
}

func (l *InstructionList) appendIinc(v *LocalVariable, delta int16) *Instruction {
	return l.append(&Instruction{kind: instrLocalOp, localKind: localIinc, opcode: OpIinc, local: v, iincDelta: delta, stackDelta: 0})
}

func (l *InstructionList) appendSwitch(def *Label, keys []int32, labels []*Label) (*Instruction, error) {
	if len(keys) != len(labels) {
		return nil, fmt.Errorf("jclass: switch keys/labels length mismatch")
	}
	seen := make(map[int32]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			return nil, ErrDuplicateSwitchCase
		}
		seen[k] = true
	}
	sortedKeys := append([]int32(nil), keys...)
	sortedLabels := append([]*Label(nil), labels...)
	for i := 1; i < len(sortedKeys); i++ {
		for j := i; j > 0 && sortedKeys[j-1] > sortedKeys[j]; j-- {
			sortedKeys[j-1], sortedKeys[j] = sortedKeys[j], sortedKeys[j-1]
			sortedLabels[j-1], sortedLabels[j] = sortedLabels[j], sortedLabels[j-1]
		}
	}
	return l.append(&Instruction{
		kind:          instrSwitch,
		switchDefault: def,
		switchKeys:    sortedKeys,
		switchLabels:  sortedLabels,
		tableForm:     chooseTableForm(sortedKeys),
		stackDelta:    -1,
	}), nil
}

// chooseTableForm implements spec.md §8 property 6: TABLESWITCH iff
// 12 + 4*(hi-lo+1) <= 8 + 8*N, where N is the case count. An empty
// switch (N=0) trivially prefers lookupswitch (zero-length either way,
// but tableswitch would require a degenerate lo>hi range).
func chooseTableForm(sortedKeys []int32) bool {
	n := len(sortedKeys)
	if n == 0 {
		return false
	}
	lo, hi := sortedKeys[0], sortedKeys[n-1]
	tableCost := int64(12) + 4*(int64(hi)-int64(lo)+1)
	lookupCost := int64(8) + 8*int64(n)
	return tableCost <= lookupCost
}

func (l *InstructionList) appendInvoke(op Opcode, idx uint16, isIntf bool, argSlots uint8, pop int, delta int, resultType *Descriptor) *Instruction {
	return l.append(&Instruction{
		kind: instrInvoke, opcode: op, constIdx: idx,
		invokeIsIntf: isIntf, invokeArgSlots: argSlots, stackDelta: delta, resultType: resultType, popWords: pop,
	})
}

// successors returns the instructions that may execute immediately
// after in: fall-through to the next real instruction (unless in is an
// unconditional goto/return/athrow), plus any branch/switch targets.
// Exception-handler catch entries are NOT included here; analyzeFlow
// (stackmap.go) and computeLiveness (liveness.go) add those edges
// separately, per spec.md §4.3.4.
func successors(in *Instruction, fallThrough *Instruction) []*Instruction {
	switch in.kind {
	case instrBranch:
		if in.opcode == OpGoto || in.opcode == OpGotoW {
			return []*Instruction{in.target.node}
		}
		if in.opcode == OpJsr || in.opcode == OpJsrW {
			return []*Instruction{in.target.node, fallThrough}
		}
		return []*Instruction{in.target.node, fallThrough}
	case instrSwitch:
		out := make([]*Instruction, 0, len(in.switchLabels)+1)
		out = append(out, in.switchDefault.node)
		for _, lbl := range in.switchLabels {
			out = append(out, lbl.node)
		}
		return out
	case instrSimple:
		switch in.opcode {
		case OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn, OpReturn, OpAthrow:
			return nil
		}
	}
	if fallThrough == nil {
		return nil
	}
	return []*Instruction{fallThrough}
}
