// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import "fmt"

// CodeBuilder is the type-aware façade over an InstructionList described in
// spec.md §4.4: one method per opcode family, each recording a constant (via
// the owning classfile's constant pool) and appending an Instruction. It
// does not itself compute offsets, liveness or stack maps; those run at
// emission time over the InstructionList it fills in.
type CodeBuilder struct {
	pool     *ConstantPool
	list     *InstructionList
	locals   []*LocalVariable
	isStatic bool

	pendingLine int // -1 when no SetLineNumber is pending
	lineMarks   []lineMark

	finalized bool // set once finalizeAttributes has run emission over list
}

// checkMutable returns ErrFinalized once the builder's instructions have
// been handed to emission, per the read-only-after-finalization lifecycle
// in spec.md §3. Checked by the operations that touch the constant pool
// or the type lattice; see DESIGN.md for the builder methods this does
// not cover.
func (b *CodeBuilder) checkMutable() error {
	if b.finalized {
		return ErrFinalized
	}
	return nil
}

// lineMark associates one instruction with the source line that was
// pending via SetLineNumber when it was appended, feeding
// LineNumberTable emission (SPEC_FULL.md §4).
type lineMark struct {
	instr *Instruction
	line  int
}

// newCodeBuilder returns a builder seeded with the method's pinned
// parameter locals, per spec.md §3 "Local variable": register 0 is the
// receiver for instance methods, followed by one register per parameter
// (two for double-word types).
func newCodeBuilder(pool *ConstantPool, desc *MethodDescriptor, isStatic, isConstructor bool, receiver *Descriptor) *CodeBuilder {
	locals := declareParams(desc, isStatic, isConstructor, receiver)
	b := &CodeBuilder{
		pool:        pool,
		list:        NewInstructionList(),
		locals:      locals,
		isStatic:    isStatic,
		pendingLine: -1,
	}
	b.list.onAppend = b.recordLine
	return b
}

// SetLineNumber marks the next instruction appended (other than a label) as the
// start of source line. Multiple instructions may share a line; calling
// it again before any instruction is appended simply replaces the
// pending line.
func (b *CodeBuilder) SetLineNumber(line int) { b.pendingLine = line }

func (b *CodeBuilder) recordLine(in *Instruction) {
	if b.pendingLine < 0 {
		return
	}
	b.lineMarks = append(b.lineMarks, lineMark{instr: in, line: b.pendingLine})
	b.pendingLine = -1
}

// LineNumberTable builds a LineNumberTableAttribute from the recorded
// SetLineNumber marks, once instructions have been assigned their final
// byte locations by emission.
func (b *CodeBuilder) LineNumberTable() *LineNumberTableAttribute {
	if len(b.lineMarks) == 0 {
		return nil
	}
	out := &LineNumberTableAttribute{}
	for _, m := range b.lineMarks {
		out.Entries = append(out.Entries, LineNumberEntry{
			StartPC: uint16(m.instr.location), LineNumber: uint16(m.line),
		})
	}
	return out
}

// LocalVariableTable builds a LocalVariableTableAttribute from the
// register-allocation/liveness pass's live-range output, per
// SPEC_FULL.md §4. Ranges are expressed in instruction byte offsets, so
// this must be called after emission has resolved instruction locations.
func (b *CodeBuilder) LocalVariableTable(pool *ConstantPool, endPC uint16) (*LocalVariableTableAttribute, error) {
	out := &LocalVariableTableAttribute{}
	seq, _ := sequence(b.list)
	for _, v := range b.locals {
		if v.Name == "" {
			continue
		}
		nameIdx, err := pool.AddUTF8(v.Name)
		if err != nil {
			return nil, err
		}
		descIdx, err := pool.AddUTF8(v.Type.InternalForm())
		if err != nil {
			return nil, err
		}
		if v.pinned {
			out.Entries = append(out.Entries, LocalVariableEntry{
				StartPC: 0, Length: endPC, NameIndex: nameIdx, DescIndex: descIdx, Index: uint16(v.register),
			})
			continue
		}
		for _, rng := range v.liveRanges {
			start := seq[rng.from].location
			var length int
			if rng.to+1 < len(seq) {
				length = seq[rng.to+1].location - start
			} else {
				length = int(endPC) - start
			}
			out.Entries = append(out.Entries, LocalVariableEntry{
				StartPC: uint16(start), Length: uint16(length), NameIndex: nameIdx, DescIndex: descIdx, Index: uint16(v.register),
			})
		}
	}
	if len(out.Entries) == 0 {
		return nil, nil
	}
	return out, nil
}

// InstructionList returns the underlying list, for emission.
func (b *CodeBuilder) InstructionList() *InstructionList { return b.list }

// DeclareLocal introduces a new, unpinned local variable of the given
// type, available for StoreLocal/LoadLocal once register allocation has
// run. Its register is -1 until then.
func (b *CodeBuilder) DeclareLocal(name string, t *Descriptor) *LocalVariable {
	v := &LocalVariable{index: len(b.locals), Name: name, Type: t, register: -1}
	b.locals = append(b.locals, v)
	return v
}

// Param returns the i'th declared parameter local (0 is the receiver for
// an instance method, if any).
func (b *CodeBuilder) Param(i int) *LocalVariable { return b.locals[i] }

// LoadConstant pushes a literal value: one of int32, int64, float32,
// float64, or string.
func (b *CodeBuilder) LoadConstant(v interface{}) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case int32:
		idx, err := b.pool.AddInteger(x)
		if err != nil {
			return nil, err
		}
		return b.list.appendLoadConst(idx, false, Int), nil
	case int64:
		idx, err := b.pool.AddLong(x)
		if err != nil {
			return nil, err
		}
		return b.list.appendLoadConst(idx, true, Long), nil
	case float32:
		idx, err := b.pool.AddFloat(x)
		if err != nil {
			return nil, err
		}
		return b.list.appendLoadConst(idx, false, Float), nil
	case float64:
		idx, err := b.pool.AddDouble(x)
		if err != nil {
			return nil, err
		}
		return b.list.appendLoadConst(idx, true, Double), nil
	case string:
		idx, err := b.pool.AddString(x)
		if err != nil {
			return nil, err
		}
		return b.list.appendLoadConst(idx, false, ObjectDescriptor("java.lang.String")), nil
	default:
		return nil, fmt.Errorf("jclass: loadConstant: unsupported literal type %T", v)
	}
}

// LoadNull pushes the null reference.
func (b *CodeBuilder) LoadNull() *Instruction {
	in := b.list.appendSimple(OpAconstNull, 1)
	in.resultNull = true
	return in
}

// LoadLocal pushes the value of local variable v.
func (b *CodeBuilder) LoadLocal(v *LocalVariable) *Instruction {
	op, delta := loadOpcode(v.Type)
	return b.list.appendLocalOp(localLoad, op, v, delta)
}

// StoreLocal pops the top of stack into local variable v. CodeBuilder
// does not track the operand stack's value types between calls, only the
// fixed descriptors each call is given, so no narrowing check runs here;
// the caller is responsible for emitting any necessary `Convert` first,
// per spec.md §4.4.
func (b *CodeBuilder) StoreLocal(v *LocalVariable) *Instruction {
	op, delta := storeOpcode(v.Type)
	return b.list.appendLocalOp(localStore, op, v, delta)
}

// Iinc increments local variable v (must be int-typed) by delta in place,
// without touching the operand stack.
func (b *CodeBuilder) Iinc(v *LocalVariable, delta int16) *Instruction {
	return b.list.appendIinc(v, delta)
}

func loadOpcode(t *Descriptor) (Opcode, int) {
	switch t.Kind() {
	case KindLong:
		return OpLload, 2
	case KindFloat:
		return OpFload, 1
	case KindDouble:
		return OpDload, 2
	case KindObject, KindArray:
		return OpAload, 1
	default:
		return OpIload, 1
	}
}

func storeOpcode(t *Descriptor) (Opcode, int) {
	switch t.Kind() {
	case KindLong:
		return OpLstore, -2
	case KindFloat:
		return OpFstore, -1
	case KindDouble:
		return OpDstore, -2
	case KindObject, KindArray:
		return OpAstore, -1
	default:
		return OpIstore, -1
	}
}

// LoadField emits getfield (instance) or getstatic (static), pushing the
// field's declared type.
func (b *CodeBuilder) LoadField(class *Descriptor, name string, fieldType *Descriptor, static bool) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	idx, err := b.pool.AddFieldRef(class, name, fieldType)
	if err != nil {
		return nil, err
	}
	if static {
		return b.list.appendConstOpPop(OpGetstatic, idx, 0, fieldType.Slots(), fieldType), nil
	}
	return b.list.appendConstOpPop(OpGetfield, idx, 1, fieldType.Slots()-1, fieldType), nil
}

// StoreField emits putfield (instance) or putstatic (static), popping the
// field's value (and, for an instance field, the receiver).
func (b *CodeBuilder) StoreField(class *Descriptor, name string, fieldType *Descriptor, static bool) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	idx, err := b.pool.AddFieldRef(class, name, fieldType)
	if err != nil {
		return nil, err
	}
	if static {
		return b.list.appendConstOpPop(OpPutstatic, idx, fieldType.Slots(), -fieldType.Slots(), nil), nil
	}
	return b.list.appendConstOpPop(OpPutfield, idx, fieldType.Slots()+1, -fieldType.Slots()-1, nil), nil
}

// InvokeVirtual, InvokeSpecial, InvokeStatic emit the corresponding
// invoke instruction against a class-based method reference. InvokeStatic
// does not pop a receiver; the others do.
func (b *CodeBuilder) InvokeVirtual(class *Descriptor, name string, desc *MethodDescriptor) (*Instruction, error) {
	return b.invokeRef(OpInvokevirtual, class, name, desc, false, true)
}

func (b *CodeBuilder) InvokeSpecial(class *Descriptor, name string, desc *MethodDescriptor) (*Instruction, error) {
	return b.invokeRef(OpInvokespecial, class, name, desc, false, true)
}

func (b *CodeBuilder) InvokeStatic(class *Descriptor, name string, desc *MethodDescriptor) (*Instruction, error) {
	return b.invokeRef(OpInvokestatic, class, name, desc, false, false)
}

// InvokeConstructor is InvokeSpecial against <init>, per the JVM
// convention for object construction.
func (b *CodeBuilder) InvokeConstructor(class *Descriptor, desc *MethodDescriptor) (*Instruction, error) {
	return b.InvokeSpecial(class, "<init>", desc)
}

// InvokeInterface emits invokeinterface, which carries a mandatory
// argument-count byte (1 + parameter slots, the receiver included) per
// spec.md §4.3 and the JVM specification.
func (b *CodeBuilder) InvokeInterface(class *Descriptor, name string, desc *MethodDescriptor) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	idx, err := b.pool.AddInterfaceMethodRef(class, name, desc)
	if err != nil {
		return nil, err
	}
	argSlots := uint8(1 + desc.ParameterSlots())
	pop := desc.ParameterSlots() + 1
	delta := -pop
	if !desc.ReturnType.IsVoid() {
		delta += desc.ReturnType.Slots()
	}
	return b.list.appendInvoke(OpInvokeinterface, idx, true, argSlots, pop, delta, invokeResultType(desc)), nil
}

func (b *CodeBuilder) invokeRef(op Opcode, class *Descriptor, name string, desc *MethodDescriptor, isIntf, hasReceiver bool) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	idx, err := b.pool.AddMethodRef(class, name, desc)
	if err != nil {
		return nil, err
	}
	pop := desc.ParameterSlots()
	if hasReceiver {
		pop++
	}
	delta := -pop
	if !desc.ReturnType.IsVoid() {
		delta += desc.ReturnType.Slots()
	}
	return b.list.appendInvoke(op, idx, isIntf, 0, pop, delta, invokeResultType(desc)), nil
}

func invokeResultType(desc *MethodDescriptor) *Descriptor {
	if desc.ReturnType.IsVoid() {
		return nil
	}
	return desc.ReturnType
}

// NewObject emits `new`, pushing an uninitialized instance of class.
func (b *CodeBuilder) NewObject(class *Descriptor) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	idx, err := b.pool.AddClass(class)
	if err != nil {
		return nil, err
	}
	return b.list.appendNewObject(idx), nil
}

// NewArray emits newarray (primitive component), anewarray (reference
// component), or multianewarray (rank > 1), per spec.md §4.3's
// instruction variants.
func (b *CodeBuilder) NewArray(elem *Descriptor, dims uint8) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	if dims == 0 {
		return nil, ErrNegativeArrayDimension
	}
	arrType := elem
	for i := uint8(0); i < dims; i++ {
		arrType = ArrayDescriptor(arrType)
	}
	if dims > 1 {
		idx, err := b.pool.AddClass(arrType)
		if err != nil {
			return nil, err
		}
		return b.list.appendMultianewarray(idx, dims, arrType), nil
	}
	if elem.IsPrimitive() {
		return b.list.appendConstOpPop(OpNewarray, uint16(newarrayAtype(elem)), 1, 0, arrType), nil
	}
	idx, err := b.pool.AddClass(elem)
	if err != nil {
		return nil, err
	}
	return b.list.appendConstOpPop(OpAnewarray, idx, 1, 0, arrType), nil
}

func newarrayAtype(elem *Descriptor) byte {
	switch elem.Kind() {
	case KindBoolean:
		return 4
	case KindChar:
		return 5
	case KindFloat:
		return 6
	case KindDouble:
		return 7
	case KindByte:
		return 8
	case KindShort:
		return 9
	case KindInt:
		return 10
	case KindLong:
		return 11
	default:
		return 0
	}
}

// ArrayLength emits arraylength.
func (b *CodeBuilder) ArrayLength() *Instruction {
	return b.list.appendSimple(OpArraylength, 0)
}

// mathOp identifies one arithmetic or bitwise operation family, combined
// with an operand Kind to select the concrete opcode.
type mathOp uint8

const (
	MathAdd mathOp = iota
	MathSub
	MathMul
	MathDiv
	MathRem
	MathNeg
	MathShl
	MathShr
	MathUshr
	MathAnd
	MathOr
	MathXor
)

var mathOpcodes = map[mathOp]map[Kind]Opcode{
	MathAdd:  {KindInt: OpIadd, KindLong: OpLadd, KindFloat: OpFadd, KindDouble: OpDadd},
	MathSub:  {KindInt: OpIsub, KindLong: OpLsub, KindFloat: OpFsub, KindDouble: OpDsub},
	MathMul:  {KindInt: OpImul, KindLong: OpLmul, KindFloat: OpFmul, KindDouble: OpDmul},
	MathDiv:  {KindInt: OpIdiv, KindLong: OpLdiv, KindFloat: OpFdiv, KindDouble: OpDdiv},
	MathRem:  {KindInt: OpIrem, KindLong: OpLrem, KindFloat: OpFrem, KindDouble: OpDrem},
	MathNeg:  {KindInt: OpIneg, KindLong: OpLneg, KindFloat: OpFneg, KindDouble: OpDneg},
	MathShl:  {KindInt: OpIshl, KindLong: OpLshl},
	MathShr:  {KindInt: OpIshr, KindLong: OpLshr},
	MathUshr: {KindInt: OpIushr, KindLong: OpLushr},
	MathAnd:  {KindInt: OpIand, KindLong: OpLand},
	MathOr:   {KindInt: OpIor, KindLong: OpLor},
	MathXor:  {KindInt: OpIxor, KindLong: OpLxor},
}

// Math emits the opcode for op over operands of the given kind. For
// MathNeg, only one operand is consumed.
func (b *CodeBuilder) Math(op mathOp, k Kind) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	table, ok := mathOpcodes[op]
	if !ok {
		return nil, fmt.Errorf("jclass: unknown math op %d", op)
	}
	code, ok := table[k]
	if !ok {
		return nil, fmt.Errorf("jclass: math op %d undefined for kind %d", op, k)
	}
	info := opTable[code]
	return b.list.appendSimple(code, info.stackDelta), nil
}

// Compare emits lcmp/fcmpl/fcmpg/dcmpl/dcmpg, which reduce a pair of
// long/float/double operands to an int suitable for a following
// IfZeroComparison. nanGreater selects fcmpg/dcmpg (NaN compares greater)
// over fcmpl/dcmpl (NaN compares less); meaningless for long.
func (b *CodeBuilder) Compare(k Kind, nanGreater bool) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	var code Opcode
	switch k {
	case KindLong:
		code = OpLcmp
	case KindFloat:
		if nanGreater {
			code = OpFcmpg
		} else {
			code = OpFcmpl
		}
	case KindDouble:
		if nanGreater {
			code = OpDcmpg
		} else {
			code = OpDcmpl
		}
	default:
		return nil, fmt.Errorf("jclass: compare undefined for kind %d", k)
	}
	info := opTable[code]
	return b.list.appendSimple(code, info.stackDelta), nil
}

// Branch emits an unconditional goto to target. Offset width
// (goto vs goto_w) is decided at emission time, per spec.md §4.3.1.
func (b *CodeBuilder) Branch(target *Label) *Instruction {
	return b.list.appendBranch(OpGoto, target, 0)
}

// cmpOp selects the comparison for IfZeroComparison, which emits one of
// ifeq/ifne/iflt/ifge/ifgt/ifle comparing the top-of-stack int against
// zero, and for IfComparison.
type cmpOp uint8

const (
	CmpEQ cmpOp = iota
	CmpNE
	CmpLT
	CmpGE
	CmpGT
	CmpLE
)

var zeroCmpOpcodes = map[cmpOp]Opcode{
	CmpEQ: OpIfeq, CmpNE: OpIfne, CmpLT: OpIflt, CmpGE: OpIfge, CmpGT: OpIfgt, CmpLE: OpIfle,
}

var intCmpOpcodes = map[cmpOp]Opcode{
	CmpEQ: OpIfIcmpeq, CmpNE: OpIfIcmpne, CmpLT: OpIfIcmplt,
	CmpGE: OpIfIcmpge, CmpGT: OpIfIcmpgt, CmpLE: OpIfIcmple,
}

func (b *CodeBuilder) IfZeroComparison(op cmpOp, target *Label) *Instruction {
	return b.list.appendBranch(zeroCmpOpcodes[op], target, -1)
}

// IfComparison emits if_icmp<op> (two ints) or, for op in {EQ, NE} over
// reference operands, if_acmpeq/if_acmpne.
func (b *CodeBuilder) IfComparison(op cmpOp, reference bool, target *Label) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	if reference {
		switch op {
		case CmpEQ:
			return b.list.appendBranch(OpIfAcmpeq, target, -2), nil
		case CmpNE:
			return b.list.appendBranch(OpIfAcmpne, target, -2), nil
		default:
			return nil, fmt.Errorf("jclass: reference comparison only supports EQ/NE")
		}
	}
	code, ok := intCmpOpcodes[op]
	if !ok {
		return nil, fmt.Errorf("jclass: unknown int comparison %d", op)
	}
	return b.list.appendBranch(code, target, -2), nil
}

// IfNull / IfNonNull emit ifnull/ifnonnull.
func (b *CodeBuilder) IfNull(target *Label) *Instruction    { return b.list.appendBranch(OpIfnull, target, -1) }
func (b *CodeBuilder) IfNonNull(target *Label) *Instruction { return b.list.appendBranch(OpIfnonnull, target, -1) }

// Switch emits a tableswitch or lookupswitch over the given case keys
// (in any order; a repeated key returns ErrDuplicateSwitchCase) mapping
// to labels, with def as the default target. Form selection (table vs
// lookup) happens here, when the switch is appended, per spec.md §8
// property 6.
func (b *CodeBuilder) Switch(keys []int32, labels []*Label, def *Label) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	return b.list.appendSwitch(def, keys, labels)
}

// ThrowObject emits athrow.
func (b *CodeBuilder) ThrowObject() *Instruction {
	return b.list.appendSimple(OpAthrow, 0)
}

// ReturnValue emits the return opcode matching t's kind (ireturn for
// int-family primitives, lreturn, freturn, dreturn, or areturn).
func (b *CodeBuilder) ReturnValue(t *Descriptor) *Instruction {
	var code Opcode
	switch t.Kind() {
	case KindLong:
		code = OpLreturn
	case KindFloat:
		code = OpFreturn
	case KindDouble:
		code = OpDreturn
	case KindObject, KindArray:
		code = OpAreturn
	default:
		code = OpIreturn
	}
	info := opTable[code]
	return b.list.appendSimple(code, info.stackDelta)
}

// ReturnVoid emits return.
func (b *CodeBuilder) ReturnVoid() *Instruction { return b.list.appendSimple(OpReturn, 0) }

// MonitorEnter / MonitorExit emit monitorenter/monitorexit.
func (b *CodeBuilder) MonitorEnter() *Instruction { return b.list.appendSimple(OpMonitorenter, -1) }
func (b *CodeBuilder) MonitorExit() *Instruction  { return b.list.appendSimple(OpMonitorexit, -1) }

// CheckCast / InstanceOf emit checkcast/instanceof against class.
func (b *CodeBuilder) CheckCast(class *Descriptor) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	idx, err := b.pool.AddClass(class)
	if err != nil {
		return nil, err
	}
	return b.list.appendConstOpPop(OpCheckcast, idx, 1, 0, class), nil
}

func (b *CodeBuilder) InstanceOf(class *Descriptor) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	idx, err := b.pool.AddClass(class)
	if err != nil {
		return nil, err
	}
	return b.list.appendConstOpPop(OpInstanceof, idx, 1, 0, Int), nil
}

// ExceptionHandler registers a protected range [start, end) whose handler
// begins at catch, for catchType (nil for a finally handler).
func (b *CodeBuilder) ExceptionHandler(start, end, catch *Label, catchType *Descriptor) *ExceptionHandler {
	return b.list.AddExceptionHandler(start, end, catch, catchType)
}

// boxedWrapper maps a primitive Kind to its well-known wrapper class's
// dotted name, its static single-argument valueOf boxing method and its
// unboxing accessor method name, used by Convert. Boxing calls valueOf;
// the wrapper constructors are not used.
var boxedWrapper = map[Kind]struct {
	class, valueOf, accessor string
}{
	KindBoolean: {"java.lang.Boolean", "valueOf", "booleanValue"},
	KindByte:    {"java.lang.Byte", "valueOf", "byteValue"},
	KindChar:    {"java.lang.Character", "valueOf", "charValue"},
	KindShort:   {"java.lang.Short", "valueOf", "shortValue"},
	KindInt:     {"java.lang.Integer", "valueOf", "intValue"},
	KindLong:    {"java.lang.Long", "valueOf", "longValue"},
	KindFloat:   {"java.lang.Float", "valueOf", "floatValue"},
	KindDouble:  {"java.lang.Double", "valueOf", "doubleValue"},
}

// boxedKindByClass inverts boxedWrapper so Convert can recognize a boxed
// reference type by its dotted class name and recover the primitive Kind
// it wraps.
var boxedKindByClass = func() map[string]Kind {
	m := make(map[string]Kind, len(boxedWrapper))
	for k, w := range boxedWrapper {
		m[w.class] = k
	}
	return m
}()

// widenOpcodes[from][to] gives the widening-conversion opcode from
// primitive `from` to primitive `to`, per the JVM's i2l/i2f/.../d2f table.
var widenOpcodes = map[Kind]map[Kind]Opcode{
	KindInt:    {KindLong: OpI2l, KindFloat: OpI2f, KindDouble: OpI2d},
	KindLong:   {KindFloat: OpL2f, KindDouble: OpL2d},
	KindFloat:  {KindDouble: OpF2d},
}

// narrowOpcodes[from][to] gives the narrowing-conversion opcode.
var narrowOpcodes = map[Kind]map[Kind]Opcode{
	KindLong:   {KindInt: OpL2i},
	KindFloat:  {KindInt: OpF2i, KindLong: OpF2l},
	KindDouble: {KindInt: OpD2i, KindLong: OpD2l, KindFloat: OpD2f},
	KindInt:    {KindByte: OpI2b, KindChar: OpI2c, KindShort: OpI2s},
}

// Convert implements spec.md §4.4's boxing/unboxing/primitive-conversion
// lattice. When both types are the same primitive or object identity, it
// is a no-op and returns (nil, nil).
func (b *CodeBuilder) Convert(from, to *Descriptor) (*Instruction, error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	if from == to {
		return nil, nil
	}
	switch {
	case from.IsPrimitive() && to.IsPrimitive():
		return b.convertPrimitive(from, to)
	case from.IsPrimitive() && to.IsObject():
		return b.box(from, to)
	case from.IsObject() && to.IsPrimitive():
		return b.unbox(from, to)
	case from.IsObject() && to.IsObject():
		if fromKind, ok := boxedKindByClass[from.ClassName()]; ok {
			if toKind, ok := boxedKindByClass[to.ClassName()]; ok {
				return b.convertBoxed(fromKind, toKind, from, to)
			}
		}
		return b.CheckCast(to)
	default:
		return b.CheckCast(to)
	}
}

// convertBoxed implements spec.md §4.4's boxed-primitive-to-boxed-primitive
// conversion (e.g. Integer -> Long): unbox, convert the underlying
// primitive, and rebox, except when the reference is null, which produces
// null rather than unboxing it (an unboxing invokevirtual on a null
// receiver would throw NullPointerException).
func (b *CodeBuilder) convertBoxed(fromKind, toKind Kind, from, to *Descriptor) (*Instruction, error) {
	fromPrim, toPrim := primitiveSingletons[fromKind], primitiveSingletons[toKind]

	b.list.appendStackOp(OpDup, opTable[OpDup].stackDelta) // ref, ref
	isNull, done := NewLabel(), NewLabel()
	b.IfNull(isNull) // ref

	if _, err := b.unbox(from, fromPrim); err != nil {
		return nil, err
	}
	if _, err := b.convertPrimitive(fromPrim, toPrim); err != nil {
		return nil, err
	}
	instr, err := b.box(toPrim, to)
	if err != nil {
		return nil, err
	}
	b.Branch(done)

	list := b.InstructionList()
	list.BindLabel(isNull)
	b.list.appendStackOp(OpPop, opTable[OpPop].stackDelta) // discard the null ref
	b.LoadNull()
	b.Branch(done)

	list.BindLabel(done)
	return instr, nil
}

func (b *CodeBuilder) convertPrimitive(from, to *Descriptor) (*Instruction, error) {
	fk, tk := from.Kind(), to.Kind()
	if fk == tk {
		return nil, nil
	}
	if tk == KindBoolean {
		if fk == KindFloat || fk == KindDouble {
			return b.floatCompareToBoolean(fk)
		}
		return nil, fmt.Errorf("jclass: convert: no direct primitive conversion from %s to boolean", fk)
	}
	if code, ok := widenOpcodes[fk][tk]; ok {
		info := opTable[code]
		return b.list.appendSimple(code, info.stackDelta), nil
	}
	if code, ok := narrowOpcodes[fk][tk]; ok {
		info := opTable[code]
		return b.list.appendSimple(code, info.stackDelta), nil
	}
	// int family (byte/char/short) widening to int/long/float/double:
	// byte/char/short are represented as int on the operand stack, so
	// only a further i2x conversion (handled below when tk != KindInt)
	// is needed; an int target requires no instruction.
	if tk == KindInt {
		return nil, nil
	}
	if code, ok := widenOpcodes[KindInt][tk]; ok {
		info := opTable[code]
		return b.list.appendSimple(code, info.stackDelta), nil
	}
	return nil, fmt.Errorf("jclass: convert: no conversion path from %s to %s", from, to)
}

// floatCompareToBoolean implements spec.md §4.4's float/double -> boolean
// rule: NaN -> false, 0 -> false, otherwise -> true. There is no native
// JVM opcode for this, so it is synthesized from a pair of comparisons
// against zero: fcmpg/dcmpg (the "g" variant, NaN compares as 1) and,
// only when that result is ambiguous between NaN and a positive operand,
// fcmpl/dcmpl (the "l" variant, NaN compares as -1) to tell them apart.
func (b *CodeBuilder) floatCompareToBoolean(k Kind) (*Instruction, error) {
	var zero interface{} = float32(0)
	dupOp, popOp := OpDup, OpPop
	if k == KindDouble {
		zero = float64(0)
		dupOp, popOp = OpDup2, OpPop2
	}

	dupInfo := opTable[dupOp]
	b.list.appendStackOp(dupOp, dupInfo.stackDelta) // ..., v, v

	if _, err := b.LoadConstant(zero); err != nil {
		return nil, err
	}
	if _, err := b.Compare(k, true); err != nil { // ..., v, cmpg(v, 0)
		return nil, err
	}

	negative, zeroCase, ambiguous, done := NewLabel(), NewLabel(), NewLabel(), NewLabel()
	switchInstr, err := b.Switch([]int32{-1, 0, 1}, []*Label{negative, zeroCase, ambiguous}, ambiguous)
	if err != nil {
		return nil, err
	}
	popInfo := opTable[popOp]
	list := b.InstructionList()

	// cmpg < 0: a genuine negative value, never NaN.
	list.BindLabel(negative)
	b.list.appendStackOp(popOp, popInfo.stackDelta) // discard leftover v
	if _, err := b.LoadConstant(int32(1)); err != nil {
		return nil, err
	}
	b.Branch(done)

	// cmpg == 0: exactly zero.
	list.BindLabel(zeroCase)
	b.list.appendStackOp(popOp, popInfo.stackDelta)
	if _, err := b.LoadConstant(int32(0)); err != nil {
		return nil, err
	}
	b.Branch(done)

	// cmpg > 0: either a positive value or NaN; cmpl disambiguates.
	list.BindLabel(ambiguous)
	if _, err := b.LoadConstant(zero); err != nil {
		return nil, err
	}
	if _, err := b.Compare(k, false); err != nil { // ..., cmpl(v, 0)
		return nil, err
	}
	positive := NewLabel()
	b.IfZeroComparison(CmpGT, positive)
	if _, err := b.LoadConstant(int32(0)); err != nil { // cmpl < 0: NaN
		return nil, err
	}
	b.Branch(done)

	list.BindLabel(positive)
	if _, err := b.LoadConstant(int32(1)); err != nil {
		return nil, err
	}
	b.Branch(done)

	list.BindLabel(done)
	return switchInstr, nil
}

func (b *CodeBuilder) box(from, to *Descriptor) (*Instruction, error) {
	w, ok := boxedWrapper[from.Kind()]
	if !ok {
		return nil, fmt.Errorf("jclass: convert: %s has no boxed wrapper", from)
	}
	wrapperType := ObjectDescriptor(w.class)
	desc, err := NewMethodDescriptor(wrapperType, []*Descriptor{from})
	if err != nil {
		return nil, err
	}
	return b.InvokeStatic(wrapperType, w.valueOf, desc)
}

func (b *CodeBuilder) unbox(from, to *Descriptor) (*Instruction, error) {
	w, ok := boxedWrapper[to.Kind()]
	if !ok {
		return nil, fmt.Errorf("jclass: convert: %s has no boxed wrapper", to)
	}
	wrapperType := ObjectDescriptor(w.class)
	desc, err := NewMethodDescriptor(to, nil)
	if err != nil {
		return nil, err
	}
	return b.InvokeVirtual(wrapperType, w.accessor, desc)
}
