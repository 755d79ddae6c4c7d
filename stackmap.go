// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

// verificationKind is the tag of one JVM verification_type_info entry.
type verificationKind uint8

const (
	vTop verificationKind = iota
	vInteger
	vFloat
	vLong
	vDouble
	vNull
	vUninitializedThis
	vObject
	vUninitialized
)

// vtype is one operand-stack or local-variable verification type, per
// spec.md §4.3.4. Long and Double each occupy a single vtype entry that
// represents two computational words, matching the JVM's
// verification_type_info encoding.
type vtype struct {
	kind      verificationKind
	className string // for vObject
	newOffset int    // for vUninitialized: the `new` instruction's location
}

func (v vtype) words() int {
	if v.kind == vLong || v.kind == vDouble {
		return 2
	}
	return 1
}

func (v vtype) equal(o vtype) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case vObject:
		return v.className == o.className
	case vUninitialized:
		return v.newOffset == o.newOffset
	default:
		return true
	}
}

func vtypeOf(d *Descriptor) vtype {
	switch d.Kind() {
	case KindInt, KindShort, KindChar, KindByte, KindBoolean:
		return vtype{kind: vInteger}
	case KindFloat:
		return vtype{kind: vFloat}
	case KindLong:
		return vtype{kind: vLong}
	case KindDouble:
		return vtype{kind: vDouble}
	default:
		return vtype{kind: vObject, className: classInternalName(d)}
	}
}

// mergeType implements spec.md §4.3.4's merge rule: identical types merge
// to themselves; null with any reference merges to the other; two
// different references merge to a common reference (Object, chosen
// per spec.md §9's accepted simplification); any mismatch involving a
// primitive or top yields top.
func mergeType(a, b vtype) vtype {
	if a.equal(b) {
		return a
	}
	if a.kind == vNull && isReferenceKind(b.kind) {
		return b
	}
	if b.kind == vNull && isReferenceKind(a.kind) {
		return a
	}
	if isReferenceKind(a.kind) && isReferenceKind(b.kind) {
		return vtype{kind: vObject, className: "java/lang/Object"}
	}
	return vtype{kind: vTop}
}

func isReferenceKind(k verificationKind) bool {
	switch k {
	case vNull, vObject, vUninitialized, vUninitializedThis:
		return true
	}
	return false
}

// frame is the operand-stack/local-variable state at one program point.
type frame struct {
	stack  []vtype
	locals []vtype // index i is register i; Long/Double take one slot here, register i+1 is vTop
}

func (f frame) clone() frame {
	return frame{stack: append([]vtype(nil), f.stack...), locals: append([]vtype(nil), f.locals...)}
}

func (f frame) depth() int {
	d := 0
	for _, v := range f.stack {
		d += v.words()
	}
	return d
}

func mergeFrame(a, b frame) (frame, bool) {
	if len(a.stack) != len(b.stack) {
		return a, false // InconsistentFlow; caller records an anomaly
	}
	out := frame{stack: make([]vtype, len(a.stack)), locals: make([]vtype, maxInt(len(a.locals), len(b.locals)))}
	for i := range a.stack {
		out.stack[i] = mergeType(a.stack[i], b.stack[i])
	}
	for i := range out.locals {
		va, vb := vtype{kind: vTop}, vtype{kind: vTop}
		if i < len(a.locals) {
			va = a.locals[i]
		}
		if i < len(b.locals) {
			vb = b.locals[i]
		}
		out.locals[i] = mergeType(va, vb)
	}
	return out, true
}

// analyzeFlow walks the instruction list in program order from the
// first instruction, following fall-through, branch, and exception-
// handler edges, merging state at every point already visited, per
// spec.md §4.3.4. It records, on each Instruction, the verification
// state at its entry (stackBefore/localsBefore), and returns the
// method's maxStack plus whether any join was inconsistent (an
// InconsistentFlow anomaly, not a fatal error per spec.md §7).
func analyzeFlow(l *InstructionList, entry frame) (maxStack int, inconsistent bool) {
	seq, idx := sequence(l)
	n := len(seq)
	if n == 0 {
		return 0, false
	}
	visited := make([]bool, n)
	states := make([]frame, n)

	fallthroughOf := func(i int) *Instruction {
		if i+1 < n {
			return seq[i+1]
		}
		return nil
	}

	type work struct {
		i int
		f frame
	}
	queue := []work{{0, entry}}
	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		i, f := w.i, w.f

		if visited[i] {
			merged, ok := mergeFrame(states[i], f)
			if !ok {
				inconsistent = true
				continue
			}
			if framesEqual(merged, states[i]) {
				continue
			}
			states[i] = merged
		} else {
			visited[i] = true
			states[i] = f
		}

		in := seq[i]
		in.stackBefore = append([]vtype(nil), states[i].stack...)
		in.localsBefore = append([]vtype(nil), states[i].locals...)

		if d := states[i].depth(); d > maxStack {
			maxStack = d
		}

		out := stepFrame(in, states[i])
		if d := out.depth(); d > maxStack {
			maxStack = d
		}

		for _, s := range successors(in, fallthroughOf(i)) {
			if s == nil {
				continue
			}
			queue = append(queue, work{idx[s], out.clone()})
		}
		for _, h := range in.handlers {
			if h.Catch.node == nil {
				continue
			}
			hf := out.clone()
			hf.stack = []vtype{catchType(h)}
			queue = append(queue, work{idx[h.Catch.node], hf})
		}
	}
	return maxStack, inconsistent
}

func catchType(h *ExceptionHandler) vtype {
	if h.CatchType == nil {
		return vtype{kind: vObject, className: "java/lang/Throwable"}
	}
	return vtypeOf(h.CatchType)
}

func framesEqual(a, b frame) bool {
	if len(a.stack) != len(b.stack) || len(a.locals) != len(b.locals) {
		return false
	}
	for i := range a.stack {
		if !a.stack[i].equal(b.stack[i]) {
			return false
		}
	}
	for i := range a.locals {
		if !a.locals[i].equal(b.locals[i]) {
			return false
		}
	}
	return true
}

// stepFrame computes the operand-stack/local state immediately after in
// executes, given its entry state cur. It does not attempt full
// bytecode-level type precision for every opcode; arithmetic and
// conversion opcodes push/pop using their declared stackDelta and the
// types codebuilder.go already knows statically, which is sufficient to
// drive the merge algorithm and maxStack computation per spec.md §4.3.4.
func stepFrame(in *Instruction, cur frame) frame {
	out := cur.clone()
	switch in.kind {
	case instrLocalOp:
		switch in.localKind {
		case localLoad:
			out.stack = append(out.stack, localVtype(out.locals, in.local))
		case localStore:
			if !in.dead { // a dead store is emitted as pop/pop2 and writes no register
				setLocal(&out.locals, in.local.register, vtypeOf(in.local.Type))
			}
			out.stack = popWords(out.stack, in.local.Type.Slots())
		case localRet, localIinc:
			// no stack effect
		}
		return out
	case instrNewObject:
		out.stack = append(out.stack, vtype{kind: vUninitialized, newOffset: in.location})
		return out
	case instrLoadConst:
		if in.resultType != nil {
			out.stack = append(out.stack, vtypeOf(in.resultType))
		} else if in.ldcWide {
			out.stack = append(out.stack, vtype{kind: vLong})
		} else {
			out.stack = append(out.stack, vtype{kind: vObject, className: "java/lang/Object"})
		}
		return out
	case instrStackOp:
		out.stack = stepStackOp(in.opcode, out.stack)
		return out
	case instrConstOp, instrInvoke:
		out.stack = popWords(out.stack, in.popWords)
		if in.resultType != nil && !in.resultType.IsVoid() {
			out.stack = append(out.stack, vtypeOf(in.resultType))
		} else if in.resultNull {
			out.stack = append(out.stack, vtype{kind: vNull})
		}
		return out
	}
	if in.resultNull {
		out.stack = append(out.stack, vtype{kind: vNull})
		return out
	}
	// Generic path for arithmetic/conversion/comparison opcodes, whose
	// pushed type (if any) is always a primitive matching the opcode's
	// own numeric family; reference-producing instructions are always
	// handled by one of the explicit cases above.
	if in.stackDelta < 0 {
		out.stack = popWords(out.stack, -in.stackDelta)
	} else if in.stackDelta > 0 {
		k := primitivePushKind(in.opcode)
		for w := 0; w < in.stackDelta; {
			t := vtype{kind: k}
			out.stack = append(out.stack, t)
			w += t.words()
		}
	}
	return out
}

// primitivePushKind returns the verification kind a fixed-result simple
// opcode pushes; used only by the generic arithmetic/conversion path in
// stepFrame, which never handles reference-producing opcodes.
func primitivePushKind(op Opcode) verificationKind {
	switch op {
	case OpLconst0, OpLconst1, OpLadd, OpLsub, OpLmul, OpLdiv, OpLrem, OpLneg,
		OpLshl, OpLshr, OpLushr, OpLand, OpLor, OpLxor, OpI2l, OpF2l, OpD2l,
		OpLaload:
		return vLong
	case OpFconst0, OpFconst1, OpFconst2, OpFadd, OpFsub, OpFmul, OpFdiv, OpFrem, OpFneg,
		OpI2f, OpL2f, OpD2f, OpFaload:
		return vFloat
	case OpDconst0, OpDconst1, OpDadd, OpDsub, OpDmul, OpDdiv, OpDrem, OpDneg,
		OpI2d, OpL2d, OpF2d, OpDaload:
		return vDouble
	default:
		return vInteger
	}
}

// stepStackOp applies pop/pop2/dup*/swap to the actual stack contents,
// since these opcodes duplicate or reorder whatever values are already
// present rather than producing a type of their own.
func stepStackOp(op Opcode, stack []vtype) []vtype {
	n := len(stack)
	switch op {
	case OpPop:
		if n > 0 {
			return stack[:n-1]
		}
	case OpPop2:
		return popWords(stack, 2)
	case OpDup:
		if n > 0 {
			return append(stack, stack[n-1])
		}
	case OpDupX1:
		if n >= 2 {
			v := stack[n-1]
			out := append([]vtype(nil), stack[:n-2]...)
			out = append(out, v, stack[n-2], v)
			return out
		}
	case OpDupX2:
		if n >= 3 {
			v := stack[n-1]
			out := append([]vtype(nil), stack[:n-3]...)
			out = append(out, v, stack[n-3], stack[n-2], v)
			return out
		}
	case OpDup2:
		if n >= 2 {
			return append(stack, stack[n-2], stack[n-1])
		}
	case OpDup2X1:
		if n >= 3 {
			a, b := stack[n-2], stack[n-1]
			out := append([]vtype(nil), stack[:n-3]...)
			out = append(out, b, a, stack[n-3], a, b)
			return out
		}
	case OpDup2X2:
		if n >= 4 {
			a, b := stack[n-2], stack[n-1]
			out := append([]vtype(nil), stack[:n-4]...)
			out = append(out, b, a, stack[n-4], stack[n-3], a, b)
			return out
		}
	case OpSwap:
		if n >= 2 {
			out := append([]vtype(nil), stack...)
			out[n-1], out[n-2] = out[n-2], out[n-1]
			return out
		}
	}
	return stack
}

func localVtype(locals []vtype, v *LocalVariable) vtype {
	if v.register < len(locals) {
		return locals[v.register]
	}
	return vtypeOf(v.Type)
}

func setLocal(locals *[]vtype, reg int, t vtype) {
	for len(*locals) <= reg+t.words()-1 {
		*locals = append(*locals, vtype{kind: vTop})
	}
	(*locals)[reg] = t
	if t.words() == 2 {
		(*locals)[reg+1] = vtype{kind: vTop}
	}
}

func popWords(stack []vtype, words int) []vtype {
	for words > 0 && len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		words -= top.words()
	}
	return stack
}
