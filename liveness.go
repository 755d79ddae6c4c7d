// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

// LocalVariable is a declared local of one method: either a pinned
// parameter (including the implicit receiver of an instance method) or
// a variable introduced by the code builder, per spec.md §3 "Local
// variable".
type LocalVariable struct {
	index    int // stable declaration-order index within the method
	Name     string
	Type     *Descriptor
	pinned   bool
	register int // -1 until assigned by register allocation

	liveRanges []liveRange // computed by computeLiveness; instruction-sequence-number spans
}

type liveRange struct{ from, to int } // inclusive sequence-number bounds

// Register returns the local variable's assigned register, valid only
// after the owning method's code has been analyzed (emission time).
func (v *LocalVariable) Register() int { return v.register }

// Pinned reports whether v is a method parameter (or receiver), which
// occupies a fixed register and is never reassigned by liveness-driven
// allocation.
func (v *LocalVariable) Pinned() bool { return v.pinned }

// declareParams seeds the parameter locals for a method: register 0 is
// the receiver, typed as the given receiver class, for non-static
// methods. isConstructor is not used: a constructor's receiver enters
// flow analysis typed as its class, not as uninitialized-this;
// subsequent registers are assigned to each parameter type in order,
// double-word types consuming two registers, per spec.md §3's "Local
// variable" invariants.
func declareParams(desc *MethodDescriptor, isStatic, isConstructor bool, receiver *Descriptor) []*LocalVariable {
	var out []*LocalVariable
	reg := 0
	if !isStatic {
		out = append(out, &LocalVariable{index: 0, Name: "this", Type: receiver, pinned: true, register: reg})
		reg++
	}
	for i, p := range desc.ParamTypes {
		v := &LocalVariable{index: len(out), Type: p, pinned: true, register: reg}
		reg += p.Slots()
		out = append(out, v)
		_ = i
	}
	return out
}

// sequence assigns each real instruction a 0-based program-order index,
// used as the liveness/flow analyses' iteration domain. Returns the
// flat slice alongside a lookup from node to index.
func sequence(l *InstructionList) ([]*Instruction, map[*Instruction]int) {
	var seq []*Instruction
	idx := make(map[*Instruction]int)
	l.Each(func(in *Instruction) {
		idx[in] = len(seq)
		seq = append(seq, in)
	})
	return seq, idx
}

// useDefLocal returns the variable used (read) and the variable defined
// (written) by in, or nil for either when in does not touch a local.
func useDefLocal(in *Instruction) (use, def *LocalVariable) {
	if in.kind != instrLocalOp {
		return nil, nil
	}
	switch in.localKind {
	case localLoad, localRet:
		return in.local, nil
	case localStore:
		return nil, in.local
	case localIinc:
		return in.local, in.local
	}
	return nil, nil
}

// computeLiveness runs the backward liveIn/liveOut data-flow fixed point
// described in spec.md §4.3.2, marks dead stores, and records the live
// ranges of every non-pinned local in its liveRanges field so register
// allocation can place them. fallthroughOf provides, for each node, the instruction that
// follows it in program order (nil at the end of the method).
func computeLiveness(l *InstructionList, locals []*LocalVariable) {
	seq, idx := sequence(l)
	n := len(seq)
	if n == 0 {
		return
	}
	liveIn := make([]map[*LocalVariable]bool, n)
	liveOut := make([]map[*LocalVariable]bool, n)
	for i := range seq {
		liveIn[i] = map[*LocalVariable]bool{}
		liveOut[i] = map[*LocalVariable]bool{}
	}

	fallthroughOf := func(i int) *Instruction {
		if i+1 < n {
			return seq[i+1]
		}
		return nil
	}

	// Exception-handler catch entries are successors of every
	// instruction they protect, per spec.md §4.3.2's "catch entries of
	// any wrapping handler".
	handlersOf := make([][]*ExceptionHandler, n)
	for _, h := range l.handlers {
		if h.Start.node == nil || h.End.node == nil {
			continue
		}
		startIdx, endIdx := idx[h.Start.node], idx[h.End.node]
		for i := startIdx; i < endIdx && i < n; i++ {
			handlersOf[i] = append(handlersOf[i], h)
		}
	}

	changed := true
	for changed {
		changed = false
		for i := n - 1; i >= 0; i-- {
			in := seq[i]
			out := map[*LocalVariable]bool{}
			for _, s := range successors(in, fallthroughOf(i)) {
				if s == nil {
					continue
				}
				si := idx[s]
				for v := range liveIn[si] {
					out[v] = true
				}
			}
			for _, h := range handlersOf[i] {
				if h.Catch.node == nil {
					continue
				}
				ci := idx[h.Catch.node]
				for v := range liveIn[ci] {
					out[v] = true
				}
			}

			use, def := useDefLocal(in)
			in1 := map[*LocalVariable]bool{}
			for v := range out {
				if v != def {
					in1[v] = true
				}
			}
			if use != nil {
				in1[use] = true
			}

			if !mapsEqual(liveOut[i], out) {
				liveOut[i] = out
				changed = true
			}
			if !mapsEqual(liveIn[i], in1) {
				liveIn[i] = in1
				changed = true
			}
		}
	}

	// Dead-store elimination: a store whose defined value is not live
	// out of it is replaced by a plain pop/pop2 at emission time.
	for i, in := range seq {
		_, def := useDefLocal(in)
		if def != nil && in.localKind == localStore && !liveOut[i][def] {
			in.dead = true
		}
	}

	// Convert the per-instruction liveIn/liveOut into per-variable live
	// ranges (contiguous index spans), for register allocation and for
	// LocalVariableTable emission.
	byVar := map[*LocalVariable][]int{}
	for i := range seq {
		for v := range liveIn[i] {
			byVar[v] = append(byVar[v], i)
		}
		for v := range liveOut[i] {
			byVar[v] = append(byVar[v], i)
		}
	}
	for _, v := range locals {
		if v.pinned {
			continue
		}
		points := byVar[v]
		v.liveRanges = toRanges(points)
	}
}

func mapsEqual(a, b map[*LocalVariable]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func toRanges(points []int) []liveRange {
	if len(points) == 0 {
		return nil
	}
	sortInts(points)
	var out []liveRange
	start, prev := points[0], points[0]
	for _, p := range points[1:] {
		if p == prev || p == prev+1 {
			prev = p
			continue
		}
		out = append(out, liveRange{start, prev})
		start, prev = p, p
	}
	out = append(out, liveRange{start, prev})
	return out
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func rangesOverlap(a, b []liveRange) bool {
	for _, ra := range a {
		for _, rb := range b {
			if ra.from <= rb.to && rb.from <= ra.to {
				return true
			}
		}
	}
	return false
}

// allocateRegisters implements the first-fit graph-coloring reduction of
// spec.md §4.3.3: pinned variables keep their fixed registers; each
// remaining variable, in declaration order, takes the smallest register
// whose occupant set has no overlapping live range (and, for
// double-word variables, whose next register is free too).
func allocateRegisters(locals []*LocalVariable) int {
	type occupant struct {
		v   *LocalVariable
		reg int
	}
	var placed []occupant
	maxReg := 0

	for _, v := range locals {
		if !v.pinned {
			continue
		}
		placed = append(placed, occupant{v, v.register})
		top := v.register + v.Type.Slots()
		if top > maxReg {
			maxReg = top
		}
	}

	for _, v := range locals {
		if v.pinned {
			continue
		}
		width := v.Type.Slots()
		for reg := 0; ; reg++ {
			conflict := false
			for _, o := range placed {
				oWidth := o.v.Type.Slots()
				if reg >= o.reg+oWidth || o.reg >= reg+width {
					continue // disjoint register ranges, can't conflict
				}
				if rangesOverlap(v.liveRanges, o.v.liveRanges) || o.v.pinned {
					conflict = true
					break
				}
			}
			if !conflict {
				v.register = reg
				placed = append(placed, occupant{v, reg})
				if reg+width > maxReg {
					maxReg = reg + width
				}
				break
			}
		}
	}
	return maxReg
}
