// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import "testing"

// buildBranchingMethod builds:
//
//	if (arg0 != 0) { iconst_1 } else { iconst_0 }
//	ireturn
//
// which requires a join at the ireturn with consistent stack depth from
// both arms, and (at version 50+) a StackMapTable frame at the join.
func buildBranchingMethod(t *testing.T, cf *Classfile) *Method {
	t.Helper()
	desc, err := NewMethodDescriptor(Int, []*Descriptor{Int})
	if err != nil {
		t.Fatalf("NewMethodDescriptor failed: %v", err)
	}
	m := cf.AddMethod("choose", desc, MethodPublic|MethodStatic)
	b, err := m.Code(cf.Pool, nil)
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}

	elseLabel := NewLabel()
	joinLabel := NewLabel()

	b.LoadLocal(b.Param(0))
	b.IfZeroComparison(CmpEQ, elseLabel)
	if _, err := b.LoadConstant(int32(1)); err != nil {
		t.Fatalf("LoadConstant failed: %v", err)
	}
	b.Branch(joinLabel)
	b.InstructionList().BindLabel(elseLabel)
	if _, err := b.LoadConstant(int32(0)); err != nil {
		t.Fatalf("LoadConstant failed: %v", err)
	}
	b.InstructionList().BindLabel(joinLabel)
	b.ReturnValue(Int)
	return m
}

func TestBranchJoinRoundTrip(t *testing.T) {
	cf, err := NewClassfile(Java6, ObjectDescriptor("generated.Branch"), ObjectDescriptor("java.lang.Object"), ClassPublic)
	if err != nil {
		t.Fatalf("NewClassfile failed: %v", err)
	}
	buildBranchingMethod(t, cf)

	raw, err := cf.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}

	parsed, err := OpenBytes(raw, nil)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	if len(parsed.Methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(parsed.Methods))
	}
	m := parsed.Methods[0]
	var code *CodeAttribute
	for _, a := range m.Attributes {
		if a.Code != nil {
			code = a.Code
		}
	}
	if code == nil {
		t.Fatalf("parsed method has no Code attribute")
	}
	if code.MaxStack < 1 {
		t.Errorf("MaxStack = %d, want at least 1", code.MaxStack)
	}

	var hasStackMap bool
	for _, a := range code.Attrs {
		if a.StackMapTable != nil {
			hasStackMap = true
		}
	}
	if !hasStackMap {
		t.Errorf("branching method targeting Java 1.6 has no StackMapTable attribute")
	}
}

func TestSwitchSelection(t *testing.T) {
	cf, err := NewClassfile(Java6, ObjectDescriptor("generated.Switcher"), ObjectDescriptor("java.lang.Object"), ClassPublic)
	if err != nil {
		t.Fatalf("NewClassfile failed: %v", err)
	}
	desc, err := NewMethodDescriptor(Int, []*Descriptor{Int})
	if err != nil {
		t.Fatalf("NewMethodDescriptor failed: %v", err)
	}
	m := cf.AddMethod("pick", desc, MethodPublic|MethodStatic)
	b, err := m.Code(cf.Pool, nil)
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}

	caseOne := NewLabel()
	caseTwo := NewLabel()
	def := NewLabel()
	join := NewLabel()

	b.LoadLocal(b.Param(0))
	if _, err := b.Switch([]int32{1, 2}, []*Label{caseOne, caseTwo}, def); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	b.InstructionList().BindLabel(caseOne)
	if _, err := b.LoadConstant(int32(10)); err != nil {
		t.Fatalf("LoadConstant failed: %v", err)
	}
	b.Branch(join)
	b.InstructionList().BindLabel(caseTwo)
	if _, err := b.LoadConstant(int32(20)); err != nil {
		t.Fatalf("LoadConstant failed: %v", err)
	}
	b.Branch(join)
	b.InstructionList().BindLabel(def)
	if _, err := b.LoadConstant(int32(-1)); err != nil {
		t.Fatalf("LoadConstant failed: %v", err)
	}
	b.InstructionList().BindLabel(join)
	b.ReturnValue(Int)

	raw, err := cf.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	parsed, err := OpenBytes(raw, nil)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	var code []byte
	for _, a := range parsed.Methods[0].Attributes {
		if a.Code != nil {
			code = a.Code.Code
		}
	}
	// iload_0 occupies offset 0; keys {1, 2} cost 12+4*2 = 20 bytes as a
	// tableswitch against 8+8*2 = 24 as a lookupswitch.
	if len(code) < 2 || code[1] != byte(OpTableswitch) {
		t.Errorf("switch over keys {1, 2} was not emitted as tableswitch (code = % x)", code)
	}
}

func TestDeadStoreDoesNotBlockSerialization(t *testing.T) {
	cf, err := NewClassfile(Java6, ObjectDescriptor("generated.DeadStore"), ObjectDescriptor("java.lang.Object"), ClassPublic)
	if err != nil {
		t.Fatalf("NewClassfile failed: %v", err)
	}
	desc, err := NewMethodDescriptor(Void, nil)
	if err != nil {
		t.Fatalf("NewMethodDescriptor failed: %v", err)
	}
	m := cf.AddMethod("unused", desc, MethodPublic|MethodStatic)
	b, err := m.Code(cf.Pool, nil)
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}

	dead := b.DeclareLocal("dead", Int)
	if _, err := b.LoadConstant(int32(7)); err != nil {
		t.Fatalf("LoadConstant failed: %v", err)
	}
	b.StoreLocal(dead)
	b.ReturnVoid()

	if _, err := cf.Bytes(); err != nil {
		t.Fatalf("Bytes failed for a method with a dead local store: %v", err)
	}
}
