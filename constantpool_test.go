// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import "testing"

func TestConstantPoolDedup(t *testing.T) {
	cp := NewConstantPool()

	a, err := cp.AddUTF8("hello")
	if err != nil {
		t.Fatalf("AddUTF8 failed: %v", err)
	}
	b, err := cp.AddUTF8("hello")
	if err != nil {
		t.Fatalf("AddUTF8 failed: %v", err)
	}
	if a != b {
		t.Errorf("AddUTF8(%q) twice returned distinct indices %d, %d", "hello", a, b)
	}

	c, err := cp.AddUTF8("world")
	if err != nil {
		t.Fatalf("AddUTF8 failed: %v", err)
	}
	if c == a {
		t.Errorf("AddUTF8 for a distinct string returned the same index %d", a)
	}
}

func TestConstantPoolLongTakesTwoSlots(t *testing.T) {
	cp := NewConstantPool()

	before := cp.Size()
	idx, err := cp.AddLong(42)
	if err != nil {
		t.Fatalf("AddLong failed: %v", err)
	}
	after := cp.Size()
	if after-before != 2 {
		t.Errorf("AddLong grew the pool by %d slots, want 2", after-before)
	}

	next, err := cp.AddUTF8("after-the-long")
	if err != nil {
		t.Fatalf("AddUTF8 failed: %v", err)
	}
	if int(next) != int(idx)+2 {
		t.Errorf("constant after a long landed at index %d, want %d", next, idx+2)
	}
}

func TestConstantPoolClassDedupByDescriptor(t *testing.T) {
	cp := NewConstantPool()

	d1 := ObjectDescriptor("java.lang.String")
	d2 := ObjectDescriptor("java.lang.String")

	idx1, err := cp.AddClass(d1)
	if err != nil {
		t.Fatalf("AddClass failed: %v", err)
	}
	idx2, err := cp.AddClass(d2)
	if err != nil {
		t.Fatalf("AddClass failed: %v", err)
	}
	if idx1 != idx2 {
		t.Errorf("AddClass for the same class name returned distinct indices %d, %d", idx1, idx2)
	}
}

func TestConstantPoolGetConstantRejectsPaddingSlot(t *testing.T) {
	cp := NewConstantPool()
	idx, err := cp.AddDouble(3.14)
	if err != nil {
		t.Fatalf("AddDouble failed: %v", err)
	}
	if _, err := cp.GetConstant(idx + 1); err == nil {
		t.Errorf("GetConstant on a double's padding slot succeeded, want an error")
	}
}

func TestConstantPoolOverflow(t *testing.T) {
	cp := NewConstantPool()
	for i := 0; i < 70000; i++ {
		if _, err := cp.AddUTF8(string(rune(i))); err != nil {
			if err != ErrPoolOverflow {
				t.Fatalf("unexpected error at entry %d: %v", i, err)
			}
			return
		}
	}
	t.Fatalf("expected ErrPoolOverflow before 70000 distinct entries")
}
