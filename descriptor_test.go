// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import "testing"

func TestDescriptorInternalForm(t *testing.T) {
	tests := []struct {
		name string
		d    *Descriptor
		want string
	}{
		{"int", Int, "I"},
		{"boolean", Boolean, "Z"},
		{"void", Void, "V"},
		{"object", ObjectDescriptor("java.lang.String"), "Ljava/lang/String;"},
		{"array of int", ArrayDescriptor(Int), "[I"},
		{"array of object", ArrayDescriptor(ObjectDescriptor("java.lang.String")), "[Ljava/lang/String;"},
		{"2d array", ArrayDescriptor(ArrayDescriptor(Int)), "[[I"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.InternalForm(); got != tt.want {
				t.Errorf("InternalForm() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescriptorInterning(t *testing.T) {
	a := ObjectDescriptor("java.lang.Object")
	b := ObjectDescriptor("java.lang.Object")
	if a != b {
		t.Errorf("ObjectDescriptor(%q) returned distinct pointers, want shared identity", "java.lang.Object")
	}

	arrA := ArrayDescriptor(Int)
	arrB := ArrayDescriptor(Int)
	if arrA != arrB {
		t.Errorf("ArrayDescriptor(Int) returned distinct pointers, want shared identity")
	}
}

func TestFromInternalDescriptorRoundTrip(t *testing.T) {
	tests := []string{"I", "Z", "V", "Ljava/lang/String;", "[I", "[[Ljava/lang/Object;"}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			d, err := FromInternalDescriptor(s)
			if err != nil {
				t.Fatalf("FromInternalDescriptor(%q) failed: %v", s, err)
			}
			if got := d.InternalForm(); got != s {
				t.Errorf("round trip: got %q, want %q", got, s)
			}
		})
	}
}

func TestFromInternalDescriptorRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "Q", "[", "Lmissing.semicolon"} {
		if _, err := FromInternalDescriptor(s); err == nil {
			t.Errorf("FromInternalDescriptor(%q) = nil error, want one", s)
		}
	}
}

func TestMethodDescriptorString(t *testing.T) {
	md, err := NewMethodDescriptor(Void, []*Descriptor{ObjectDescriptor("java.lang.String"), Int})
	if err != nil {
		t.Fatalf("NewMethodDescriptor failed: %v", err)
	}
	want := "(Ljava/lang/String;I)V"
	if got := md.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	parsed, err := ParseMethodDescriptor(want)
	if err != nil {
		t.Fatalf("ParseMethodDescriptor(%q) failed: %v", want, err)
	}
	if got := parsed.String(); got != want {
		t.Errorf("round trip: got %q, want %q", got, want)
	}
}

func TestDescriptorSlots(t *testing.T) {
	if got := Long.Slots(); got != 2 {
		t.Errorf("Long.Slots() = %d, want 2", got)
	}
	if got := Double.Slots(); got != 2 {
		t.Errorf("Double.Slots() = %d, want 2", got)
	}
	if got := Int.Slots(); got != 1 {
		t.Errorf("Int.Slots() = %d, want 1", got)
	}
	if got := ObjectDescriptor("java.lang.Object").Slots(); got != 1 {
		t.Errorf("Object.Slots() = %d, want 1", got)
	}
}
