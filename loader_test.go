// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestResolveInnerClassesDedupsCycles(t *testing.T) {
	outer, err := NewClassfile(Java6, ObjectDescriptor("generated.Outer"), ObjectDescriptor("java.lang.Object"), ClassPublic)
	if err != nil {
		t.Fatalf("NewClassfile failed: %v", err)
	}
	if err := outer.AddInnerClass(ObjectDescriptor("generated.Outer$Inner"), ObjectDescriptor("generated.Outer"), "Inner", ClassPublic); err != nil {
		t.Fatalf("AddInnerClass failed: %v", err)
	}

	inner, err := NewClassfile(Java6, ObjectDescriptor("generated.Outer$Inner"), ObjectDescriptor("java.lang.Object"), ClassPublic)
	if err != nil {
		t.Fatalf("NewClassfile failed: %v", err)
	}
	// Inner references Outer back, modeling the inner-loads-outer-loads-inner cycle.
	if err := inner.AddInnerClass(ObjectDescriptor("generated.Outer$Inner"), ObjectDescriptor("generated.Outer"), "Inner", ClassPublic); err != nil {
		t.Fatalf("AddInnerClass failed: %v", err)
	}
	innerBytes, err := inner.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}

	calls := 0
	loader := func(internalName string) (io.Reader, bool) {
		calls++
		if internalName != "generated/Outer$Inner" {
			return nil, false
		}
		return bytes.NewReader(innerBytes), true
	}

	resolved, err := ResolveInnerClasses(outer, loader, nil, nil)
	if err != nil {
		t.Fatalf("ResolveInnerClasses failed: %v", err)
	}
	if len(resolved) != 2 {
		t.Errorf("resolved %d classes, want 2 (outer + inner)", len(resolved))
	}
	if calls != 1 {
		t.Errorf("loader invoked %d times, want exactly 1 (cycle must be deduped)", calls)
	}
}

func TestResolveInnerClassesSkipsUnresolvable(t *testing.T) {
	outer, err := NewClassfile(Java6, ObjectDescriptor("generated.Outer"), ObjectDescriptor("java.lang.Object"), ClassPublic)
	if err != nil {
		t.Fatalf("NewClassfile failed: %v", err)
	}
	if err := outer.AddInnerClass(ObjectDescriptor("generated.Outer$Missing"), ObjectDescriptor("generated.Outer"), "Missing", ClassPublic); err != nil {
		t.Fatalf("AddInnerClass failed: %v", err)
	}

	loader := func(internalName string) (io.Reader, bool) { return nil, false }

	resolved, err := ResolveInnerClasses(outer, loader, nil, nil)
	if err != nil {
		t.Fatalf("ResolveInnerClasses returned an error for an unresolvable inner class: %v", err)
	}
	if len(resolved) != 1 {
		t.Errorf("resolved %d classes, want 1 (outer only)", len(resolved))
	}
}

func TestLoaderHandoffReservesUniqueNames(t *testing.T) {
	seen := make(map[string]bool)
	inject := func(name string, classBytes []byte) (interface{}, error) {
		if seen[name] {
			return nil, fmt.Errorf("name %s reused", name)
		}
		seen[name] = true
		return name, nil
	}

	h := NewLoaderHandoff("generated", inject)
	for i := 0; i < 250; i++ {
		name, handle, err := h.Define([]byte{byte(i)})
		if err != nil {
			t.Fatalf("Define failed at %d: %v", i, err)
		}
		if handle != name {
			t.Errorf("handle = %v, want %v", handle, name)
		}
	}
	if len(seen) != 250 {
		t.Errorf("injector saw %d distinct names, want 250", len(seen))
	}
}

func TestLoaderHandoffRotatesGeneration(t *testing.T) {
	inject := func(name string, classBytes []byte) (interface{}, error) { return name, nil }
	h := NewLoaderHandoff("generated", inject)

	var first string
	for i := 0; i < maxDefinitionsPerLoader; i++ {
		name, _, err := h.Define(nil)
		if err != nil {
			t.Fatalf("Define failed: %v", err)
		}
		if i == 0 {
			first = name
		}
	}
	last, _, err := h.Define(nil)
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	if first == last {
		t.Errorf("expected the generation to rotate after %d definitions", maxDefinitionsPerLoader)
	}
	if want := fmt.Sprintf("generated$1$%d", maxDefinitionsPerLoader+1); last != want {
		t.Errorf("definition %d got name %q, want %q (generation 1)", maxDefinitionsPerLoader+1, last, want)
	}
}

func TestLoaderHandoffPropagatesInjectorError(t *testing.T) {
	wantErr := errors.New("boom")
	inject := func(name string, classBytes []byte) (interface{}, error) { return nil, wantErr }
	h := NewLoaderHandoff("generated", inject)

	if _, _, err := h.Define(nil); !errors.Is(err, wantErr) {
		t.Errorf("Define error = %v, want %v", err, wantErr)
	}
}
