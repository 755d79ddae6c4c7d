// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"bytes"
	"testing"
)

func TestEmptyPublicClassRoundTrip(t *testing.T) {
	cf, err := NewClassfile(Java6,
		ObjectDescriptor("generated.Empty"),
		ObjectDescriptor("java.lang.Object"),
		ClassPublic|ClassSuper)
	if err != nil {
		t.Fatalf("NewClassfile failed: %v", err)
	}

	raw, err := cf.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if len(raw) < 4 || raw[0] != 0xca || raw[1] != 0xfe || raw[2] != 0xba || raw[3] != 0xbe {
		t.Fatalf("magic mismatch: % x", raw[:4])
	}

	parsed, err := OpenBytes(raw, nil)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	if parsed.ThisClass.DottedName() != "generated.Empty" {
		t.Errorf("ThisClass = %q, want generated.Empty", parsed.ThisClass.DottedName())
	}
	if parsed.SuperClass.DottedName() != "java.lang.Object" {
		t.Errorf("SuperClass = %q, want java.lang.Object", parsed.SuperClass.DottedName())
	}
	if parsed.Modifiers&ClassPublic == 0 {
		t.Errorf("Modifiers = %#04x, want ClassPublic set", parsed.Modifiers)
	}
}

func TestHelloWorldRoundTrip(t *testing.T) {
	cf, err := NewClassfile(Java6,
		ObjectDescriptor("generated.HelloWorld"),
		ObjectDescriptor("java.lang.Object"),
		ClassPublic|ClassSuper)
	if err != nil {
		t.Fatalf("NewClassfile failed: %v", err)
	}

	objectInit, err := NewMethodDescriptor(Void, nil)
	if err != nil {
		t.Fatalf("NewMethodDescriptor failed: %v", err)
	}
	ctor := cf.AddMethod("<init>", objectInit, MethodPublic)
	ctorBody, err := ctor.Code(cf.Pool, cf.ThisClass)
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	ctorBody.LoadLocal(ctorBody.Param(0))
	if _, err := ctorBody.InvokeConstructor(ObjectDescriptor("java.lang.Object"), objectInit); err != nil {
		t.Fatalf("InvokeConstructor failed: %v", err)
	}
	ctorBody.ReturnVoid()

	mainDesc, err := NewMethodDescriptor(Void, []*Descriptor{ArrayDescriptor(ObjectDescriptor("java.lang.String"))})
	if err != nil {
		t.Fatalf("NewMethodDescriptor failed: %v", err)
	}
	main := cf.AddMethod("main", mainDesc, MethodPublic|MethodStatic)
	body, err := main.Code(cf.Pool, nil)
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	printlnDesc, err := NewMethodDescriptor(Void, []*Descriptor{ObjectDescriptor("java.lang.String")})
	if err != nil {
		t.Fatalf("NewMethodDescriptor failed: %v", err)
	}
	if _, err := body.LoadField(ObjectDescriptor("java.lang.System"), "out", ObjectDescriptor("java.io.PrintStream"), true); err != nil {
		t.Fatalf("LoadField failed: %v", err)
	}
	if _, err := body.LoadConstant("Hello, world!"); err != nil {
		t.Fatalf("LoadConstant failed: %v", err)
	}
	if _, err := body.InvokeVirtual(ObjectDescriptor("java.io.PrintStream"), "println", printlnDesc); err != nil {
		t.Fatalf("InvokeVirtual failed: %v", err)
	}
	body.ReturnVoid()

	raw, err := cf.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}

	parsed, err := OpenBytes(raw, nil)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	if len(parsed.Methods) != 2 {
		t.Fatalf("got %d methods, want 2", len(parsed.Methods))
	}

	var foundMain bool
	for _, m := range parsed.Methods {
		if m.Name == "main" {
			foundMain = true
			if m.Modifiers&MethodStatic == 0 {
				t.Errorf("main method missing MethodStatic")
			}
		}
	}
	if !foundMain {
		t.Errorf("parsed classfile has no main method")
	}
}

func TestDeterministicSerialization(t *testing.T) {
	build := func() *Classfile {
		cf, err := NewClassfile(Java6,
			ObjectDescriptor("generated.Det"),
			ObjectDescriptor("java.lang.Object"),
			ClassPublic|ClassSuper)
		if err != nil {
			t.Fatalf("NewClassfile failed: %v", err)
		}
		cf.AddField("x", Int, 0)
		return cf
	}

	a, err := build().Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	b, err := build().Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("two identical build sequences produced different bytes")
	}
}
