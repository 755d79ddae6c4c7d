// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package opcodetab

import (
	"strings"
	"testing"
)

func TestDisassembleSimpleSequence(t *testing.T) {
	// iconst_0 (0x03), istore_1 (0x3c), return (0xb1)
	code := []byte{0x03, 0x3c, 0xb1}
	lines := Disassemble(code)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %v", len(lines), lines)
	}
	for i, want := range []string{"iconst_0", "istore_1", "return"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want to contain %q", i, lines[i], want)
		}
	}
}

func TestDisassembleWithOperands(t *testing.T) {
	// bipush 42 (0x10 0x2a), ifeq +5 (0x99 0x00 0x05)
	code := []byte{0x10, 0x2a, 0x99, 0x00, 0x05}
	lines := Disassemble(code)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "bipush") || !strings.Contains(lines[0], "42") {
		t.Errorf("line 0 = %q, want bipush with operand 42", lines[0])
	}
	if !strings.Contains(lines[1], "ifeq") || !strings.Contains(lines[1], "5") {
		t.Errorf("line 1 = %q, want ifeq with operand 5", lines[1])
	}
}

func TestDisassembleUnknownOpcode(t *testing.T) {
	lines := Disassemble([]byte{0xff})
	if len(lines) != 1 || !strings.Contains(lines[0], "unknown") {
		t.Errorf("got %v, want a single unknown-opcode line", lines)
	}
}
