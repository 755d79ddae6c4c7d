// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package opcodetab carries a standalone opcode-to-mnemonic/operand-shape
// table, separate from the jclass package's own opInfo: that table only
// carries what instruction-list stack-depth tracking needs, while this one
// exists purely to drive raw bytecode disassembly in jclassdump.
package opcodetab

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders raw method bytecode as one mnemonic line per
// instruction, skipping operand bytes per each opcode's OperandFormat. It
// does not resolve constant pool references or symbolic branch targets;
// jclassdump prints raw operand values alongside the offset instead.
func Disassemble(code []byte) []string {
	var lines []string
	for pc := 0; pc < len(code); {
		op := code[pc]
		e, ok := Table[op]
		if !ok {
			lines = append(lines, fmt.Sprintf("%6d: op_%#02x (unknown)", pc, op))
			pc++
			continue
		}

		start := pc
		pc++
		var operand string
		switch e.OperandFormat {
		case "none":
		case "byte", "local1", "cpref1":
			if pc < len(code) {
				operand = fmt.Sprintf(" %d", code[pc])
			}
			pc++
		case "short", "cpref2", "branch2":
			if pc+2 <= len(code) {
				v := binary.BigEndian.Uint16(code[pc : pc+2])
				operand = fmt.Sprintf(" %d", v)
			}
			pc += 2
		case "branch4":
			if pc+4 <= len(code) {
				v := binary.BigEndian.Uint32(code[pc : pc+4])
				operand = fmt.Sprintf(" %d", int32(v))
			}
			pc += 4
		case "iinc":
			if pc+2 <= len(code) {
				operand = fmt.Sprintf(" %d %d", code[pc], int8(code[pc+1]))
			}
			pc += 2
		case "invokeif":
			if pc+4 <= len(code) {
				idx := binary.BigEndian.Uint16(code[pc : pc+2])
				operand = fmt.Sprintf(" %d %d", idx, code[pc+2])
			}
			pc += 4
		case "multianewarray":
			if pc+3 <= len(code) {
				idx := binary.BigEndian.Uint16(code[pc : pc+2])
				operand = fmt.Sprintf(" %d %d", idx, code[pc+2])
			}
			pc += 3
		case "wide":
			// wide prefixes iload/istore/... (local2) or iinc (local2+short);
			// jclassdump only needs to not desync the offsets that follow.
			if pc < len(code) && code[pc] == 0x84 {
				pc += 5
			} else {
				pc += 3
			}
		case "switch":
			pad := (4 - (pc % 4)) % 4
			pc += pad
			if pc+4 > len(code) {
				pc = len(code)
				break
			}
			def := int32(binary.BigEndian.Uint32(code[pc : pc+4]))
			pc += 4
			if e.Mnemonic == "tableswitch" {
				if pc+8 > len(code) {
					pc = len(code)
					break
				}
				low := int32(binary.BigEndian.Uint32(code[pc : pc+4]))
				high := int32(binary.BigEndian.Uint32(code[pc+4 : pc+8]))
				pc += 8
				n := int(high-low) + 1
				operand = fmt.Sprintf(" default=%d low=%d high=%d", def, low, high)
				pc += n * 4
			} else {
				if pc+4 > len(code) {
					pc = len(code)
					break
				}
				npairs := int(binary.BigEndian.Uint32(code[pc : pc+4]))
				pc += 4
				operand = fmt.Sprintf(" default=%d npairs=%d", def, npairs)
				pc += npairs * 8
			}
		default:
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%6d: %s%s", start, e.Mnemonic, operand)
		lines = append(lines, b.String())
	}
	return lines
}
