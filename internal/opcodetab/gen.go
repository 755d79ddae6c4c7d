// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

//go:build ignore

// jclassdump and other tools need a byte -> mnemonic/operand-shape table
// for disassembly, separate from opcode.go's opInfo (which only carries
// what the instruction list needs for stack-depth bookkeeping). This
// generator regenerates table_gen.go from the literal list below so the
// two tables can't silently drift out of byte-for-byte sync by hand edits.
//
// Run with: go run gen.go
package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"text/template"

	"golang.org/x/tools/imports"
)

// operand shapes a disassembler needs to know how many bytes to skip and
// how to render them; this is coarser than opcode.go's fixedBytes because
// it also covers the variable-length tableswitch/lookupswitch forms.
const (
	opNone     = "none"     // no operand bytes
	opByte     = "byte"     // one immediate byte (bipush, newarray)
	opShort    = "short"    // two-byte immediate (sipush)
	opLocal1   = "local1"   // one-byte local variable index
	opLocal2   = "local2"   // two-byte local variable index (wide prefix)
	opCpRef1   = "cpref1"   // one-byte constant pool index (ldc)
	opCpRef2   = "cpref2"   // two-byte constant pool index
	opBranch2  = "branch2"  // two-byte branch offset
	opBranch4  = "branch4"  // four-byte branch offset (goto_w, jsr_w)
	opSwitch   = "switch"   // tableswitch/lookupswitch, variable length + padding
	opInvokeIf = "invokeif" // invokeinterface: cpref2 + count byte + 0 byte
	opMultiA   = "multianewarray"
)

type entry struct {
	Op            byte
	Mnemonic      string
	OperandFormat string
}

var table = []entry{
	{0x00, "nop", opNone}, {0x01, "aconst_null", opNone},
	{0x02, "iconst_m1", opNone}, {0x03, "iconst_0", opNone}, {0x04, "iconst_1", opNone},
	{0x05, "iconst_2", opNone}, {0x06, "iconst_3", opNone}, {0x07, "iconst_4", opNone}, {0x08, "iconst_5", opNone},
	{0x09, "lconst_0", opNone}, {0x0a, "lconst_1", opNone},
	{0x0b, "fconst_0", opNone}, {0x0c, "fconst_1", opNone}, {0x0d, "fconst_2", opNone},
	{0x0e, "dconst_0", opNone}, {0x0f, "dconst_1", opNone},
	{0x10, "bipush", opByte}, {0x11, "sipush", opShort},
	{0x12, "ldc", opCpRef1}, {0x13, "ldc_w", opCpRef2}, {0x14, "ldc2_w", opCpRef2},
	{0x15, "iload", opLocal1}, {0x16, "lload", opLocal1}, {0x17, "fload", opLocal1},
	{0x18, "dload", opLocal1}, {0x19, "aload", opLocal1},
	{0x1a, "iload_0", opNone}, {0x1b, "iload_1", opNone}, {0x1c, "iload_2", opNone}, {0x1d, "iload_3", opNone},
	{0x1e, "lload_0", opNone}, {0x1f, "lload_1", opNone}, {0x20, "lload_2", opNone}, {0x21, "lload_3", opNone},
	{0x22, "fload_0", opNone}, {0x23, "fload_1", opNone}, {0x24, "fload_2", opNone}, {0x25, "fload_3", opNone},
	{0x26, "dload_0", opNone}, {0x27, "dload_1", opNone}, {0x28, "dload_2", opNone}, {0x29, "dload_3", opNone},
	{0x2a, "aload_0", opNone}, {0x2b, "aload_1", opNone}, {0x2c, "aload_2", opNone}, {0x2d, "aload_3", opNone},
	{0x2e, "iaload", opNone}, {0x2f, "laload", opNone}, {0x30, "faload", opNone}, {0x31, "daload", opNone},
	{0x32, "aaload", opNone}, {0x33, "baload", opNone}, {0x34, "caload", opNone}, {0x35, "saload", opNone},
	{0x36, "istore", opLocal1}, {0x37, "lstore", opLocal1}, {0x38, "fstore", opLocal1},
	{0x39, "dstore", opLocal1}, {0x3a, "astore", opLocal1},
	{0x3b, "istore_0", opNone}, {0x3c, "istore_1", opNone}, {0x3d, "istore_2", opNone}, {0x3e, "istore_3", opNone},
	{0x3f, "lstore_0", opNone}, {0x40, "lstore_1", opNone}, {0x41, "lstore_2", opNone}, {0x42, "lstore_3", opNone},
	{0x43, "fstore_0", opNone}, {0x44, "fstore_1", opNone}, {0x45, "fstore_2", opNone}, {0x46, "fstore_3", opNone},
	{0x47, "dstore_0", opNone}, {0x48, "dstore_1", opNone}, {0x49, "dstore_2", opNone}, {0x4a, "dstore_3", opNone},
	{0x4b, "astore_0", opNone}, {0x4c, "astore_1", opNone}, {0x4d, "astore_2", opNone}, {0x4e, "astore_3", opNone},
	{0x4f, "iastore", opNone}, {0x50, "lastore", opNone}, {0x51, "fastore", opNone}, {0x52, "dastore", opNone},
	{0x53, "aastore", opNone}, {0x54, "bastore", opNone}, {0x55, "castore", opNone}, {0x56, "sastore", opNone},
	{0x57, "pop", opNone}, {0x58, "pop2", opNone},
	{0x59, "dup", opNone}, {0x5a, "dup_x1", opNone}, {0x5b, "dup_x2", opNone},
	{0x5c, "dup2", opNone}, {0x5d, "dup2_x1", opNone}, {0x5e, "dup2_x2", opNone}, {0x5f, "swap", opNone},
	{0x60, "iadd", opNone}, {0x61, "ladd", opNone}, {0x62, "fadd", opNone}, {0x63, "dadd", opNone},
	{0x64, "isub", opNone}, {0x65, "lsub", opNone}, {0x66, "fsub", opNone}, {0x67, "dsub", opNone},
	{0x68, "imul", opNone}, {0x69, "lmul", opNone}, {0x6a, "fmul", opNone}, {0x6b, "dmul", opNone},
	{0x6c, "idiv", opNone}, {0x6d, "ldiv", opNone}, {0x6e, "fdiv", opNone}, {0x6f, "ddiv", opNone},
	{0x70, "irem", opNone}, {0x71, "lrem", opNone}, {0x72, "frem", opNone}, {0x73, "drem", opNone},
	{0x74, "ineg", opNone}, {0x75, "lneg", opNone}, {0x76, "fneg", opNone}, {0x77, "dneg", opNone},
	{0x78, "ishl", opNone}, {0x79, "lshl", opNone}, {0x7a, "ishr", opNone}, {0x7b, "lshr", opNone},
	{0x7c, "iushr", opNone}, {0x7d, "lushr", opNone},
	{0x7e, "iand", opNone}, {0x7f, "land", opNone}, {0x80, "ior", opNone}, {0x81, "lor", opNone},
	{0x82, "ixor", opNone}, {0x83, "lxor", opNone},
	{0x84, "iinc", "iinc"},
	{0x85, "i2l", opNone}, {0x86, "i2f", opNone}, {0x87, "i2d", opNone},
	{0x88, "l2i", opNone}, {0x89, "l2f", opNone}, {0x8a, "l2d", opNone},
	{0x8b, "f2i", opNone}, {0x8c, "f2l", opNone}, {0x8d, "f2d", opNone},
	{0x8e, "d2i", opNone}, {0x8f, "d2l", opNone}, {0x90, "d2f", opNone},
	{0x91, "i2b", opNone}, {0x92, "i2c", opNone}, {0x93, "i2s", opNone},
	{0x94, "lcmp", opNone}, {0x95, "fcmpl", opNone}, {0x96, "fcmpg", opNone},
	{0x97, "dcmpl", opNone}, {0x98, "dcmpg", opNone},
	{0x99, "ifeq", opBranch2}, {0x9a, "ifne", opBranch2}, {0x9b, "iflt", opBranch2},
	{0x9c, "ifge", opBranch2}, {0x9d, "ifgt", opBranch2}, {0x9e, "ifle", opBranch2},
	{0x9f, "if_icmpeq", opBranch2}, {0xa0, "if_icmpne", opBranch2}, {0xa1, "if_icmplt", opBranch2},
	{0xa2, "if_icmpge", opBranch2}, {0xa3, "if_icmpgt", opBranch2}, {0xa4, "if_icmple", opBranch2},
	{0xa5, "if_acmpeq", opBranch2}, {0xa6, "if_acmpne", opBranch2},
	{0xa7, "goto", opBranch2}, {0xa8, "jsr", opBranch2}, {0xa9, "ret", opLocal1},
	{0xaa, "tableswitch", opSwitch}, {0xab, "lookupswitch", opSwitch},
	{0xac, "ireturn", opNone}, {0xad, "lreturn", opNone}, {0xae, "freturn", opNone},
	{0xaf, "dreturn", opNone}, {0xb0, "areturn", opNone}, {0xb1, "return", opNone},
	{0xb2, "getstatic", opCpRef2}, {0xb3, "putstatic", opCpRef2},
	{0xb4, "getfield", opCpRef2}, {0xb5, "putfield", opCpRef2},
	{0xb6, "invokevirtual", opCpRef2}, {0xb7, "invokespecial", opCpRef2}, {0xb8, "invokestatic", opCpRef2},
	{0xb9, "invokeinterface", opInvokeIf},
	{0xbb, "new", opCpRef2}, {0xbc, "newarray", opByte}, {0xbd, "anewarray", opCpRef2},
	{0xbe, "arraylength", opNone}, {0xbf, "athrow", opNone},
	{0xc0, "checkcast", opCpRef2}, {0xc1, "instanceof", opCpRef2},
	{0xc2, "monitorenter", opNone}, {0xc3, "monitorexit", opNone},
	{0xc4, "wide", "wide"},
	{0xc5, "multianewarray", opMultiA},
	{0xc6, "ifnull", opBranch2}, {0xc7, "ifnonnull", opBranch2},
	{0xc8, "goto_w", opBranch4}, {0xc9, "jsr_w", opBranch4},
}

const tmpl = `// Code generated by gen.go; DO NOT EDIT.

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package opcodetab

// Entry describes one opcode's mnemonic and operand encoding, independent
// of any particular instruction-list representation.
type Entry struct {
	Mnemonic      string
	OperandFormat string
}

// Table maps every defined opcode byte to its Entry.
var Table = map[byte]Entry{
{{- range . }}
	{{ printf "0x%02x" .Op }}: {"{{ .Mnemonic }}", "{{ .OperandFormat }}"},
{{- end }}
}
`

func main() {
	t := template.Must(template.New("table").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, table); err != nil {
		log.Fatal(err)
	}

	formatted, err := imports.Process("table_gen.go", buf.Bytes(), nil)
	if err != nil {
		log.Fatal(err)
	}

	if err := os.WriteFile("table_gen.go", formatted, 0o644); err != nil {
		log.Fatal(err)
	}
	fmt.Println("wrote table_gen.go")
}
