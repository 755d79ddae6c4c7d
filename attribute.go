// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Attribute is the tagged variant type of spec.md §3/§4.5: a fixed name
// (a constant-pool UTF-8) paired with either one of the known, structured
// payloads below, or an Opaque fallback for anything an AttributeFactory
// does not recognize. Grounded on the teacher's data-directory family
// (Certificate/LoadConfig/TLSDirectory): a known set of structured
// parsers, dispatched by tag, with raw bytes kept for anything else.
type Attribute struct {
	Name string

	Code              *CodeAttribute
	Exceptions        *ExceptionsAttribute
	InnerClasses      *InnerClassesAttribute
	LineNumberTable   *LineNumberTableAttribute
	LocalVariableTable *LocalVariableTableAttribute
	StackMapTable     *StackMapTableAttribute
	SourceFile        *SourceFileAttribute
	Signature         *SignatureAttribute
	Synthetic         *SyntheticAttribute
	Deprecated        *DeprecatedAttribute
	EnclosingMethod   *EnclosingMethodAttribute
	ConstantValue     *ConstantValueAttribute
	Opaque            *OpaqueAttribute
}

// payload is implemented by every structured attribute body; writeDataTo
// writes just the attribute's payload (not the name index or length
// prefix), matching spec.md §4.5's "writeDataTo emits its payload".
type payload interface {
	writeDataTo(cp *ConstantPool, w io.Writer) error
}

// Serialize emits name_index, attribute_length, and the payload, per
// spec.md §4.6 "Each attribute emits: name-index, 4-byte length,
// payload."
func (a *Attribute) Serialize(cp *ConstantPool, w io.Writer) error {
	nameIdx, err := cp.AddUTF8(a.Name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	p := a.body()
	if p == nil {
		return fmt.Errorf("jclass: attribute %q has no payload set", a.Name)
	}
	if err := p.writeDataTo(cp, &buf); err != nil {
		return fmt.Errorf("jclass: writing attribute %q: %w", a.Name, err)
	}
	if buf.Len() > 0xFFFFFFFF {
		return fmt.Errorf("jclass: attribute %q payload too large", a.Name)
	}
	if err := binary.Write(w, binary.BigEndian, nameIdx); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(buf.Len())); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func (a *Attribute) body() payload {
	switch {
	case a.Code != nil:
		return a.Code
	case a.Exceptions != nil:
		return a.Exceptions
	case a.InnerClasses != nil:
		return a.InnerClasses
	case a.LineNumberTable != nil:
		return a.LineNumberTable
	case a.LocalVariableTable != nil:
		return a.LocalVariableTable
	case a.StackMapTable != nil:
		return a.StackMapTable
	case a.SourceFile != nil:
		return a.SourceFile
	case a.Signature != nil:
		return a.Signature
	case a.Synthetic != nil:
		return a.Synthetic
	case a.Deprecated != nil:
		return a.Deprecated
	case a.EnclosingMethod != nil:
		return a.EnclosingMethod
	case a.ConstantValue != nil:
		return a.ConstantValue
	case a.Opaque != nil:
		return a.Opaque
	default:
		return nil
	}
}

// CodeAttribute is the JVM Code_attribute: max_stack, max_locals, the
// emitted instruction bytes, the exception table, and nested attributes
// (LineNumberTable, LocalVariableTable, StackMapTable).
type CodeAttribute struct {
	MaxStack  uint16
	MaxLocals uint16
	Code      []byte
	Handlers  []CodeExceptionEntry
	Attrs     []*Attribute
}

// CodeExceptionEntry is one row of the Code attribute's exception_table.
type CodeExceptionEntry struct {
	StartPC, EndPC, HandlerPC uint16
	CatchType                 uint16 // 0 => catches everything (finally)
}

func (c *CodeAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error {
	be := binary.BigEndian
	if err := binary.Write(w, be, c.MaxStack); err != nil {
		return err
	}
	if err := binary.Write(w, be, c.MaxLocals); err != nil {
		return err
	}
	if len(c.Code) > 0xFFFFFFFF {
		return fmt.Errorf("jclass: code array too large")
	}
	if err := binary.Write(w, be, uint32(len(c.Code))); err != nil {
		return err
	}
	if _, err := w.Write(c.Code); err != nil {
		return err
	}
	if len(c.Handlers) > 0xFFFF {
		return ErrPoolOverflow
	}
	if err := binary.Write(w, be, uint16(len(c.Handlers))); err != nil {
		return err
	}
	for _, h := range c.Handlers {
		if err := binary.Write(w, be, h.StartPC); err != nil {
			return err
		}
		if err := binary.Write(w, be, h.EndPC); err != nil {
			return err
		}
		if err := binary.Write(w, be, h.HandlerPC); err != nil {
			return err
		}
		if err := binary.Write(w, be, h.CatchType); err != nil {
			return err
		}
	}
	if len(c.Attrs) > 0xFFFF {
		return ErrPoolOverflow
	}
	if err := binary.Write(w, be, uint16(len(c.Attrs))); err != nil {
		return err
	}
	for _, a := range c.Attrs {
		if err := a.Serialize(cp, w); err != nil {
			return err
		}
	}
	return nil
}

// ExceptionsAttribute lists the checked exception classes a method
// declares via `throws`, as constant-pool Class indices.
type ExceptionsAttribute struct {
	ClassIndices []uint16
}

func (e *ExceptionsAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error {
	be := binary.BigEndian
	if err := binary.Write(w, be, uint16(len(e.ClassIndices))); err != nil {
		return err
	}
	for _, idx := range e.ClassIndices {
		if err := binary.Write(w, be, idx); err != nil {
			return err
		}
	}
	return nil
}

// InnerClassesAttribute lists the (inner, outer, innerName, flags) tuples
// the JVM specification requires for any class that references or
// declares inner classes.
type InnerClassesAttribute struct {
	Entries []InnerClassEntry
}

// InnerClassEntry is one row of InnerClasses.
type InnerClassEntry struct {
	InnerClassIndex      uint16
	OuterClassIndex      uint16 // 0 if not a member
	InnerNameIndex       uint16 // 0 if anonymous
	InnerAccessFlags     uint16
}

func (ic *InnerClassesAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error {
	be := binary.BigEndian
	if err := binary.Write(w, be, uint16(len(ic.Entries))); err != nil {
		return err
	}
	for _, e := range ic.Entries {
		if err := binary.Write(w, be, e.InnerClassIndex); err != nil {
			return err
		}
		if err := binary.Write(w, be, e.OuterClassIndex); err != nil {
			return err
		}
		if err := binary.Write(w, be, e.InnerNameIndex); err != nil {
			return err
		}
		if err := binary.Write(w, be, e.InnerAccessFlags); err != nil {
			return err
		}
	}
	return nil
}

// LineNumberTableAttribute maps bytecode offsets to source line numbers,
// per SPEC_FULL.md §4's supplemented LineNumberTable feature.
type LineNumberTableAttribute struct {
	Entries []LineNumberEntry
}

// LineNumberEntry is one (start_pc, line_number) row.
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

func (l *LineNumberTableAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error {
	be := binary.BigEndian
	if err := binary.Write(w, be, uint16(len(l.Entries))); err != nil {
		return err
	}
	for _, e := range l.Entries {
		if err := binary.Write(w, be, e.StartPC); err != nil {
			return err
		}
		if err := binary.Write(w, be, e.LineNumber); err != nil {
			return err
		}
	}
	return nil
}

// LocalVariableTableAttribute describes the live range, name, and
// descriptor of each local variable, derived from the liveness pass's
// live-range output per SPEC_FULL.md §4.
type LocalVariableTableAttribute struct {
	Entries []LocalVariableEntry
}

// LocalVariableEntry is one row of LocalVariableTable.
type LocalVariableEntry struct {
	StartPC, Length    uint16
	NameIndex, DescIndex uint16
	Index              uint16
}

func (lv *LocalVariableTableAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error {
	be := binary.BigEndian
	if err := binary.Write(w, be, uint16(len(lv.Entries))); err != nil {
		return err
	}
	for _, e := range lv.Entries {
		if err := binary.Write(w, be, e.StartPC); err != nil {
			return err
		}
		if err := binary.Write(w, be, e.Length); err != nil {
			return err
		}
		if err := binary.Write(w, be, e.NameIndex); err != nil {
			return err
		}
		if err := binary.Write(w, be, e.DescIndex); err != nil {
			return err
		}
		if err := binary.Write(w, be, e.Index); err != nil {
			return err
		}
	}
	return nil
}

// StackMapTableAttribute is the sequence of verification-type frames
// computed by stackmap.go, encoded per the JVM specification's compact
// frame-type scheme (same_frame, same_locals_1_stack_item_frame, chop,
// append, full_frame).
type StackMapTableAttribute struct {
	Frames []StackMapFrameEntry
}

// StackMapFrameEntry is one already-selected compact frame, built by
// buildStackMapTable in flow.go.
type StackMapFrameEntry struct {
	OffsetDelta uint16
	FrameKind   stackFrameKind
	Locals      []vtype // for append/full
	Stack       []vtype // for same_locals_1_stack_item/full
	ChopCount   int     // for chop
}

type stackFrameKind uint8

const (
	frameSame stackFrameKind = iota
	frameSameLocals1Stack
	frameChop
	frameAppend
	frameFull
)

func (s *StackMapTableAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error {
	be := binary.BigEndian
	if err := binary.Write(w, be, uint16(len(s.Frames))); err != nil {
		return err
	}
	for _, f := range s.Frames {
		if err := writeStackMapFrame(cp, w, f); err != nil {
			return err
		}
	}
	return nil
}

func writeStackMapFrame(cp *ConstantPool, w io.Writer, f StackMapFrameEntry) error {
	switch f.FrameKind {
	case frameSame:
		if f.OffsetDelta <= 63 {
			_, err := w.Write([]byte{byte(f.OffsetDelta)})
			return err
		}
		if _, err := w.Write([]byte{251}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, f.OffsetDelta)
	case frameSameLocals1Stack:
		if f.OffsetDelta <= 63 {
			if _, err := w.Write([]byte{byte(64 + f.OffsetDelta)}); err != nil {
				return err
			}
		} else {
			if _, err := w.Write([]byte{247}); err != nil {
				return err
			}
			if err := binary.Write(w, binary.BigEndian, f.OffsetDelta); err != nil {
				return err
			}
		}
		return writeVerificationType(cp, w, f.Stack[0])
	case frameChop:
		if _, err := w.Write([]byte{byte(251 - f.ChopCount)}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, f.OffsetDelta)
	case frameAppend:
		if _, err := w.Write([]byte{byte(251 + len(f.Locals))}); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, f.OffsetDelta); err != nil {
			return err
		}
		for _, v := range f.Locals {
			if err := writeVerificationType(cp, w, v); err != nil {
				return err
			}
		}
		return nil
	default: // frameFull
		if _, err := w.Write([]byte{255}); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, f.OffsetDelta); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint16(len(f.Locals))); err != nil {
			return err
		}
		for _, v := range f.Locals {
			if err := writeVerificationType(cp, w, v); err != nil {
				return err
			}
		}
		if err := binary.Write(w, binary.BigEndian, uint16(len(f.Stack))); err != nil {
			return err
		}
		for _, v := range f.Stack {
			if err := writeVerificationType(cp, w, v); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeVerificationType(cp *ConstantPool, w io.Writer, v vtype) error {
	switch v.kind {
	case vTop:
		_, err := w.Write([]byte{0})
		return err
	case vInteger:
		_, err := w.Write([]byte{1})
		return err
	case vFloat:
		_, err := w.Write([]byte{2})
		return err
	case vDouble:
		_, err := w.Write([]byte{3})
		return err
	case vLong:
		_, err := w.Write([]byte{4})
		return err
	case vNull:
		_, err := w.Write([]byte{5})
		return err
	case vUninitializedThis:
		_, err := w.Write([]byte{6})
		return err
	case vObject:
		if _, err := w.Write([]byte{7}); err != nil {
			return err
		}
		idx, err := cp.AddClass(ObjectDescriptor(dottedFromInternal(v.className)))
		if err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, idx)
	case vUninitialized:
		if _, err := w.Write([]byte{8}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, uint16(v.newOffset))
	default:
		return fmt.Errorf("jclass: unknown verification type kind %d", v.kind)
	}
}

// parseStackMapFrame reads one compact stack-map frame, the inverse of
// writeStackMapFrame.
func parseStackMapFrame(cp *ConstantPool, br *byteReader) (StackMapFrameEntry, error) {
	frameType, err := br.u8()
	if err != nil {
		return StackMapFrameEntry{}, err
	}
	switch {
	case frameType <= 63:
		return StackMapFrameEntry{FrameKind: frameSame, OffsetDelta: uint16(frameType)}, nil
	case frameType <= 127:
		v, err := parseVerificationType(cp, br)
		if err != nil {
			return StackMapFrameEntry{}, err
		}
		return StackMapFrameEntry{FrameKind: frameSameLocals1Stack, OffsetDelta: uint16(frameType - 64), Stack: []vtype{v}}, nil
	case frameType >= 128 && frameType <= 246:
		return StackMapFrameEntry{}, fmt.Errorf("jclass: stack map frame type %d is reserved", frameType)
	case frameType == 247:
		delta, err := br.u16()
		if err != nil {
			return StackMapFrameEntry{}, err
		}
		v, err := parseVerificationType(cp, br)
		if err != nil {
			return StackMapFrameEntry{}, err
		}
		return StackMapFrameEntry{FrameKind: frameSameLocals1Stack, OffsetDelta: delta, Stack: []vtype{v}}, nil
	case frameType >= 248 && frameType <= 250:
		delta, err := br.u16()
		if err != nil {
			return StackMapFrameEntry{}, err
		}
		return StackMapFrameEntry{FrameKind: frameChop, OffsetDelta: delta, ChopCount: int(251 - frameType)}, nil
	case frameType == 251:
		delta, err := br.u16()
		if err != nil {
			return StackMapFrameEntry{}, err
		}
		return StackMapFrameEntry{FrameKind: frameSame, OffsetDelta: delta}, nil
	case frameType >= 252 && frameType <= 254:
		delta, err := br.u16()
		if err != nil {
			return StackMapFrameEntry{}, err
		}
		locals := make([]vtype, frameType-251)
		for i := range locals {
			v, err := parseVerificationType(cp, br)
			if err != nil {
				return StackMapFrameEntry{}, err
			}
			locals[i] = v
		}
		return StackMapFrameEntry{FrameKind: frameAppend, OffsetDelta: delta, Locals: locals}, nil
	default: // 255: full_frame
		delta, err := br.u16()
		if err != nil {
			return StackMapFrameEntry{}, err
		}
		localCount, err := br.u16()
		if err != nil {
			return StackMapFrameEntry{}, err
		}
		locals := make([]vtype, localCount)
		for i := range locals {
			v, err := parseVerificationType(cp, br)
			if err != nil {
				return StackMapFrameEntry{}, err
			}
			locals[i] = v
		}
		stackCount, err := br.u16()
		if err != nil {
			return StackMapFrameEntry{}, err
		}
		stack := make([]vtype, stackCount)
		for i := range stack {
			v, err := parseVerificationType(cp, br)
			if err != nil {
				return StackMapFrameEntry{}, err
			}
			stack[i] = v
		}
		return StackMapFrameEntry{FrameKind: frameFull, OffsetDelta: delta, Locals: locals, Stack: stack}, nil
	}
}

// parseVerificationType reads one verification_type_info, the inverse of
// writeVerificationType. The className recovered for a vObject entry is
// in internal (slash-separated) form, matching how stackmap.go populates
// it when building frames from scratch.
func parseVerificationType(cp *ConstantPool, br *byteReader) (vtype, error) {
	tag, err := br.u8()
	if err != nil {
		return vtype{}, err
	}
	switch tag {
	case 0:
		return vtype{kind: vTop}, nil
	case 1:
		return vtype{kind: vInteger}, nil
	case 2:
		return vtype{kind: vFloat}, nil
	case 3:
		return vtype{kind: vDouble}, nil
	case 4:
		return vtype{kind: vLong}, nil
	case 5:
		return vtype{kind: vNull}, nil
	case 6:
		return vtype{kind: vUninitializedThis}, nil
	case 7:
		idx, err := br.u16()
		if err != nil {
			return vtype{}, err
		}
		c, err := cp.GetConstant(idx)
		if err != nil {
			return vtype{}, err
		}
		if c.Kind != ckClass {
			return vtype{}, fmt.Errorf("jclass: stack map object verification type index %d is not a Class constant", idx)
		}
		name, err := cp.UTF8At(c.NameIndex)
		if err != nil {
			return vtype{}, err
		}
		return vtype{kind: vObject, className: name}, nil
	case 8:
		offset, err := br.u16()
		if err != nil {
			return vtype{}, err
		}
		return vtype{kind: vUninitialized, newOffset: int(offset)}, nil
	default:
		return vtype{}, fmt.Errorf("jclass: unknown verification type tag %d", tag)
	}
}

func dottedFromInternal(internalName string) string {
	out := make([]byte, len(internalName))
	copy(out, internalName)
	for i, c := range out {
		if c == '/' {
			out[i] = '.'
		}
	}
	return string(out)
}

// SourceFileAttribute names the source file a class was compiled from.
type SourceFileAttribute struct {
	SourceFileIndex uint16 // UTF8 index
}

func (s *SourceFileAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error {
	return binary.Write(w, binary.BigEndian, s.SourceFileIndex)
}

// SignatureAttribute carries a generics/type-variable signature string.
type SignatureAttribute struct {
	SignatureIndex uint16 // UTF8 index
}

func (s *SignatureAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error {
	return binary.Write(w, binary.BigEndian, s.SignatureIndex)
}

// SyntheticAttribute and DeprecatedAttribute are zero-length marker
// attributes.
type SyntheticAttribute struct{}

func (*SyntheticAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error { return nil }

type DeprecatedAttribute struct{}

func (*DeprecatedAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error { return nil }

// EnclosingMethodAttribute names the innermost class and, if any, method
// that lexically encloses an anonymous or local class.
type EnclosingMethodAttribute struct {
	ClassIndex      uint16
	MethodNameTypeIndex uint16 // 0 if not enclosed by a method
}

func (e *EnclosingMethodAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, e.ClassIndex); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, e.MethodNameTypeIndex)
}

// ConstantValueAttribute gives a static final field its compile-time
// constant value, as a constant-pool index of matching type.
type ConstantValueAttribute struct {
	ValueIndex uint16
}

func (c *ConstantValueAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error {
	return binary.Write(w, binary.BigEndian, c.ValueIndex)
}

// OpaqueAttribute is the fallback for any attribute name an
// AttributeFactory does not recognize during parsing: its raw payload
// round-trips unchanged, per spec.md §3 "Unrecognized attributes
// round-trip as opaque bytes."
type OpaqueAttribute struct {
	Data []byte
}

func (o *OpaqueAttribute) writeDataTo(cp *ConstantPool, w io.Writer) error {
	_, err := w.Write(o.Data)
	return err
}

// AttributeFactory is the consumed interface of spec.md §6: called per
// unrecognized attribute name during parsing; returning (nil, nil)
// defaults to an opaque-bytes attribute.
type AttributeFactory func(name string, length uint32, r io.Reader) (*Attribute, error)

// ParseAttribute reads one name_index/attribute_length/payload triple
// from r, dispatching on the resolved name to a known structured parser,
// then to factory (if non-nil), then to the opaque fallback.
func ParseAttribute(cp *ConstantPool, r io.Reader, factory AttributeFactory) (*Attribute, error) {
	br := newByteReader(r)
	nameIdx, err := br.u16()
	if err != nil {
		return nil, err
	}
	name, err := cp.UTF8At(nameIdx)
	if err != nil {
		return nil, err
	}
	length, err := br.u32()
	if err != nil {
		return nil, err
	}
	payloadBytes, err := br.bytes(int(length))
	if err != nil {
		return nil, err
	}
	body := bytes.NewReader(payloadBytes)
	switch name {
	case "SourceFile":
		idx, err := newByteReader(body).u16()
		if err != nil {
			return nil, err
		}
		return &Attribute{Name: name, SourceFile: &SourceFileAttribute{SourceFileIndex: idx}}, nil
	case "Signature":
		idx, err := newByteReader(body).u16()
		if err != nil {
			return nil, err
		}
		return &Attribute{Name: name, Signature: &SignatureAttribute{SignatureIndex: idx}}, nil
	case "Synthetic":
		return &Attribute{Name: name, Synthetic: &SyntheticAttribute{}}, nil
	case "Deprecated":
		return &Attribute{Name: name, Deprecated: &DeprecatedAttribute{}}, nil
	case "ConstantValue":
		idx, err := newByteReader(body).u16()
		if err != nil {
			return nil, err
		}
		return &Attribute{Name: name, ConstantValue: &ConstantValueAttribute{ValueIndex: idx}}, nil
	case "EnclosingMethod":
		ebr := newByteReader(body)
		classIdx, err := ebr.u16()
		if err != nil {
			return nil, err
		}
		natIdx, err := ebr.u16()
		if err != nil {
			return nil, err
		}
		return &Attribute{Name: name, EnclosingMethod: &EnclosingMethodAttribute{ClassIndex: classIdx, MethodNameTypeIndex: natIdx}}, nil
	case "Exceptions":
		ebr := newByteReader(body)
		count, err := ebr.u16()
		if err != nil {
			return nil, err
		}
		idxs := make([]uint16, count)
		for i := range idxs {
			idxs[i], err = ebr.u16()
			if err != nil {
				return nil, err
			}
		}
		return &Attribute{Name: name, Exceptions: &ExceptionsAttribute{ClassIndices: idxs}}, nil
	case "InnerClasses":
		ebr := newByteReader(body)
		count, err := ebr.u16()
		if err != nil {
			return nil, err
		}
		entries := make([]InnerClassEntry, count)
		for i := range entries {
			inner, err := ebr.u16()
			if err != nil {
				return nil, err
			}
			outer, err := ebr.u16()
			if err != nil {
				return nil, err
			}
			innerName, err := ebr.u16()
			if err != nil {
				return nil, err
			}
			flags, err := ebr.u16()
			if err != nil {
				return nil, err
			}
			entries[i] = InnerClassEntry{inner, outer, innerName, flags}
		}
		return &Attribute{Name: name, InnerClasses: &InnerClassesAttribute{Entries: entries}}, nil
	case "LineNumberTable":
		ebr := newByteReader(body)
		count, err := ebr.u16()
		if err != nil {
			return nil, err
		}
		entries := make([]LineNumberEntry, count)
		for i := range entries {
			pc, err := ebr.u16()
			if err != nil {
				return nil, err
			}
			ln, err := ebr.u16()
			if err != nil {
				return nil, err
			}
			entries[i] = LineNumberEntry{pc, ln}
		}
		return &Attribute{Name: name, LineNumberTable: &LineNumberTableAttribute{Entries: entries}}, nil
	case "LocalVariableTable":
		ebr := newByteReader(body)
		count, err := ebr.u16()
		if err != nil {
			return nil, err
		}
		entries := make([]LocalVariableEntry, count)
		for i := range entries {
			startPC, err := ebr.u16()
			if err != nil {
				return nil, err
			}
			l, err := ebr.u16()
			if err != nil {
				return nil, err
			}
			nameI, err := ebr.u16()
			if err != nil {
				return nil, err
			}
			descI, err := ebr.u16()
			if err != nil {
				return nil, err
			}
			index, err := ebr.u16()
			if err != nil {
				return nil, err
			}
			entries[i] = LocalVariableEntry{startPC, l, nameI, descI, index}
		}
		return &Attribute{Name: name, LocalVariableTable: &LocalVariableTableAttribute{Entries: entries}}, nil
	case "StackMapTable":
		ebr := newByteReader(body)
		count, err := ebr.u16()
		if err != nil {
			return nil, err
		}
		frames := make([]StackMapFrameEntry, count)
		for i := range frames {
			f, err := parseStackMapFrame(cp, ebr)
			if err != nil {
				return nil, err
			}
			frames[i] = f
		}
		return &Attribute{Name: name, StackMapTable: &StackMapTableAttribute{Frames: frames}}, nil
	case "Code":
		return parseCodeAttribute(cp, name, body, factory)
	default:
		if factory != nil {
			attr, err := factory(name, length, body)
			if err != nil {
				return nil, err
			}
			if attr != nil {
				return attr, nil
			}
		}
		return &Attribute{Name: name, Opaque: &OpaqueAttribute{Data: payloadBytes}}, nil
	}
}

func parseCodeAttribute(cp *ConstantPool, name string, body io.Reader, factory AttributeFactory) (*Attribute, error) {
	br := newByteReader(body)
	maxStack, err := br.u16()
	if err != nil {
		return nil, err
	}
	maxLocals, err := br.u16()
	if err != nil {
		return nil, err
	}
	codeLen, err := br.u32()
	if err != nil {
		return nil, err
	}
	code, err := br.bytes(int(codeLen))
	if err != nil {
		return nil, err
	}
	handlerCount, err := br.u16()
	if err != nil {
		return nil, err
	}
	handlers := make([]CodeExceptionEntry, handlerCount)
	for i := range handlers {
		start, err := br.u16()
		if err != nil {
			return nil, err
		}
		end, err := br.u16()
		if err != nil {
			return nil, err
		}
		handlerPC, err := br.u16()
		if err != nil {
			return nil, err
		}
		catchType, err := br.u16()
		if err != nil {
			return nil, err
		}
		handlers[i] = CodeExceptionEntry{start, end, handlerPC, catchType}
	}
	attrCount, err := br.u16()
	if err != nil {
		return nil, err
	}
	attrs := make([]*Attribute, attrCount)
	for i := range attrs {
		a, err := ParseAttribute(cp, body, factory)
		if err != nil {
			return nil, err
		}
		attrs[i] = a
	}
	return &Attribute{Name: name, Code: &CodeAttribute{
		MaxStack: maxStack, MaxLocals: maxLocals, Code: code, Handlers: handlers, Attrs: attrs,
	}}, nil
}
