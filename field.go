// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"encoding/binary"
	"io"
)

// Field access/modifier flags, per the JVM classfile specification.
const (
	FieldPublic    uint16 = 0x0001
	FieldPrivate   uint16 = 0x0002
	FieldProtected uint16 = 0x0004
	FieldStatic    uint16 = 0x0008
	FieldFinal     uint16 = 0x0010
	FieldVolatile  uint16 = 0x0040
	FieldTransient uint16 = 0x0080
	FieldSynthetic uint16 = 0x1000
	FieldEnum      uint16 = 0x4000
)

// Field is one field_info record: name, descriptor, modifiers, and
// attributes (ConstantValue for a compile-time-constant static final
// field, plus any Signature/Synthetic/Deprecated), per spec.md §3
// "Field record".
type Field struct {
	Name       string
	Type       *Descriptor
	Modifiers  uint16
	Attributes []*Attribute
}

// NewField declares a field with the given name, type and modifiers.
func NewField(name string, t *Descriptor, modifiers uint16) *Field {
	return &Field{Name: name, Type: t, Modifiers: modifiers}
}

// SetConstantValue attaches a ConstantValue attribute; valueIdx must be a
// constant-pool index of a type matching f.Type (int/long/float/double/
// String, widened as the JVM specification allows for byte/char/short/
// boolean using an Integer constant).
func (f *Field) SetConstantValue(valueIdx uint16) {
	f.Attributes = append(f.Attributes, &Attribute{
		Name:          "ConstantValue",
		ConstantValue: &ConstantValueAttribute{ValueIndex: valueIdx},
	})
}

func (f *Field) serialize(cp *ConstantPool, w io.Writer) error {
	nameIdx, err := cp.AddUTF8(f.Name)
	if err != nil {
		return err
	}
	descIdx, err := cp.AddUTF8(f.Type.InternalForm())
	if err != nil {
		return err
	}
	be := binary.BigEndian
	if err := binary.Write(w, be, f.Modifiers); err != nil {
		return err
	}
	if err := binary.Write(w, be, nameIdx); err != nil {
		return err
	}
	if err := binary.Write(w, be, descIdx); err != nil {
		return err
	}
	if len(f.Attributes) > 0xFFFF {
		return ErrPoolOverflow
	}
	if err := binary.Write(w, be, uint16(len(f.Attributes))); err != nil {
		return err
	}
	for _, a := range f.Attributes {
		if err := a.Serialize(cp, w); err != nil {
			return err
		}
	}
	return nil
}

func parseField(cp *ConstantPool, r io.Reader, factory AttributeFactory) (*Field, error) {
	br := newByteReader(r)
	modifiers, err := br.u16()
	if err != nil {
		return nil, err
	}
	nameIdx, err := br.u16()
	if err != nil {
		return nil, err
	}
	name, err := cp.UTF8At(nameIdx)
	if err != nil {
		return nil, err
	}
	descIdx, err := br.u16()
	if err != nil {
		return nil, err
	}
	descStr, err := cp.UTF8At(descIdx)
	if err != nil {
		return nil, err
	}
	t, err := FromInternalDescriptor(descStr)
	if err != nil {
		return nil, err
	}
	attrCount, err := br.u16()
	if err != nil {
		return nil, err
	}
	attrs := make([]*Attribute, attrCount)
	for i := range attrs {
		a, err := ParseAttribute(cp, r, factory)
		if err != nil {
			return nil, err
		}
		attrs[i] = a
	}
	return &Field{Name: name, Type: t, Modifiers: modifiers, Attributes: attrs}, nil
}
