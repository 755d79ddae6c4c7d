// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"encoding/binary"
	"io"
)

// Method access/modifier flags, per the JVM classfile specification.
const (
	MethodPublic       uint16 = 0x0001
	MethodPrivate      uint16 = 0x0002
	MethodProtected    uint16 = 0x0004
	MethodStatic       uint16 = 0x0008
	MethodFinal        uint16 = 0x0010
	MethodSynchronized uint16 = 0x0020
	MethodBridge       uint16 = 0x0040
	MethodVarargs      uint16 = 0x0080
	MethodNative       uint16 = 0x0100
	MethodAbstract     uint16 = 0x0400
	MethodStrict       uint16 = 0x0800
	MethodSynthetic    uint16 = 0x1000
)

// Method is one method_info record: name, descriptor, modifiers, declared
// checked exceptions, and (for a concrete method) the CodeBuilder that
// fills in its body, per spec.md §3 "Method record" and §4.4.
type Method struct {
	Name       string
	Descriptor *MethodDescriptor
	Modifiers  uint16
	Throws     []*Descriptor
	Attributes []*Attribute

	builder *CodeBuilder
}

// NewMethod declares a method with the given name, descriptor and
// modifiers. Call Code to attach a body for a concrete method; abstract
// and native methods never call Code.
func NewMethod(name string, desc *MethodDescriptor, modifiers uint16) *Method {
	return &Method{Name: name, Descriptor: desc, Modifiers: modifiers}
}

// AddThrows declares one checked exception class in the method's throws
// clause, emitted as the Exceptions attribute.
func (m *Method) AddThrows(class *Descriptor) {
	m.Throws = append(m.Throws, class)
}

// SetSynthetic / SetDeprecated attach the corresponding marker attribute.
func (m *Method) SetSynthetic() {
	m.Attributes = append(m.Attributes, &Attribute{Name: "Synthetic", Synthetic: &SyntheticAttribute{}})
}

func (m *Method) SetDeprecated() {
	m.Attributes = append(m.Attributes, &Attribute{Name: "Deprecated", Deprecated: &DeprecatedAttribute{}})
}

// Code attaches and returns a CodeBuilder for a concrete (non-abstract,
// non-native) method, seeded with the method's parameter locals. receiver
// is the owning class's type (used for the implicit "this" of an
// instance method); pool is the owning classfile's constant pool, which
// the builder's instruction-emitting methods intern constants into.
func (m *Method) Code(pool *ConstantPool, receiver *Descriptor) (*CodeBuilder, error) {
	if m.Modifiers&(MethodAbstract|MethodNative) != 0 {
		return nil, ErrAbstractMethodHasCode
	}
	isStatic := m.Modifiers&MethodStatic != 0
	isConstructor := m.Name == "<init>"
	m.builder = newCodeBuilder(pool, m.Descriptor, isStatic, isConstructor, receiver)
	return m.builder, nil
}

// finalizeAttributes runs the emission pipeline (liveness, register
// allocation, offset resolution, byte emission, stack-map computation)
// over the method's CodeBuilder, if any, and returns the complete
// attribute list to serialize, plus any non-fatal anomalies observed.
func (m *Method) finalizeAttributes(pool *ConstantPool, targetMajor int) ([]*Attribute, []string, error) {
	var anomalies []string
	attrs := append([]*Attribute(nil), m.Attributes...)

	if len(m.Throws) > 0 {
		idxs := make([]uint16, len(m.Throws))
		for i, t := range m.Throws {
			idx, err := pool.AddClass(t)
			if err != nil {
				return nil, nil, err
			}
			idxs[i] = idx
		}
		attrs = append(attrs, &Attribute{Name: "Exceptions", Exceptions: &ExceptionsAttribute{ClassIndices: idxs}})
	}

	if m.Modifiers&(MethodAbstract|MethodNative) != 0 {
		if m.builder != nil {
			return nil, nil, ErrAbstractMethodHasCode
		}
		return attrs, anomalies, nil
	}
	if m.builder == nil {
		for _, a := range attrs {
			if a.Code != nil { // a parsed method keeps its Code attribute as-is
				return attrs, anomalies, nil
			}
		}
		return nil, nil, ErrConcreteMethodMissingCode
	}
	m.builder.finalized = true

	list := m.builder.InstructionList()
	res, err := emit(list, pool, m.builder.locals, targetMajor)
	if err != nil {
		return nil, nil, err
	}
	if res.inconsistent {
		anomalies = append(anomalies, AnoInconsistentStackDepth)
	}
	list.Each(func(in *Instruction) {
		if in.dead {
			anomalies = append(anomalies, AnoDeadStoreEliminated)
		}
	})

	endPC := uint16(len(res.code))
	var codeAttrs []*Attribute
	if lnt := m.builder.LineNumberTable(); lnt != nil {
		codeAttrs = append(codeAttrs, &Attribute{Name: "LineNumberTable", LineNumberTable: lnt})
	}
	lvt, err := m.builder.LocalVariableTable(pool, endPC)
	if err != nil {
		return nil, nil, err
	}
	if lvt != nil {
		codeAttrs = append(codeAttrs, &Attribute{Name: "LocalVariableTable", LocalVariableTable: lvt})
	}
	if res.stackMap != nil {
		codeAttrs = append(codeAttrs, &Attribute{Name: "StackMapTable", StackMapTable: res.stackMap})
	}

	attrs = append(attrs, &Attribute{Name: "Code", Code: &CodeAttribute{
		MaxStack: res.maxStack, MaxLocals: res.maxLocals, Code: res.code, Handlers: res.handlers, Attrs: codeAttrs,
	}})
	return attrs, anomalies, nil
}

func (m *Method) serialize(cp *ConstantPool, w io.Writer, targetMajor int) ([]string, error) {
	attrs, anomalies, err := m.finalizeAttributes(cp, targetMajor)
	if err != nil {
		return nil, err
	}
	nameIdx, err := cp.AddUTF8(m.Name)
	if err != nil {
		return nil, err
	}
	descIdx, err := cp.AddUTF8(m.Descriptor.String())
	if err != nil {
		return nil, err
	}
	be := binary.BigEndian
	if err := binary.Write(w, be, m.Modifiers); err != nil {
		return nil, err
	}
	if err := binary.Write(w, be, nameIdx); err != nil {
		return nil, err
	}
	if err := binary.Write(w, be, descIdx); err != nil {
		return nil, err
	}
	if len(attrs) > 0xFFFF {
		return nil, ErrPoolOverflow
	}
	if err := binary.Write(w, be, uint16(len(attrs))); err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if err := a.Serialize(cp, w); err != nil {
			return nil, err
		}
	}
	return anomalies, nil
}

func parseMethod(cp *ConstantPool, r io.Reader, factory AttributeFactory) (*Method, error) {
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
	desc, err := ParseMethodDescriptor(descStr)
	if err != nil {
		return nil, err
	}
	attrCount, err := br.u16()
	if err != nil {
		return nil, err
	}
	attrs := make([]*Attribute, attrCount)
	var throws []*Descriptor
	var kept []*Attribute
	for i := range attrs {
		a, err := ParseAttribute(cp, r, factory)
		if err != nil {
			return nil, err
		}
		attrs[i] = a
		if a.Name == "Exceptions" && a.Exceptions != nil {
			for _, idx := range a.Exceptions.ClassIndices {
				c, err := cp.GetConstant(idx)
				if err != nil {
					return nil, err
				}
				internal, err := cp.UTF8At(c.NameIndex)
				if err != nil {
					return nil, err
				}
				throws = append(throws, ObjectDescriptor(dottedFromInternal(internal)))
			}
			continue
		}
		kept = append(kept, a)
	}
	return &Method{Name: name, Descriptor: desc, Modifiers: modifiers, Throws: throws, Attributes: kept}, nil
}
