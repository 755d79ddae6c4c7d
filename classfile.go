// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

const classMagic uint32 = 0xCAFEBABE

// Class access/modifier flags, per the JVM classfile specification.
const (
	ClassPublic     uint16 = 0x0001
	ClassFinal      uint16 = 0x0010
	ClassSuper      uint16 = 0x0020 // always set by compilers targeting >= 1.0.2
	ClassInterface  uint16 = 0x0200
	ClassAbstract   uint16 = 0x0400
	ClassSynthetic  uint16 = 0x1000
	ClassAnnotation uint16 = 0x2000
	ClassEnum       uint16 = 0x4000
)

// Version is one (major, minor) classfile target, named after its
// originating javac release per spec.md §3 "Target version".
type Version struct {
	major, minor uint16
}

// Named target versions spanning classfile 45.3 (Java 1.0) through 50.0
// (Java 1.6), per spec.md §3 and §6.
var (
	Java1_0 = Version{45, 3}
	Java1_1 = Version{45, 3}
	Java1_2 = Version{46, 0}
	Java1_3 = Version{47, 0}
	Java1_4 = Version{48, 0}
	Java5   = Version{49, 0}
	Java6   = Version{50, 0}
)

func validVersion(v Version) bool {
	if v.major < 45 || v.major > 50 {
		return false
	}
	if v.major == 45 && v.minor > 3 {
		return false
	}
	if v.major > 45 && v.minor != 0 {
		return false
	}
	return true
}

// Classfile is the top-level, single-owner-mutable model of one .class
// file, per spec.md §3 "Classfile" and §4.6. Build one with NewClassfile,
// populate its fields and constant pool, add fields and methods, then
// call Serialize (or Bytes) once; parse an existing one with Parse.
type Classfile struct {
	Version Version

	Pool *ConstantPool

	Modifiers  uint16
	ThisClass  *Descriptor
	SuperClass *Descriptor // nil only for java.lang.Object itself
	Interfaces []*Descriptor

	Fields  []*Field
	Methods []*Method

	Attributes []*Attribute

	// Anomalies accumulates non-fatal observations made during the most
	// recent Serialize call (spec.md §7): inconsistent stack-map joins,
	// a branching pre-50.0-targeting... method missing a StackMapTable
	// is not an anomaly (StackMapTable is only required at >=50.0), dead
	// stores eliminated, and so on. Cleared at the start of each
	// Serialize.
	Anomalies []string
}

// NewClassfile returns an empty class named thisClass, extending
// superClass (nil for java.lang.Object), targeting v.
func NewClassfile(v Version, thisClass, superClass *Descriptor, modifiers uint16) (*Classfile, error) {
	if !validVersion(v) {
		return nil, ErrUnsupportedVersion
	}
	return &Classfile{
		Version:    v,
		Pool:       NewConstantPool(),
		Modifiers:  modifiers,
		ThisClass:  thisClass,
		SuperClass: superClass,
	}, nil
}

// AddInterface declares an implemented interface.
func (c *Classfile) AddInterface(iface *Descriptor) {
	c.Interfaces = append(c.Interfaces, iface)
}

// AddField declares and returns a new field.
func (c *Classfile) AddField(name string, t *Descriptor, modifiers uint16) *Field {
	f := NewField(name, t, modifiers)
	c.Fields = append(c.Fields, f)
	return f
}

// AddMethod declares and returns a new method.
func (c *Classfile) AddMethod(name string, desc *MethodDescriptor, modifiers uint16) *Method {
	m := NewMethod(name, desc, modifiers)
	c.Methods = append(c.Methods, m)
	return m
}

// SetSourceFile attaches a SourceFile attribute naming the compilation
// unit this classfile was generated from, per SPEC_FULL.md's supplemented
// features.
func (c *Classfile) SetSourceFile(name string) error {
	idx, err := c.Pool.AddUTF8(name)
	if err != nil {
		return err
	}
	c.Attributes = append(c.Attributes, &Attribute{Name: "SourceFile", SourceFile: &SourceFileAttribute{SourceFileIndex: idx}})
	return nil
}

// SetSignature attaches a Signature attribute carrying a generic class
// signature string.
func (c *Classfile) SetSignature(sig string) error {
	idx, err := c.Pool.AddUTF8(sig)
	if err != nil {
		return err
	}
	c.Attributes = append(c.Attributes, &Attribute{Name: "Signature", Signature: &SignatureAttribute{SignatureIndex: idx}})
	return nil
}

// AddInnerClass appends one entry to the class's InnerClasses attribute
// (creating it on first use), per SPEC_FULL.md's supplemented
// EnclosingMethod/InnerClasses population. outerClass is nil for an
// anonymous or local inner class that is not a member of another class;
// innerName is "" for an anonymous class.
func (c *Classfile) AddInnerClass(inner, outerClass *Descriptor, innerName string, innerModifiers uint16) error {
	innerIdx, err := c.Pool.AddClass(inner)
	if err != nil {
		return err
	}
	var outerIdx uint16
	if outerClass != nil {
		outerIdx, err = c.Pool.AddClass(outerClass)
		if err != nil {
			return err
		}
	}
	var nameIdx uint16
	if innerName != "" {
		nameIdx, err = c.Pool.AddUTF8(innerName)
		if err != nil {
			return err
		}
	}
	entry := InnerClassEntry{InnerClassIndex: innerIdx, OuterClassIndex: outerIdx, InnerNameIndex: nameIdx, InnerAccessFlags: innerModifiers}
	for _, a := range c.Attributes {
		if a.InnerClasses != nil {
			a.InnerClasses.Entries = append(a.InnerClasses.Entries, entry)
			return nil
		}
	}
	c.Attributes = append(c.Attributes, &Attribute{Name: "InnerClasses", InnerClasses: &InnerClassesAttribute{Entries: []InnerClassEntry{entry}}})
	return nil
}

// SetEnclosingMethod attaches an EnclosingMethod attribute naming the
// innermost class (and, if any, method) lexically enclosing an anonymous
// or local class, per SPEC_FULL.md's supplemented features. method and
// methodDesc are both empty for a class enclosed only by another class,
// not a method body.
func (c *Classfile) SetEnclosingMethod(enclosingClass *Descriptor, method string, methodDesc *MethodDescriptor) error {
	classIdx, err := c.Pool.AddClass(enclosingClass)
	if err != nil {
		return err
	}
	var natIdx uint16
	if method != "" {
		natIdx, err = c.Pool.AddNameAndType(method, methodDesc.String())
		if err != nil {
			return err
		}
	}
	c.Attributes = append(c.Attributes, &Attribute{Name: "EnclosingMethod", EnclosingMethod: &EnclosingMethodAttribute{ClassIndex: classIdx, MethodNameTypeIndex: natIdx}})
	return nil
}

// Serialize writes the complete classfile to w, running the code-emission
// pipeline (per spec.md §4.3/§4.6) over every method with an attached
// CodeBuilder. Anomalies observed during emission replace c.Anomalies.
func (c *Classfile) Serialize(w io.Writer) error {
	c.Anomalies = nil
	if c.Pool.Size() <= 1 {
		c.Anomalies = append(c.Anomalies, AnoEmptyConstantPool)
	}

	var body bytes.Buffer
	be := binary.BigEndian

	thisIdx, err := c.Pool.AddClass(c.ThisClass)
	if err != nil {
		return err
	}
	var superIdx uint16
	if c.SuperClass != nil {
		superIdx, err = c.Pool.AddClass(c.SuperClass)
		if err != nil {
			return err
		}
	}
	ifaceIdxs := make([]uint16, len(c.Interfaces))
	for i, iface := range c.Interfaces {
		ifaceIdxs[i], err = c.Pool.AddClass(iface)
		if err != nil {
			return err
		}
	}

	// Every supported target (45.3 through 50.0) postdates javac 1.0.2, so
	// ACC_SUPER is always OR'd in on emission per spec.md §4.6, regardless
	// of whether the caller remembered to pass ClassSuper to NewClassfile.
	modifiers := c.Modifiers
	if CompareVersions(c.Version, Version{45, 3}) >= 0 {
		modifiers |= ClassSuper
	}
	if err := binary.Write(&body, be, modifiers); err != nil {
		return err
	}
	if err := binary.Write(&body, be, thisIdx); err != nil {
		return err
	}
	if err := binary.Write(&body, be, superIdx); err != nil {
		return err
	}
	if len(ifaceIdxs) > 0xFFFF {
		return ErrPoolOverflow
	}
	if err := binary.Write(&body, be, uint16(len(ifaceIdxs))); err != nil {
		return err
	}
	for _, idx := range ifaceIdxs {
		if err := binary.Write(&body, be, idx); err != nil {
			return err
		}
	}

	if len(c.Fields) > 0xFFFF {
		return ErrPoolOverflow
	}
	if err := binary.Write(&body, be, uint16(len(c.Fields))); err != nil {
		return err
	}
	for _, f := range c.Fields {
		if err := f.serialize(c.Pool, &body); err != nil {
			return err
		}
	}

	if len(c.Methods) > 0xFFFF {
		return ErrPoolOverflow
	}
	if err := binary.Write(&body, be, uint16(len(c.Methods))); err != nil {
		return err
	}
	for _, m := range c.Methods {
		anomalies, err := m.serialize(c.Pool, &body, int(c.Version.major))
		if err != nil {
			return fmt.Errorf("jclass: serializing method %s%s: %w", m.Name, m.Descriptor, err)
		}
		for _, a := range anomalies {
			c.Anomalies = append(c.Anomalies, fmt.Sprintf("%s.%s%s: %s", c.ThisClass, m.Name, m.Descriptor, a))
		}
	}

	if len(c.Attributes) > 0xFFFF {
		return ErrPoolOverflow
	}
	if err := binary.Write(&body, be, uint16(len(c.Attributes))); err != nil {
		return err
	}
	for _, a := range c.Attributes {
		if err := a.Serialize(c.Pool, &body); err != nil {
			return err
		}
	}

	// The constant pool is only now complete (methods/fields/attributes
	// may have interned new entries while serializing), so it is written
	// last even though it appears first in the file: buffer the rest of
	// the structure, then emit magic/version/pool/rest in file order.
	if err := binary.Write(w, be, classMagic); err != nil {
		return err
	}
	if err := binary.Write(w, be, c.Version.minor); err != nil {
		return err
	}
	if err := binary.Write(w, be, c.Version.major); err != nil {
		return err
	}
	if err := c.Pool.Serialize(w); err != nil {
		return err
	}
	_, err = w.Write(body.Bytes())
	return err
}

// Bytes serializes the classfile and returns the resulting byte slice.
func (c *Classfile) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save serializes the classfile to the named file, per the teacher's
// File.Save convention (pe.go), truncating any existing content.
func (c *Classfile) Save(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Serialize(f)
}

// Parse reads a complete classfile from r, per spec.md §4.1/§4.6.
// factory resolves attribute names this package does not itself know
// about (spec.md §6's "Consumed interface"); pass nil to fall back to
// OpaqueAttribute for everything unrecognized.
func Parse(r io.Reader, factory AttributeFactory) (*Classfile, error) {
	br := newByteReader(r)
	magic, err := br.u32()
	if err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, ErrBadMagic
	}
	minor, err := br.u16()
	if err != nil {
		return nil, err
	}
	major, err := br.u16()
	if err != nil {
		return nil, err
	}
	pool, err := ParseConstantPool(r)
	if err != nil {
		return nil, err
	}
	modifiers, err := br.u16()
	if err != nil {
		return nil, err
	}
	thisIdx, err := br.u16()
	if err != nil {
		return nil, err
	}
	thisClass, err := classDescriptorAt(pool, thisIdx)
	if err != nil {
		return nil, err
	}
	superIdx, err := br.u16()
	if err != nil {
		return nil, err
	}
	var superClass *Descriptor
	if superIdx != 0 {
		superClass, err = classDescriptorAt(pool, superIdx)
		if err != nil {
			return nil, err
		}
	}
	ifaceCount, err := br.u16()
	if err != nil {
		return nil, err
	}
	interfaces := make([]*Descriptor, ifaceCount)
	for i := range interfaces {
		idx, err := br.u16()
		if err != nil {
			return nil, err
		}
		interfaces[i], err = classDescriptorAt(pool, idx)
		if err != nil {
			return nil, err
		}
	}
	fieldCount, err := br.u16()
	if err != nil {
		return nil, err
	}
	fields := make([]*Field, fieldCount)
	for i := range fields {
		fields[i], err = parseField(pool, r, factory)
		if err != nil {
			return nil, err
		}
	}
	methodCount, err := br.u16()
	if err != nil {
		return nil, err
	}
	methods := make([]*Method, methodCount)
	for i := range methods {
		methods[i], err = parseMethod(pool, r, factory)
		if err != nil {
			return nil, err
		}
	}
	attrCount, err := br.u16()
	if err != nil {
		return nil, err
	}
	attrs := make([]*Attribute, attrCount)
	for i := range attrs {
		attrs[i], err = ParseAttribute(pool, r, factory)
		if err != nil {
			return nil, err
		}
	}
	return &Classfile{
		Version:    Version{major, minor},
		Pool:       pool,
		Modifiers:  modifiers,
		ThisClass:  thisClass,
		SuperClass: superClass,
		Interfaces: interfaces,
		Fields:     fields,
		Methods:    methods,
		Attributes: attrs,
	}, nil
}

func classDescriptorAt(pool *ConstantPool, idx uint16) (*Descriptor, error) {
	c, err := pool.GetConstant(idx)
	if err != nil {
		return nil, err
	}
	internal, err := pool.UTF8At(c.NameIndex)
	if err != nil {
		return nil, err
	}
	if len(internal) > 0 && internal[0] == '[' {
		return FromInternalDescriptor(internal)
	}
	return ObjectDescriptor(dottedFromInternal(internal)), nil
}

// Open reads and parses a classfile from disk, memory-mapping the file
// exactly as the teacher's pe.New does for a PE image, instead of loading
// the whole file into a []byte up front.
func Open(name string, factory AttributeFactory) (*Classfile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer m.Unmap()

	return OpenBytes(m, factory)
}

// OpenBytes parses a classfile already resident in memory, the in-memory
// counterpart of Open (mirrors the teacher's pe.NewBytes alongside pe.New).
func OpenBytes(data []byte, factory AttributeFactory) (*Classfile, error) {
	return Parse(bytes.NewReader(data), factory)
}
