// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Constant pool tags, per the JVM specification. Only the variants
// present in classfile versions up to 50.0 (1.6) are modeled: method
// handles, method types and invokedynamic postdate this range and are
// out of scope per spec.md §6.
const (
	tagUTF8              = 1
	tagInteger           = 3
	tagFloat             = 4
	tagLong              = 5
	tagDouble            = 6
	tagClass             = 7
	tagString            = 8
	tagFieldref          = 9
	tagMethodref         = 10
	tagInterfaceMethodref = 11
	tagNameAndType       = 12
)

// constKind mirrors the tag space as a typed enum for internal use and
// dedup keys.
type constKind uint8

const (
	ckPad constKind = iota // the second, unused slot after a long/double
	ckUTF8
	ckInteger
	ckLong
	ckFloat
	ckDouble
	ckClass
	ckString
	ckFieldref
	ckMethodref
	ckInterfaceMethodref
	ckNameAndType
)

// row is one physical constant-pool entry. It is a comparable value type
// so the pool's dedup index can use it directly as a map key, per
// spec.md §4.1 "Dedup key is structural equality of the variant
// payload."
type row struct {
	kind constKind
	utf8 string
	ival int32
	lval int64
	fval float32
	dval float64
	a, b uint16 // meaning depends on kind: classIdx/natIdx, nameIdx/descIdx, classNameIdx/stringIdx
}

// ConstantKind identifies the variant of a parsed Constant.
type ConstantKind = constKind

// Re-export the kind constants under public names for the parsing path
// (ConstantPool.GetConstant).
const (
	ConstUTF8              = ckUTF8
	ConstInteger           = ckInteger
	ConstLong              = ckLong
	ConstFloat             = ckFloat
	ConstDouble            = ckDouble
	ConstClass             = ckClass
	ConstString            = ckString
	ConstFieldref          = ckFieldref
	ConstMethodref         = ckMethodref
	ConstInterfaceMethodref = ckInterfaceMethodref
	ConstNameAndType       = ckNameAndType
)

// Constant is the tagged view of one constant-pool entry, returned by
// ConstantPool.GetConstant for the parsing path described in spec.md
// §4.1.
type Constant struct {
	Kind ConstantKind

	UTF8    string
	Integer int32
	Long    int64
	Float   float32
	Double  float64

	// Class / String.
	NameIndex   uint16 // UTF8 index: internal name for Class, literal for String
	ClassIndex  uint16 // for refs
	NatIndex    uint16 // for refs: NameAndType index
	DescIndex   uint16 // for NameAndType: descriptor UTF8 index
}

// ConstantPool is the append-only, deduplicating, 1-based-indexed table
// described in spec.md §3-§4.1. Instances are single-owner mutable, per
// spec.md §5; no internal locking is performed.
type ConstantPool struct {
	rows  []row // rows[0] is an unused placeholder so indices align with len()
	index map[row]uint16

	finalized bool
}

// NewConstantPool returns an empty constant pool with index 0 reserved
// as "no constant", per spec.md §3.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		rows:  []row{{}}, // index 0 placeholder
		index: make(map[row]uint16),
	}
}

// Size returns the pool's logical entry count, i.e. the constant_pool_count
// field value (N+1, per spec.md §4.1).
func (cp *ConstantPool) Size() int { return len(cp.rows) }

func (cp *ConstantPool) intern(r row) (uint16, error) {
	if idx, ok := cp.index[r]; ok {
		return idx, nil
	}
	idx := uint16(len(cp.rows))
	if int(idx) != len(cp.rows) || len(cp.rows) > math.MaxUint16 {
		return 0, ErrPoolOverflow
	}
	cp.rows = append(cp.rows, r)
	cp.index[r] = idx
	return idx, nil
}

// internWide is used for long/double, which occupy two consecutive
// indices; the second slot is a padding row that participates in no
// dedup lookup, matching "the next index after a long at position k is
// k+2" (spec.md §4.1).
func (cp *ConstantPool) internWide(r row) (uint16, error) {
	if idx, ok := cp.index[r]; ok {
		return idx, nil
	}
	if len(cp.rows)+1 > math.MaxUint16+1 {
		return 0, ErrPoolOverflow
	}
	idx := uint16(len(cp.rows))
	cp.rows = append(cp.rows, r, row{kind: ckPad})
	cp.index[r] = idx
	return idx, nil
}

// AddUTF8 interns a UTF-8 string constant and returns its index.
// Idempotent: calling it twice with the same s returns the same index,
// per spec.md §8 "addUtf8(s) is idempotent per classfile."
func (cp *ConstantPool) AddUTF8(s string) (uint16, error) {
	return cp.intern(row{kind: ckUTF8, utf8: s})
}

// AddInteger interns an int constant.
func (cp *ConstantPool) AddInteger(i int32) (uint16, error) {
	return cp.intern(row{kind: ckInteger, ival: i})
}

// AddLong interns a long constant, consuming two pool indices.
func (cp *ConstantPool) AddLong(l int64) (uint16, error) {
	return cp.internWide(row{kind: ckLong, lval: l})
}

// AddFloat interns a float constant.
func (cp *ConstantPool) AddFloat(f float32) (uint16, error) {
	return cp.intern(row{kind: ckFloat, fval: f})
}

// AddDouble interns a double constant, consuming two pool indices.
func (cp *ConstantPool) AddDouble(d float64) (uint16, error) {
	return cp.internWide(row{kind: ckDouble, dval: d})
}

// AddClass interns the internal-form UTF-8 of a type's class name, then
// a CONSTANT_Class_info wrapping it, and returns the latter's index.
func (cp *ConstantPool) AddClass(t *Descriptor) (uint16, error) {
	name := classInternalName(t)
	nameIdx, err := cp.AddUTF8(name)
	if err != nil {
		return 0, err
	}
	return cp.intern(row{kind: ckClass, a: nameIdx})
}

// classInternalName returns the name a CONSTANT_Class_info should wrap:
// the slash-separated internal name for object types, or the full field
// descriptor for array types (per the JVM specification, array "classes"
// are referenced by their descriptor string, not a bare name).
func classInternalName(t *Descriptor) string {
	if t.IsArray() {
		return t.InternalForm()
	}
	return t.InternalForm()[1 : len(t.InternalForm())-1]
}

// AddString interns a UTF-8 string and then a CONSTANT_String_info
// wrapping it.
func (cp *ConstantPool) AddString(s string) (uint16, error) {
	utf8Idx, err := cp.AddUTF8(s)
	if err != nil {
		return 0, err
	}
	return cp.intern(row{kind: ckString, a: utf8Idx})
}

// AddNameAndType interns a CONSTANT_NameAndType_info from a member name
// and descriptor string.
func (cp *ConstantPool) AddNameAndType(name, descriptor string) (uint16, error) {
	nameIdx, err := cp.AddUTF8(name)
	if err != nil {
		return 0, err
	}
	descIdx, err := cp.AddUTF8(descriptor)
	if err != nil {
		return 0, err
	}
	return cp.intern(row{kind: ckNameAndType, a: nameIdx, b: descIdx})
}

func (cp *ConstantPool) addRef(kind constKind, class *Descriptor, name, descriptor string) (uint16, error) {
	classIdx, err := cp.AddClass(class)
	if err != nil {
		return 0, err
	}
	natIdx, err := cp.AddNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	return cp.intern(row{kind: kind, a: classIdx, b: natIdx})
}

// AddFieldRef interns a CONSTANT_Fieldref_info for class.name of the
// given field type.
func (cp *ConstantPool) AddFieldRef(class *Descriptor, name string, fieldType *Descriptor) (uint16, error) {
	return cp.addRef(ckFieldref, class, name, fieldType.InternalForm())
}

// AddMethodRef interns a CONSTANT_Methodref_info for class.name with the
// given method descriptor.
func (cp *ConstantPool) AddMethodRef(class *Descriptor, name string, desc *MethodDescriptor) (uint16, error) {
	return cp.addRef(ckMethodref, class, name, desc.String())
}

// AddInterfaceMethodRef interns a CONSTANT_InterfaceMethodref_info for
// class.name with the given method descriptor.
func (cp *ConstantPool) AddInterfaceMethodRef(class *Descriptor, name string, desc *MethodDescriptor) (uint16, error) {
	return cp.addRef(ckInterfaceMethodref, class, name, desc.String())
}

// GetConstant returns the tagged constant at idx, for use by the parsing
// path. idx must be >=1 and < Size().
func (cp *ConstantPool) GetConstant(idx uint16) (Constant, error) {
	if idx == 0 || int(idx) >= len(cp.rows) {
		return Constant{}, fmt.Errorf("%w: index %d", ErrUnresolvedConstant, idx)
	}
	r := cp.rows[idx]
	switch r.kind {
	case ckUTF8:
		return Constant{Kind: ckUTF8, UTF8: r.utf8}, nil
	case ckInteger:
		return Constant{Kind: ckInteger, Integer: r.ival}, nil
	case ckLong:
		return Constant{Kind: ckLong, Long: r.lval}, nil
	case ckFloat:
		return Constant{Kind: ckFloat, Float: r.fval}, nil
	case ckDouble:
		return Constant{Kind: ckDouble, Double: r.dval}, nil
	case ckClass, ckString:
		return Constant{Kind: r.kind, NameIndex: r.a}, nil
	case ckFieldref, ckMethodref, ckInterfaceMethodref:
		return Constant{Kind: r.kind, ClassIndex: r.a, NatIndex: r.b}, nil
	case ckNameAndType:
		return Constant{Kind: ckNameAndType, NameIndex: r.a, DescIndex: r.b}, nil
	default:
		return Constant{}, fmt.Errorf("%w: index %d falls on a long/double's padding slot", ErrUnresolvedConstant, idx)
	}
}

// UTF8At dereferences idx as a UTF-8 constant's string value.
func (cp *ConstantPool) UTF8At(idx uint16) (string, error) {
	c, err := cp.GetConstant(idx)
	if err != nil {
		return "", err
	}
	if c.Kind != ckUTF8 {
		return "", fmt.Errorf("jclass: index %d is not a UTF8 constant", idx)
	}
	return c.UTF8, nil
}

// Serialize writes the constant_pool_count field followed by each
// physical constant-pool entry, big-endian, per the JVM classfile
// specification.
func (cp *ConstantPool) Serialize(w io.Writer) error {
	if len(cp.rows) > math.MaxUint16 {
		return ErrPoolOverflow
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(cp.rows))); err != nil {
		return err
	}
	for i := 1; i < len(cp.rows); i++ {
		r := cp.rows[i]
		if r.kind == ckPad {
			continue
		}
		if err := writeConstantRow(w, r); err != nil {
			return fmt.Errorf("jclass: writing constant pool entry %d: %w", i, err)
		}
	}
	return nil
}

func writeConstantRow(w io.Writer, r row) error {
	be := binary.BigEndian
	switch r.kind {
	case ckUTF8:
		b, err := encodeModifiedUTF8(r.utf8)
		if err != nil {
			return err
		}
		if len(b) > math.MaxUint16 {
			return fmt.Errorf("jclass: UTF8 constant too long: %d bytes", len(b))
		}
		if _, err := w.Write([]byte{tagUTF8}); err != nil {
			return err
		}
		if err := binary.Write(w, be, uint16(len(b))); err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case ckInteger:
		return writeTagged(w, tagInteger, uint32(r.ival))
	case ckFloat:
		return writeTagged(w, tagFloat, math.Float32bits(r.fval))
	case ckLong:
		return writeTagged64(w, tagLong, uint64(r.lval))
	case ckDouble:
		return writeTagged64(w, tagDouble, math.Float64bits(r.dval))
	case ckClass:
		return writeTaggedU16(w, tagClass, r.a)
	case ckString:
		return writeTaggedU16(w, tagString, r.a)
	case ckFieldref:
		return writeTaggedPair(w, tagFieldref, r.a, r.b)
	case ckMethodref:
		return writeTaggedPair(w, tagMethodref, r.a, r.b)
	case ckInterfaceMethodref:
		return writeTaggedPair(w, tagInterfaceMethodref, r.a, r.b)
	case ckNameAndType:
		return writeTaggedPair(w, tagNameAndType, r.a, r.b)
	default:
		return fmt.Errorf("jclass: unknown constant kind %d", r.kind)
	}
}

func writeTaggedU16(w io.Writer, tag byte, v uint16) error {
	if _, err := w.Write([]byte{tag}); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, v)
}

func writeTagged(w io.Writer, tag byte, v uint32) error {
	if _, err := w.Write([]byte{tag}); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, v)
}

func writeTagged64(w io.Writer, tag byte, v uint64) error {
	if _, err := w.Write([]byte{tag}); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, v)
}

func writeTaggedPair(w io.Writer, tag byte, a, b uint16) error {
	if _, err := w.Write([]byte{tag}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, a); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, b)
}

// ParseConstantPool reads a constant_pool_count-prefixed table from r,
// per the JVM classfile specification. Parsing is all-or-nothing: a
// malformed entry aborts with the first error encountered (spec.md §7).
func ParseConstantPool(r io.Reader) (*ConstantPool, error) {
	br := newByteReader(r)
	count, err := br.u16()
	if err != nil {
		return nil, err
	}
	cp := NewConstantPool()
	for len(cp.rows) < int(count) {
		tag, err := br.u8()
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagUTF8:
			n, err := br.u16()
			if err != nil {
				return nil, err
			}
			b, err := br.bytes(int(n))
			if err != nil {
				return nil, err
			}
			s, err := decodeModifiedUTF8(b)
			if err != nil {
				return nil, err
			}
			cp.rows = append(cp.rows, row{kind: ckUTF8, utf8: s})
		case tagInteger:
			v, err := br.u32()
			if err != nil {
				return nil, err
			}
			cp.rows = append(cp.rows, row{kind: ckInteger, ival: int32(v)})
		case tagFloat:
			v, err := br.u32()
			if err != nil {
				return nil, err
			}
			cp.rows = append(cp.rows, row{kind: ckFloat, fval: math.Float32frombits(v)})
		case tagLong:
			v, err := br.u64()
			if err != nil {
				return nil, err
			}
			cp.rows = append(cp.rows, row{kind: ckLong, lval: int64(v)}, row{kind: ckPad})
		case tagDouble:
			v, err := br.u64()
			if err != nil {
				return nil, err
			}
			cp.rows = append(cp.rows, row{kind: ckDouble, dval: math.Float64frombits(v)}, row{kind: ckPad})
		case tagClass:
			a, err := br.u16()
			if err != nil {
				return nil, err
			}
			cp.rows = append(cp.rows, row{kind: ckClass, a: a})
		case tagString:
			a, err := br.u16()
			if err != nil {
				return nil, err
			}
			cp.rows = append(cp.rows, row{kind: ckString, a: a})
		case tagFieldref, tagMethodref, tagInterfaceMethodref:
			a, err := br.u16()
			if err != nil {
				return nil, err
			}
			b, err := br.u16()
			if err != nil {
				return nil, err
			}
			cp.rows = append(cp.rows, row{kind: constKind(refKindForTag(tag)), a: a, b: b})
		case tagNameAndType:
			a, err := br.u16()
			if err != nil {
				return nil, err
			}
			b, err := br.u16()
			if err != nil {
				return nil, err
			}
			cp.rows = append(cp.rows, row{kind: ckNameAndType, a: a, b: b})
		default:
			return nil, fmt.Errorf("%w: unknown constant tag %d", ErrMalformedUTF8, tag)
		}
	}
	// Rebuild the dedup index so further Add* calls on a parsed pool
	// still canonicalize correctly.
	for i := 1; i < len(cp.rows); i++ {
		if cp.rows[i].kind != ckPad {
			cp.index[cp.rows[i]] = uint16(i)
		}
	}
	return cp, nil
}

func refKindForTag(tag byte) constKind {
	switch tag {
	case tagFieldref:
		return ckFieldref
	case tagMethodref:
		return ckMethodref
	default:
		return ckInterfaceMethodref
	}
}
