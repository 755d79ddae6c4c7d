// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"fmt"
	"strings"
	"sync"
)

// Kind identifies the shape of a Descriptor.
type Kind uint8

// Descriptor kinds. The primitive kinds use their JVM descriptor letter
// as a mnemonic ordering; Void, Object and Array are not primitives.
const (
	KindBoolean Kind = iota
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindVoid
	KindObject
	KindArray
)

// primitiveCodes maps a JVM descriptor letter to its Kind and vice versa.
var primitiveCodes = map[byte]Kind{
	'Z': KindBoolean,
	'B': KindByte,
	'C': KindChar,
	'S': KindShort,
	'I': KindInt,
	'J': KindLong,
	'F': KindFloat,
	'D': KindDouble,
	'V': KindVoid,
}

var primitiveLetters = map[Kind]byte{
	KindBoolean: 'Z',
	KindByte:    'B',
	KindChar:    'C',
	KindShort:   'S',
	KindInt:     'I',
	KindLong:    'J',
	KindFloat:   'F',
	KindDouble:  'D',
	KindVoid:    'V',
}

var primitiveNames = map[Kind]string{
	KindBoolean: "boolean",
	KindByte:    "byte",
	KindChar:    "char",
	KindShort:   "short",
	KindInt:     "int",
	KindLong:    "long",
	KindFloat:   "float",
	KindDouble:  "double",
	KindVoid:    "void",
}

// Descriptor is an immutable, interned value identifying a JVM type: a
// primitive, an object class named by its dotted (Java source) name, or
// an array of some component type. Equal descriptors share identity, so
// callers may compare *Descriptor pointers directly. See spec.md §3.
type Descriptor struct {
	kind      Kind
	className string      // dotted name, for KindObject only
	component *Descriptor // element type, for KindArray only
}

// descriptorIntern is the process-wide, concurrency-safe intern table
// required by spec.md §5 ("the type-descriptor interning table... must
// be safely concurrent"). Grounded on the teacher's package-level
// lookup-table style (section.go's flag-name maps), generalized here to
// a guarded map since, unlike those static tables, this one is written
// at runtime as new object/array descriptors are requested.
var descriptorIntern = struct {
	mu    sync.RWMutex
	byKey map[string]*Descriptor
}{byKey: make(map[string]*Descriptor)}

func internDescriptor(key string, build func() *Descriptor) *Descriptor {
	descriptorIntern.mu.RLock()
	if d, ok := descriptorIntern.byKey[key]; ok {
		descriptorIntern.mu.RUnlock()
		return d
	}
	descriptorIntern.mu.RUnlock()

	descriptorIntern.mu.Lock()
	defer descriptorIntern.mu.Unlock()
	if d, ok := descriptorIntern.byKey[key]; ok {
		return d
	}
	d := build()
	descriptorIntern.byKey[key] = d
	return d
}

var primitiveSingletons = func() map[Kind]*Descriptor {
	m := make(map[Kind]*Descriptor, len(primitiveLetters))
	for k := range primitiveLetters {
		k := k
		m[k] = &Descriptor{kind: k}
	}
	return m
}()

// PrimitiveDescriptor returns the interned descriptor for a primitive
// JVM descriptor letter (one of ZBCSIJFD) or 'V' for void.
func PrimitiveDescriptor(code byte) (*Descriptor, error) {
	k, ok := primitiveCodes[code]
	if !ok {
		return nil, fmt.Errorf("%w: unknown primitive code %q", ErrInvalidDescriptor, code)
	}
	return primitiveSingletons[k], nil
}

// ObjectDescriptor returns the interned descriptor for an object class
// named by its dotted (Java source, e.g. "java.lang.String") name.
func ObjectDescriptor(dottedName string) *Descriptor {
	key := "L" + strings.ReplaceAll(dottedName, ".", "/") + ";"
	return internDescriptor(key, func() *Descriptor {
		return &Descriptor{kind: KindObject, className: dottedName}
	})
}

// ArrayDescriptor returns the interned descriptor for an array whose
// element type is component. Nesting ArrayDescriptor calls builds
// multi-dimensional arrays, e.g. ArrayDescriptor(ArrayDescriptor(Int))
// is "[[I".
func ArrayDescriptor(component *Descriptor) *Descriptor {
	key := "[" + component.InternalForm()
	return internDescriptor(key, func() *Descriptor {
		return &Descriptor{kind: KindArray, component: component}
	})
}

// FromInternalDescriptor parses a JVM-internal descriptor string such as
// "I", "Ljava/lang/String;", or "[[I" and returns the corresponding
// interned Descriptor.
func FromInternalDescriptor(s string) (*Descriptor, error) {
	d, rest, err := parseFieldDescriptor(s)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("%w: trailing data %q in descriptor %q", ErrInvalidDescriptor, rest, s)
	}
	return d, nil
}

func parseFieldDescriptor(s string) (d *Descriptor, rest string, err error) {
	if s == "" {
		return nil, "", fmt.Errorf("%w: empty descriptor", ErrInvalidDescriptor)
	}
	switch s[0] {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D', 'V':
		d, err = PrimitiveDescriptor(s[0])
		return d, s[1:], err
	case '[':
		comp, rest, err := parseFieldDescriptor(s[1:])
		if err != nil {
			return nil, "", err
		}
		return ArrayDescriptor(comp), rest, nil
	case 'L':
		idx := strings.IndexByte(s, ';')
		if idx < 0 {
			return nil, "", fmt.Errorf("%w: unterminated object descriptor %q", ErrInvalidDescriptor, s)
		}
		internalName := s[1:idx]
		dotted := strings.ReplaceAll(internalName, "/", ".")
		return ObjectDescriptor(dotted), s[idx+1:], nil
	default:
		return nil, "", fmt.Errorf("%w: unexpected byte %q in descriptor %q", ErrInvalidDescriptor, s[0], s)
	}
}

// FromDottedName returns the object descriptor for a dotted class name.
// It is a thin, named alias over ObjectDescriptor kept for readability
// at call sites that already have a source-form name in hand.
func FromDottedName(s string) *Descriptor {
	return ObjectDescriptor(s)
}

// InternalForm returns the JVM-internal descriptor string, e.g.
// "Ljava/lang/String;", "[I", "I".
func (d *Descriptor) InternalForm() string {
	switch d.kind {
	case KindObject:
		return "L" + strings.ReplaceAll(d.className, ".", "/") + ";"
	case KindArray:
		return "[" + d.component.InternalForm()
	default:
		return string(primitiveLetters[d.kind])
	}
}

// DottedName returns the human-readable, source-level form, e.g.
// "java.lang.String", "int[]", "int[][]".
func (d *Descriptor) DottedName() string {
	switch d.kind {
	case KindObject:
		return d.className
	case KindArray:
		return d.component.DottedName() + "[]"
	default:
		return primitiveNames[d.kind]
	}
}

func (d *Descriptor) String() string { return d.DottedName() }

// Kind returns the descriptor's shape.
func (d *Descriptor) Kind() Kind { return d.kind }

// IsPrimitive reports whether d names a primitive (not void).
func (d *Descriptor) IsPrimitive() bool {
	return d.kind != KindVoid && d.kind != KindObject && d.kind != KindArray
}

// IsObject reports whether d names an object class.
func (d *Descriptor) IsObject() bool { return d.kind == KindObject }

// IsArray reports whether d is an array type.
func (d *Descriptor) IsArray() bool { return d.kind == KindArray }

// IsVoid reports whether d is the void pseudo-type.
func (d *Descriptor) IsVoid() bool { return d.kind == KindVoid }

// IsReference reports whether d occupies a reference-typed operand-stack
// or local-variable slot (object or array).
func (d *Descriptor) IsReference() bool { return d.kind == KindObject || d.kind == KindArray }

// IsDoubleWord reports whether d occupies two words on the operand stack
// and in the local-variable array: true iff long or double.
func (d *Descriptor) IsDoubleWord() bool {
	return d.kind == KindLong || d.kind == KindDouble
}

// Slots returns the number of local-variable / operand-stack words this
// type occupies: 2 for long/double, 1 otherwise (including void, which
// callers must otherwise special-case since it cannot occupy a slot).
func (d *Descriptor) Slots() int {
	if d.IsDoubleWord() {
		return 2
	}
	return 1
}

// Component returns the element type of an array descriptor, or nil if
// d is not an array.
func (d *Descriptor) Component() *Descriptor {
	if d.kind != KindArray {
		return nil
	}
	return d.component
}

// Rank returns the number of array dimensions, or 0 if d is not an
// array.
func (d *Descriptor) Rank() int {
	r := 0
	for cur := d; cur != nil && cur.kind == KindArray; cur = cur.component {
		r++
	}
	return r
}

// ClassName returns the dotted class name for an object descriptor, or
// "" for any other kind.
func (d *Descriptor) ClassName() string {
	if d.kind != KindObject {
		return ""
	}
	return d.className
}

// Well-known primitive and void descriptor singletons, interned once at
// package init.
var (
	Boolean = primitiveSingletons[KindBoolean]
	Byte    = primitiveSingletons[KindByte]
	Char    = primitiveSingletons[KindChar]
	Short   = primitiveSingletons[KindShort]
	Int     = primitiveSingletons[KindInt]
	Long    = primitiveSingletons[KindLong]
	Float   = primitiveSingletons[KindFloat]
	Double  = primitiveSingletons[KindDouble]
	Void    = primitiveSingletons[KindVoid]
)

// MethodDescriptor is an immutable composition of a return type
// (possibly void) and an ordered list of parameter types.
type MethodDescriptor struct {
	ReturnType *Descriptor
	ParamTypes []*Descriptor
}

// NewMethodDescriptor builds a method descriptor from a return type and
// parameter list. Only the return type may be void.
func NewMethodDescriptor(ret *Descriptor, params []*Descriptor) (*MethodDescriptor, error) {
	for i, p := range params {
		if p.IsVoid() {
			return nil, fmt.Errorf("%w: parameter %d is void", ErrInvalidDescriptor, i)
		}
	}
	cp := make([]*Descriptor, len(params))
	copy(cp, params)
	return &MethodDescriptor{ReturnType: ret, ParamTypes: cp}, nil
}

// ParseMethodDescriptor parses a method descriptor string of the form
// "(paramDescriptors)returnDescriptor".
func ParseMethodDescriptor(s string) (*MethodDescriptor, error) {
	if len(s) == 0 || s[0] != '(' {
		return nil, fmt.Errorf("%w: method descriptor must start with '(': %q", ErrInvalidDescriptor, s)
	}
	rest := s[1:]
	var params []*Descriptor
	for len(rest) > 0 && rest[0] != ')' {
		d, tail, err := parseFieldDescriptor(rest)
		if err != nil {
			return nil, err
		}
		params = append(params, d)
		rest = tail
	}
	if len(rest) == 0 || rest[0] != ')' {
		return nil, fmt.Errorf("%w: unterminated parameter list in %q", ErrInvalidDescriptor, s)
	}
	rest = rest[1:]
	ret, tail, err := parseFieldDescriptor(rest)
	if err != nil {
		return nil, err
	}
	if tail != "" {
		return nil, fmt.Errorf("%w: trailing data %q after return type in %q", ErrInvalidDescriptor, tail, s)
	}
	return &MethodDescriptor{ReturnType: ret, ParamTypes: params}, nil
}

// String renders the method descriptor in JVM-internal form, e.g.
// "(Ljava/lang/String;I)V".
func (m *MethodDescriptor) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range m.ParamTypes {
		b.WriteString(p.InternalForm())
	}
	b.WriteByte(')')
	b.WriteString(m.ReturnType.InternalForm())
	return b.String()
}

// ParameterSlots returns the total number of local-variable words the
// parameter list occupies (double-word parameters count as 2), not
// including the implicit receiver of an instance method.
func (m *MethodDescriptor) ParameterSlots() int {
	n := 0
	for _, p := range m.ParamTypes {
		n += p.Slots()
	}
	return n
}
