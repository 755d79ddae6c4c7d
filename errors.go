// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import "errors"

// Sentinel errors returned by the constant pool, descriptor factory,
// instruction list and classfile serializer. Structural, one-off failures
// (e.g. an unresolved label carrying its instruction's textual form) use
// fmt.Errorf at the call site instead of a sentinel, per spec.md §7.
var (
	// ErrBadMagic is returned when a parsed stream does not start with
	// 0xCAFEBABE.
	ErrBadMagic = errors.New("jclass: not a classfile, bad magic number")

	// ErrTruncated is returned when a parsed stream ends before the
	// structure it describes has been fully read.
	ErrTruncated = errors.New("jclass: truncated classfile stream")

	// ErrMalformedUTF8 is returned when a UTF-8 constant's modified-UTF-8
	// payload cannot be decoded. Parsing also wraps it when a constant
	// carries an unknown tag byte.
	ErrMalformedUTF8 = errors.New("jclass: malformed modified-UTF-8 constant")

	// ErrInvalidDescriptor is returned by the descriptor parser on
	// malformed input.
	ErrInvalidDescriptor = errors.New("jclass: malformed type or method descriptor")

	// ErrPoolOverflow is returned when a constant pool, or a field,
	// method, interface, or attribute table would exceed 65535 entries.
	ErrPoolOverflow = errors.New("jclass: constant pool overflow, more than 65535 entries")

	// ErrUnresolvedLabel is returned when emission is requested but some
	// instruction references a label that was never bound.
	ErrUnresolvedLabel = errors.New("jclass: branch, switch, or exception handler references an unbound label")

	// ErrUnresolvedConstant is returned when a constant-pool index is
	// queried before the pool has assigned it one.
	ErrUnresolvedConstant = errors.New("jclass: constant queried before it was added to the pool")

	// ErrNegativeArrayDimension is returned when CodeBuilder.NewArray is
	// asked for zero dimensions; the dimension count is unsigned, so zero
	// is the only count it rejects.
	ErrNegativeArrayDimension = errors.New("jclass: negative array dimension")

	// ErrDuplicateSwitchCase is returned when a lookupswitch/tableswitch
	// is built with two equal case keys.
	ErrDuplicateSwitchCase = errors.New("jclass: duplicate switch case value")

	// ErrAbstractMethodHasCode is returned when a Code attribute is
	// attached to an abstract or native method.
	ErrAbstractMethodHasCode = errors.New("jclass: abstract or native methods may not carry a Code attribute")

	// ErrConcreteMethodMissingCode is returned when a non-abstract,
	// non-native method has neither a CodeBuilder nor a (parsed) Code
	// attribute at emission time.
	ErrConcreteMethodMissingCode = errors.New("jclass: concrete method has no Code attribute")

	// ErrMissingInvokeInterfaceCount is returned when an invokeinterface
	// instruction is emitted without its mandatory argument-count byte.
	ErrMissingInvokeInterfaceCount = errors.New("jclass: invokeinterface missing argument-count byte")

	// ErrFinalized is returned when a mutation is attempted on an entity
	// after its first emission, per the lifecycle in spec.md §3.
	ErrFinalized = errors.New("jclass: entity is finalized and read-only")

	// ErrUnsupportedVersion is returned for a target version string or
	// (major, minor) pair outside 45.3 (1.0) .. 50.0 (1.6).
	ErrUnsupportedVersion = errors.New("jclass: unsupported classfile target version")
)

// anomalies are non-fatal observations appended to Classfile.Anomalies
// during Serialize; Parse adds none. They never abort emission; per
// spec.md §7 "InconsistentFlow... the reference design allows emission
// to proceed and lets the JVM verifier reject."
var (
	// AnoEmptyConstantPool is reported when a classfile is emitted with
	// no constants at all, which is legal but unusual outside tests.
	AnoEmptyConstantPool = "constant pool has no entries"

	// AnoInconsistentStackDepth is reported when two control-flow paths
	// merge with different operand-stack depths; the classfile is still
	// emitted, but a compliant JVM verifier will reject it.
	AnoInconsistentStackDepth = "operand stack depth disagrees at a control-flow join"

	// AnoMissingStackMapTable describes a method that targets version
	// 50.0+ and contains a branch instruction, but whose Code attribute
	// carries no StackMapTable. Serialize does not append this string.
	AnoMissingStackMapTable = "branching method on a version >= 50.0 has no StackMapTable"

	// AnoUnreachableInstruction describes an instruction that flow
	// analysis never visits. Serialize does not append this string.
	AnoUnreachableInstruction = "instruction is unreachable from the method entry point"

	// AnoDeadStoreEliminated is reported whenever a local-variable store
	// is rewritten to a pop because liveness analysis found no live use.
	AnoDeadStoreEliminated = "dead store rewritten to pop/pop2"
)
