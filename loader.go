// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// ClassFileDataLoader is the consumed "data loader" interface of spec.md
// §6: resolves a class's internal (slash-separated) name to its classfile
// bytes during parsing, so inner classes named by an InnerClasses
// attribute can be followed transitively. A nil stream (ok == false) means
// the name could not be resolved; ResolveInnerClasses treats that as
// "leave unresolved" rather than an error, since not every inner-class
// reference is loadable from the same source the caller parsed from.
type ClassFileDataLoader func(internalName string) (stream io.Reader, ok bool)

// ResolveInnerClasses walks cf's InnerClasses entries, loading and parsing
// each referenced class via loader, and recurses into the results. dedup
// breaks the inner-loads-outer-loads-inner cycle spec.md §4.6 calls out;
// pass a fresh map on the outermost call. Keys are internal (slash-form)
// class names, matching what a CONSTANT_Class_info's UTF-8 payload holds.
func ResolveInnerClasses(cf *Classfile, loader ClassFileDataLoader, factory AttributeFactory, dedup map[string]*Classfile) (map[string]*Classfile, error) {
	if dedup == nil {
		dedup = make(map[string]*Classfile)
	}
	dedup[classInternalName(cf.ThisClass)] = cf

	var names []string
	for _, a := range cf.Attributes {
		if a.InnerClasses == nil {
			continue
		}
		for _, e := range a.InnerClasses.Entries {
			if e.InnerClassIndex == 0 {
				continue
			}
			c, err := cf.Pool.GetConstant(e.InnerClassIndex)
			if err != nil || c.Kind != ckClass {
				continue
			}
			name, err := cf.Pool.UTF8At(c.NameIndex)
			if err != nil {
				continue
			}
			names = append(names, name)
		}
	}

	for _, name := range names {
		if _, seen := dedup[name]; seen {
			continue
		}
		r, ok := loader(name)
		if !ok {
			continue
		}
		inner, err := Parse(r, factory)
		if err != nil {
			return dedup, fmt.Errorf("jclass: resolving inner class %s: %w", name, err)
		}
		dedup[name] = inner
		if _, err := ResolveInnerClasses(inner, loader, factory, dedup); err != nil {
			return dedup, err
		}
	}
	return dedup, nil
}

// ClassInjector is the consumed "runtime class injector" interface of
// spec.md §6: an optional external collaborator that a host runtime
// supplies to actually define the classfiles this package builds. The
// core never calls this itself; LoaderHandoff exists for callers who
// want the name-reservation and per-loader definition cap spec.md
// describes without reimplementing the bookkeeping.
type ClassInjector func(name string, classBytes []byte) (handle interface{}, err error)

// maxDefinitionsPerLoader bounds how many classes one internal loader
// accumulates before LoaderHandoff rotates to a fresh one, so a long-running
// generator doesn't pin arbitrarily many defined classes in the host JVM.
const maxDefinitionsPerLoader = 100

// LoaderHandoff surrenders generated classfile bytes to a ClassInjector,
// assigning each one a unique, process-wide-reserved class name and
// rotating to a new logical loader generation every maxDefinitionsPerLoader
// definitions, mirroring spec.md §6's "limit each internal loader to a
// small number of definitions so unreferenced classes can be unloaded".
//
// It is safe for concurrent use: the name table and generation counter are
// guarded so concurrent generations cannot reserve the same name, matching
// the process-wide-concurrent exception spec.md §5 carves out alongside the
// descriptor interning table.
type LoaderHandoff struct {
	inject ClassInjector
	prefix string

	mu        sync.Mutex
	reserved  map[string]struct{}
	seq       uint64
	perGenCnt uint32
	gen       uint32
}

// NewLoaderHandoff builds a handoff that names generated classes
// "<prefix>$<generation>$<sequence>" before surrendering them to inject.
func NewLoaderHandoff(prefix string, inject ClassInjector) *LoaderHandoff {
	return &LoaderHandoff{
		inject:   inject,
		prefix:   prefix,
		reserved: make(map[string]struct{}),
	}
}

// Define reserves a unique name, then calls the injector with classBytes,
// returning the name used and the injector's handle.
func (h *LoaderHandoff) Define(classBytes []byte) (name string, handle interface{}, err error) {
	name, gen := h.reserveName()
	handle, err = h.inject(name, classBytes)
	if err != nil {
		h.mu.Lock()
		delete(h.reserved, name)
		h.mu.Unlock()
		return "", nil, err
	}
	_ = gen
	return name, handle, nil
}

func (h *LoaderHandoff) reserveName() (string, uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.perGenCnt >= maxDefinitionsPerLoader {
		h.gen++
		h.perGenCnt = 0
	}
	h.perGenCnt++
	seq := atomic.AddUint64(&h.seq, 1)

	name := fmt.Sprintf("%s$%d$%d", h.prefix, h.gen, seq)
	h.reserved[name] = struct{}{}
	return name, h.gen
}
