package jclass

import "bytes"

// Fuzz feeds arbitrary bytes to Parse. Per spec.md §7 "Parsing is
// all-or-nothing", a malformed classfile must fail cleanly rather than
// panic or partially populate a Classfile; this is the corpus-fuzzing
// entry point go-fuzz drives to check that property.
func Fuzz(data []byte) int {
	cf, err := Parse(bytes.NewReader(data), nil)
	if err != nil {
		return 0
	}
	if _, err := cf.Bytes(); err != nil {
		return 0
	}
	return 1
}
