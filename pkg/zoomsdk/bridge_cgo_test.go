//go:build zoomsdk_cgo && cgo

package zoomsdk

import (
	"testing"
	"unsafe"
)

func TestCStringEmptyIsNotNull(t *testing.T) {
	p := cString("")
	defer freeString(p)

	if p == nil {
		t.Fatal("cString(\"\") returned NULL, want an empty C string")
	}
	if b := *(*byte)(unsafe.Pointer(p)); b != 0 {
		t.Errorf("first byte = %d, want 0", b)
	}
}
