//go:build tdjson

package engine

/*
#cgo LDFLAGS: -ltdjson
#include <stdlib.h>
#include <td/telegram/td_json_client.h>
*/
import "C"

import (
	"unsafe"
)

type tdjsonLibrary struct{}

// LoadLibrary binds the raw primitives to the system tdjson shared
// library. Requires building with -tags tdjson and libtdjson installed.
func LoadLibrary() (RawLibrary, error) {
	return tdjsonLibrary{}, nil
}

func (tdjsonLibrary) CreateClientID() int64 {
	return int64(C.td_create_client_id())
}

func (tdjsonLibrary) Send(clientID int64, data []byte) {
	cs := C.CString(string(data))
	defer C.free(unsafe.Pointer(cs))
	C.td_send(C.int(clientID), cs)
}

func (tdjsonLibrary) Receive(timeoutSeconds float64) []byte {
	result := C.td_receive(C.double(timeoutSeconds))
	if result == nil {
		return nil
	}
	return []byte(C.GoString(result))
}

func (tdjsonLibrary) Execute(data []byte) []byte {
	cs := C.CString(string(data))
	defer C.free(unsafe.Pointer(cs))
	result := C.td_execute(cs)
	if result == nil {
		return nil
	}
	return []byte(C.GoString(result))
}
