//go:build !tdjson

package engine

import (
	"errors"
)

// LoadLibrary is unavailable without the tdjson build tag.
func LoadLibrary() (RawLibrary, error) {
	return nil, errors.New("engine library support not compiled in; rebuild with -tags tdjson")
}
