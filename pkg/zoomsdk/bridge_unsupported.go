//go:build !linux && !darwin && !zoomsdk_cgo

package zoomsdk

import (
	"fmt"
	"runtime"
)

func openShim(string) (shim, error) {
	return nil, fmt.Errorf("zoomsdk: native SDK is not supported on %s", runtime.GOOS)
}
