package nnaccel

// #cgo LDFLAGS: -ldl
// #include "interface.h"
import "C"
import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"
)

// Accelerator is a loaded NN accelerator shim.
// At present, the only accelerator we have is "hailo".
type Accelerator struct {
	handle unsafe.Pointer
}

// Load an NN accelerator shim (eg libbirdwatchhailo.so).
func Load(accelName string) (*Accelerator, error) {
	tryPaths := []string{
		"nnaccel/" + accelName + "/bin", // relative path from the source code root, for dev time
		"/usr/local/lib/birdwatch",      // binary deployment
	}
	if fromEnv := os.Getenv("BIRDWATCH_NNACCEL_DIR"); fromEnv != "" {
		tryPaths = append([]string{fromEnv}, tryPaths...)
	}
	allErrors := strings.Builder{}
	for _, dir := range tryPaths {
		m := Accelerator{}
		fullPath := filepath.Join(dir, "libbirdwatch"+accelName+".so")
		cFullPath := C.CString(fullPath)
		err := CError(C.LoadNNAccel(cFullPath, &m.handle))
		C.free(unsafe.Pointer(cFullPath))
		if err != nil {
			fmt.Fprintf(&allErrors, "Loading %v: %v\n", fullPath, err)
		} else {
			return &m, nil
		}
	}
	return nil, errors.New(allErrors.String())
}

func (a *Accelerator) StatusToErr(status C.int) error {
	if status != 0 {
		return errors.New(C.GoString(C.NAStatusStr(a.handle, status)))
	}
	return nil
}

// Consume a C heap allocated char* and return it as a Go error.
// Before returning, free the C char*.
// If the input is NULL, then return nil.
func CError(cerr *C.char) error {
	if cerr != nil {
		err := errors.New(C.GoString(cerr))
		C.free(unsafe.Pointer(cerr))
		return err
	}
	return nil
}
