package nnaccel

// #include "interface.h"
import "C"
import (
	"unsafe"
)

// Device is an opened accelerator device (eg one Hailo-8L on the M.2 slot)
type Device struct {
	accel  *Accelerator
	handle unsafe.Pointer
	arch   string // eg "hailo8", "hailo8l". Queried once at open.
}

// OpenDevice opens an accelerator device.
// arch may be empty, in which case the shim picks whatever device it finds,
// and we learn the architecture from it. If arch is specified, then the shim
// will refuse to open a device of a different architecture.
func (a *Accelerator) OpenDevice(arch string) (*Device, error) {
	d := Device{
		accel: a,
	}
	var cArch *C.char
	if arch != "" {
		cArch = C.CString(arch)
		defer C.free(unsafe.Pointer(cArch))
	}
	if err := a.StatusToErr(C.NAOpenDevice(a.handle, cArch, &d.handle)); err != nil {
		return nil, err
	}
	d.arch = C.GoString(C.NADeviceArch(a.handle, d.handle))
	return &d, nil
}

// Arch returns the device architecture, eg "hailo8" or "hailo8l"
func (d *Device) Arch() string {
	return d.arch
}

// ModelFiles returns the model zoo subdirectory and the file extensions of
// the model files for this device.
func (d *Device) ModelFiles() (subdir string, ext []string) {
	switch d.arch {
	case "hailo8":
		return "hailo/8", []string{".hef"}
	default:
		// hailo8l models also run on newer entry-level parts
		return "hailo/8L", []string{".hef"}
	}
}

func (d *Device) Close() {
	C.NACloseDevice(d.accel.handle, d.handle)
	d.handle = nil
}
