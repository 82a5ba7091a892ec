//go:build windows && amd64

package dwf

import (
	"math"
	"unsafe"

	"golang.org/x/sys/windows"
)

const defaultLibrary = "dwf.dll"

// The amd64 windows syscall path mirrors the first four arguments into the
// XMM registers, so doubles are passed as their bit pattern.
func load(path string) (*procs, error) {
	dll := windows.NewLazyDLL(path)
	if err := dll.Load(); err != nil {
		return nil, err
	}

	var err error
	proc := func(name string) *windows.LazyProc {
		pr := dll.NewProc(name)
		if e := pr.Find(); e != nil && err == nil {
			err = e
		}
		return pr
	}
	ptr := func(p unsafe.Pointer) uintptr { return uintptr(p) }

	pGetVersion := proc("FDwfGetVersion")
	pGetLastErrorMsg := proc("FDwfGetLastErrorMsg")
	pEnum := proc("FDwfEnum")
	pEnumDeviceName := proc("FDwfEnumDeviceName")
	pEnumSN := proc("FDwfEnumSN")
	pDeviceOpen := proc("FDwfDeviceOpen")
	pDeviceClose := proc("FDwfDeviceClose")
	pAutoConfigureSet := proc("FDwfDeviceAutoConfigureSet")
	pReset := proc("FDwfAnalogImpedanceReset")
	pModeSet := proc("FDwfAnalogImpedanceModeSet")
	pReferenceSet := proc("FDwfAnalogImpedanceReferenceSet")
	pFrequencySet := proc("FDwfAnalogImpedanceFrequencySet")
	pAmplitudeSet := proc("FDwfAnalogImpedanceAmplitudeSet")
	pConfigure := proc("FDwfAnalogImpedanceConfigure")
	pStatus := proc("FDwfAnalogImpedanceStatus")
	pStatusMeasure := proc("FDwfAnalogImpedanceStatusMeasure")
	if err != nil {
		return nil, err
	}

	call := func(pr *windows.LazyProc, args ...uintptr) int32 {
		r1, _, _ := pr.Call(args...)
		return int32(r1)
	}

	return &procs{
		getVersion:      func(buf *byte) int32 { return call(pGetVersion, ptr(unsafe.Pointer(buf))) },
		getLastErrorMsg: func(buf *byte) int32 { return call(pGetLastErrorMsg, ptr(unsafe.Pointer(buf))) },
		enum: func(filter int32, n *int32) int32 {
			return call(pEnum, uintptr(filter), ptr(unsafe.Pointer(n)))
		},
		enumDeviceName: func(idx int32, buf *byte) int32 {
			return call(pEnumDeviceName, uintptr(idx), ptr(unsafe.Pointer(buf)))
		},
		enumSN: func(idx int32, buf *byte) int32 {
			return call(pEnumSN, uintptr(idx), ptr(unsafe.Pointer(buf)))
		},
		deviceOpen: func(idx int32, h *int32) int32 {
			return call(pDeviceOpen, uintptr(idx), ptr(unsafe.Pointer(h)))
		},
		deviceClose:      func(h int32) int32 { return call(pDeviceClose, uintptr(h)) },
		autoConfigureSet: func(h, v int32) int32 { return call(pAutoConfigureSet, uintptr(h), uintptr(v)) },
		impedanceReset:   func(h int32) int32 { return call(pReset, uintptr(h)) },
		modeSet:          func(h, mode int32) int32 { return call(pModeSet, uintptr(h), uintptr(mode)) },
		referenceSet: func(h int32, ohm float64) int32 {
			return call(pReferenceSet, uintptr(h), uintptr(math.Float64bits(ohm)))
		},
		frequencySet: func(h int32, hz float64) int32 {
			return call(pFrequencySet, uintptr(h), uintptr(math.Float64bits(hz)))
		},
		amplitudeSet: func(h int32, volts float64) int32 {
			return call(pAmplitudeSet, uintptr(h), uintptr(math.Float64bits(volts)))
		},
		configure: func(h, start int32) int32 { return call(pConfigure, uintptr(h), uintptr(start)) },
		status: func(h int32, sts *uint8) int32 {
			return call(pStatus, uintptr(h), ptr(unsafe.Pointer(sts)))
		},
		statusMeasure: func(h, q int32, v *float64) int32 {
			return call(pStatusMeasure, uintptr(h), uintptr(q), ptr(unsafe.Pointer(v)))
		},
	}, nil
}
