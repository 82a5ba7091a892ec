//go:build darwin || linux

package dwf

import (
	"runtime"

	"github.com/ebitengine/purego"
)

var defaultLibrary = func() string {
	if runtime.GOOS == "darwin" {
		return "/Library/Frameworks/dwf.framework/dwf"
	}
	return "libdwf.so"
}()

func load(path string) (*procs, error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}

	p := &procs{}
	purego.RegisterLibFunc(&p.getVersion, lib, "FDwfGetVersion")
	purego.RegisterLibFunc(&p.getLastErrorMsg, lib, "FDwfGetLastErrorMsg")
	purego.RegisterLibFunc(&p.enum, lib, "FDwfEnum")
	purego.RegisterLibFunc(&p.enumDeviceName, lib, "FDwfEnumDeviceName")
	purego.RegisterLibFunc(&p.enumSN, lib, "FDwfEnumSN")
	purego.RegisterLibFunc(&p.deviceOpen, lib, "FDwfDeviceOpen")
	purego.RegisterLibFunc(&p.deviceClose, lib, "FDwfDeviceClose")
	purego.RegisterLibFunc(&p.autoConfigureSet, lib, "FDwfDeviceAutoConfigureSet")
	purego.RegisterLibFunc(&p.impedanceReset, lib, "FDwfAnalogImpedanceReset")
	purego.RegisterLibFunc(&p.modeSet, lib, "FDwfAnalogImpedanceModeSet")
	purego.RegisterLibFunc(&p.referenceSet, lib, "FDwfAnalogImpedanceReferenceSet")
	purego.RegisterLibFunc(&p.frequencySet, lib, "FDwfAnalogImpedanceFrequencySet")
	purego.RegisterLibFunc(&p.amplitudeSet, lib, "FDwfAnalogImpedanceAmplitudeSet")
	purego.RegisterLibFunc(&p.configure, lib, "FDwfAnalogImpedanceConfigure")
	purego.RegisterLibFunc(&p.status, lib, "FDwfAnalogImpedanceStatus")
	purego.RegisterLibFunc(&p.statusMeasure, lib, "FDwfAnalogImpedanceStatusMeasure")
	return p, nil
}
