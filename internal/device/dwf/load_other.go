//go:build !(darwin || linux) && !(windows && amd64)

package dwf

import "errors"

const defaultLibrary = ""

func load(string) (*procs, error) {
	return nil, errors.New("WaveForms runtime is not supported on this platform")
}
