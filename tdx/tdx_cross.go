//go:build !linux
// +build !linux

// Package tdx fetches attestation quotes from the Intel TDX guest device.
package tdx

import (
	"errors"
	"os"
)

// GuestDevice is the path to the TDX guest device.
const GuestDevice = "/dev/tdx-guest"

// Device is a handle to the TDX guest device.
type Device interface {
	Fd() uintptr
}

// Open opens the TDX guest device.
func Open() (*os.File, error) {
	return nil, errors.New("the TDX guest device is only available on linux")
}

// GenerateQuote requests a quote over the given user data from the quote
// generation service.
func GenerateQuote(_ Device, _ []byte) ([]byte, error) {
	return nil, errors.New("generating quotes is only supported on linux")
}
