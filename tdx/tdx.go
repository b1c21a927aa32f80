//go:build linux
// +build linux

// Package tdx fetches attestation quotes from the Intel TDX guest device.
package tdx

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"github.com/vtolstov/go-ioctl"
	"golang.org/x/sys/unix"
)

// GuestDevice is the path to the TDX guest device.
const GuestDevice = "/dev/tdx-guest"

const (
	// requestBufferSize is the size of the quote request buffer.
	// https://github.com/intel/SGXDataCenterAttestationPrimitives/blob/71557c7d1d869b6bd6f95566c051cbd098549509/QuoteGeneration/quote_wrapper/tdx_attest/tdx_attest.c#L103
	requestBufferSize = 4 * 4 * 1024
	// tdReportSize is the size of a TDREPORT structure.
	tdReportSize = 1024
	// qgsMessageHeaderSize is the serialized size of a QGS message header.
	qgsMessageHeaderSize = 16
)

// QGS message types: https://github.com/intel/SGXDataCenterAttestationPrimitives/blob/09666b3b14147145232ea4f28d85762ca5da3c5d/QuoteGeneration/quote_wrapper/qgs_msg_lib/inc/qgs_msg_lib.h#L63-L69
const (
	qgsGetQuoteRequestType  = 0
	qgsGetQuoteResponseType = 1
)

// IOCTL calls of the TDX guest device.
// https://github.com/intel/SGXDataCenterAttestationPrimitives/blob/c057b236790834cf7e547ebf90da91c53c7ed7f9/QuoteGeneration/quote_wrapper/tdx_attest/tdx_attest.c#L53-L56
var (
	requestReport = ioctl.IOWR('T', 0x01, 8)
	requestQuote  = ioctl.IOR('T', 0x02, 8)
)

// Device is a handle to the TDX guest device.
type Device interface {
	Fd() uintptr
}

// Open opens the TDX guest device.
func Open() (*os.File, error) {
	return os.OpenFile(GuestDevice, os.O_RDWR|os.O_SYNC, 0)
}

// GenerateQuote requests a quote over the given user data from the quote
// generation service. User data may not be longer than 64 bytes.
func GenerateQuote(device Device, userData []byte) ([]byte, error) {
	if len(userData) > 64 {
		return nil, fmt.Errorf("user data must not be longer than 64 bytes, received %d bytes", len(userData))
	}

	var reportData [64]byte
	copy(reportData[:], userData)
	tdReport, err := createReport(device, reportData)
	if err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}

	// The request buffer holds the QGS GetQuote message preceded by its
	// total size: message header, report size, selected ID size, ID list
	// size, TDREPORT.
	messageSize := uint32(qgsMessageHeaderSize + 12 + tdReportSize)
	var requestData [requestBufferSize - 24]byte
	binary.LittleEndian.PutUint32(requestData[0:4], messageSize)
	binary.LittleEndian.PutUint16(requestData[4:6], 1) // major version
	binary.LittleEndian.PutUint16(requestData[6:8], 0) // minor version
	binary.LittleEndian.PutUint32(requestData[8:12], qgsGetQuoteRequestType)
	binary.LittleEndian.PutUint32(requestData[12:16], messageSize)
	binary.LittleEndian.PutUint32(requestData[16:20], 0) // error code
	binary.LittleEndian.PutUint32(requestData[20:24], tdReportSize)
	binary.LittleEndian.PutUint32(requestData[24:28], 0) // selected ID size
	binary.LittleEndian.PutUint32(requestData[28:32], 0) // ID list size
	copy(requestData[32:], tdReport[:])

	header := quoteRequestHeader{
		version:      1,
		status:       0,
		inputLength:  4 + messageSize,
		outputLength: 0,
		data:         &requestData,
	}
	request := quoteRequest{
		blob:   uintptr(unsafe.Pointer(&header)),
		length: requestBufferSize,
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, device.Fd(), requestQuote, uintptr(unsafe.Pointer(&request))); errno != 0 {
		return nil, fmt.Errorf("generating quote: %w", errno)
	}
	if header.status != 0 {
		return nil, fmt.Errorf("generating quote: device returned status %#x", header.status)
	}

	return parseQuoteResponse(requestData[:])
}

// parseQuoteResponse extracts the raw quote from a QGS GetQuote response message.
func parseQuoteResponse(data []byte) ([]byte, error) {
	messageSize := binary.LittleEndian.Uint32(data[0:4])
	if uint64(messageSize) > uint64(len(data)-4) {
		return nil, fmt.Errorf("QGS response size %d exceeds buffer", messageSize)
	}

	message := data[4 : 4+messageSize]
	if len(message) < qgsMessageHeaderSize+8 {
		return nil, fmt.Errorf("QGS response too short: %d bytes", len(message))
	}
	if messageType := binary.LittleEndian.Uint32(message[4:8]); messageType != qgsGetQuoteResponseType {
		return nil, fmt.Errorf("unexpected QGS message type: %d", messageType)
	}
	if errorCode := binary.LittleEndian.Uint32(message[12:16]); errorCode != 0 {
		return nil, fmt.Errorf("QGS returned error code %#x", errorCode)
	}

	selectedIDSize := binary.LittleEndian.Uint32(message[16:20])
	quoteSize := binary.LittleEndian.Uint32(message[20:24])
	quoteStart := uint64(qgsMessageHeaderSize) + 8 + uint64(selectedIDSize)
	if quoteStart+uint64(quoteSize) > uint64(len(message)) {
		return nil, fmt.Errorf("QGS quote size %d exceeds response of %d bytes", quoteSize, len(message))
	}

	return append([]byte{}, message[quoteStart:quoteStart+uint64(quoteSize)]...), nil
}

func createReport(device Device, reportData [64]byte) ([tdReportSize]byte, error) {
	var tdReport [tdReportSize]byte
	request := reportRequest{
		subtype:          0,
		reportData:       &reportData,
		reportDataLength: 64,
		tdReport:         &tdReport,
		tdReportLength:   tdReportSize,
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, device.Fd(), requestReport, uintptr(unsafe.Pointer(&request))); errno != 0 {
		return [tdReportSize]byte{}, fmt.Errorf("creating TDX report: %w", errno)
	}
	return tdReport, nil
}

// https://github.com/intel/SGXDataCenterAttestationPrimitives/blob/71557c7d1d869b6bd6f95566c051cbd098549509/QuoteGeneration/quote_wrapper/tdx_attest/tdx_attest.c#L84-L95
type quoteRequestHeader struct {
	version      uint64
	status       uint64
	inputLength  uint32
	outputLength uint32
	data         *[requestBufferSize - 24]byte
}

// https://github.com/intel/SGXDataCenterAttestationPrimitives/blob/c057b236790834cf7e547ebf90da91c53c7ed7f9/QuoteGeneration/quote_wrapper/tdx_attest/tdx_attest.c#L82-L86
type quoteRequest struct {
	blob   uintptr
	length uintptr
}

// https://github.com/intel/SGXDataCenterAttestationPrimitives/blob/71557c7d1d869b6bd6f95566c051cbd098549509/QuoteGeneration/quote_wrapper/tdx_attest/tdx_attest.c#L68-L74
type reportRequest struct {
	subtype          uint8
	reportData       *[64]byte
	reportDataLength uint32
	tdReport         *[tdReportSize]byte
	tdReportLength   uint32
}
