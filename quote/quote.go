/*
Package quote implements a structural codec for Intel SGX/TDX DCAP quotes.

The quote is decoded into an owned tree of structures and can be re-encoded
to the exact input bytes. Length fields are never cached from the input;
they are recomputed from content on every Marshal. Because of that, callers
that intend to modify a parsed quote must first confirm the round trip with
VerifyRoundtrip: a misparse would otherwise silently re-encode with wrong
lengths.

The codec does not verify signatures and does not interpret the TD report or
QE report semantics. It recognizes exactly two TEE types (SGX, TDX) and two
certification data types (5: PCK cert chain, 6: QE report certification
data); everything else is rejected.
*/
package quote

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TEETypeSGX is the type number referenced in the quote header for SGX quotes.
const TEETypeSGX = 0x00000000

// TEETypeTDX is the type number referenced in the quote header for TDX quotes.
const TEETypeTDX = 0x00000081

// PCKIDPCKCertChain is the CertData type holding a PEM-encoded PCK cert chain.
const PCKIDPCKCertChain = 5

// PCKIDQEReportCertData is the CertData type holding QE report certification data.
const PCKIDQEReportCertData = 6

const (
	// HeaderSize is the size of a quote header in bytes.
	HeaderSize = 48
	// EnclaveReportSize is the size of an SGX enclave report (and an SGX quote body) in bytes.
	EnclaveReportSize = 384
	// TDReport10Size is the size of a TDX 1.0 TD report (a TDX quote body) in bytes.
	TDReport10Size = 584
)

// Sentinel errors returned by the codec. All are wrapped with context
// (offsets, sizes, or the offending value) and matchable with errors.Is.
var (
	// ErrTruncated is returned when fewer bytes are available than a field requires.
	ErrTruncated = errors.New("data too short to be parsed")
	// ErrUnknownTEEType is returned when the header TEE type is neither SGX nor TDX.
	ErrUnknownTEEType = errors.New("unknown TEE type")
	// ErrInvalidSignatureData is returned when the signature block cannot hold a signature, key and certification data.
	ErrInvalidSignatureData = errors.New("invalid signature data block")
	// ErrLengthMismatch is returned when a certification data size field does not match the actual data.
	ErrLengthMismatch = errors.New("certification data size mismatch")
	// ErrUnsupportedCertData is returned when a certification data type tag is neither 5 nor 6.
	ErrUnsupportedCertData = errors.New("unsupported certification data type")
	// ErrUnexpectedCertData is returned when a transform meets a certification data variant it cannot handle.
	ErrUnexpectedCertData = errors.New("unexpected certification data variant")
	// ErrUnexpectedPEMLabel is returned when a PEM block in a cert chain is not a certificate.
	ErrUnexpectedPEMLabel = errors.New("unexpected PEM label")
	// ErrRoundtrip is returned when re-encoding a freshly parsed quote does not reproduce the input.
	ErrRoundtrip = errors.New("quote re-encoding does not match original bytes")
)

// Quote is a decoded SGX/TDX quote. Body and Rest are kept verbatim:
// the body layout depends only on the TEE type and is never interpreted,
// and Rest holds whatever follows the signature block.
type Quote struct {
	Header    Header
	Body      []byte
	Signature SignatureData
	Rest      []byte
}

// ParseQuote parses a raw SGX/TDX quote into an owned Quote tree.
// The input buffer is copied; mutating the Quote never aliases rawQuote.
func ParseQuote(rawQuote []byte) (*Quote, error) {
	if len(rawQuote) < HeaderSize {
		return nil, fmt.Errorf("%w: quote header requires %d bytes, got %d", ErrTruncated, HeaderSize, len(rawQuote))
	}
	header, err := parseHeader(rawQuote[:HeaderSize])
	if err != nil {
		return nil, err
	}

	offset := HeaderSize
	bodySize := bodySize(header.TEEType)
	if len(rawQuote) < offset+bodySize+4 {
		return nil, fmt.Errorf("%w: quote body and signature length require %d bytes, left: %d bytes",
			ErrTruncated, bodySize+4, len(rawQuote)-offset)
	}
	body := append([]byte{}, rawQuote[offset:offset+bodySize]...)

	offset += bodySize
	signatureLength := int(binary.LittleEndian.Uint32(rawQuote[offset : offset+4]))

	offset += 4
	if len(rawQuote) < offset+signatureLength {
		return nil, fmt.Errorf("%w: signature data requires %d bytes, left: %d bytes",
			ErrTruncated, signatureLength, len(rawQuote)-offset)
	}
	signature, err := parseSignatureData(rawQuote[offset : offset+signatureLength])
	if err != nil {
		return nil, fmt.Errorf("parsing signature data: %w", err)
	}

	offset += signatureLength
	rest := append([]byte{}, rawQuote[offset:]...)

	return &Quote{
		Header:    header,
		Body:      body,
		Signature: signature,
		Rest:      rest,
	}, nil
}

// Header is the fixed 48 byte quote prefix. The individual fields are parsed
// for display; Raw keeps the original bytes so re-encoding reproduces header
// fields this codec does not interpret.
type Header struct {
	Version            uint16
	AttestationKeyType uint16
	TEEType            uint32 // 0x0 = SGX, 0x81 = TDX
	Reserved           uint32
	VendorID           [16]byte
	UserData           [20]byte

	Raw [HeaderSize]byte
}

func parseHeader(raw []byte) (Header, error) {
	if len(raw) != HeaderSize {
		return Header{}, fmt.Errorf("%w: quote header requires %d bytes, got %d", ErrTruncated, HeaderSize, len(raw))
	}

	teeType := binary.LittleEndian.Uint32(raw[4:8])
	if teeType != TEETypeSGX && teeType != TEETypeTDX {
		return Header{}, fmt.Errorf("%w: %#08x", ErrUnknownTEEType, teeType)
	}

	return Header{
		Version:            binary.LittleEndian.Uint16(raw[0:2]),
		AttestationKeyType: binary.LittleEndian.Uint16(raw[2:4]),
		TEEType:            teeType,
		Reserved:           binary.LittleEndian.Uint32(raw[8:12]),
		VendorID:           [16]byte(raw[12:28]),
		UserData:           [20]byte(raw[28:48]),
		Raw:                [HeaderSize]byte(raw),
	}, nil
}

// bodySize returns the quote body size for a TEE type.
// parseHeader guarantees teeType is one of the two known values.
func bodySize(teeType uint32) int {
	if teeType == TEETypeTDX {
		return TDReport10Size
	}
	return EnclaveReportSize
}

// SignatureData is the variable-length signature block of a quote:
// an ECDSA-P256 signature and public key followed by certification data.
type SignatureData struct {
	Signature [64]byte
	PublicKey [64]byte
	CertData  CertData
}

func parseSignatureData(data []byte) (SignatureData, error) {
	if len(data) <= 128 {
		return SignatureData{}, fmt.Errorf("%w: requires more than 128 bytes, got %d", ErrInvalidSignatureData, len(data))
	}

	certData, err := ParseCertData(data[128:])
	if err != nil {
		return SignatureData{}, err
	}

	return SignatureData{
		Signature: [64]byte(data[0:64]),
		PublicKey: [64]byte(data[64:128]),
		CertData:  certData,
	}, nil
}

// CertData is the certification data embedded in a quote signature block.
// It is a closed union: the only implementations are *CertChain (type 5)
// and *QEReportCertData (type 6).
type CertData interface {
	// CertDataType returns the type tag written in front of the data.
	CertDataType() uint16
	// marshalPayload encodes the data following the type and size fields.
	marshalPayload() []byte
}

// CertChain is certification data of type 5: an opaque certificate chain
// payload, usually concatenated PEM blocks terminated by a zero byte.
// The codec never interprets it.
type CertChain struct {
	Data []byte
}

// CertDataType returns 5 (PCK cert chain).
func (c *CertChain) CertDataType() uint16 { return PCKIDPCKCertChain }

// QEReportCertData is certification data of type 6: the Quoting Enclave
// report and its signature, the QE auth data, and nested certification data.
type QEReportCertData struct {
	EnclaveReport EnclaveReport
	Signature     [64]byte
	QEAuthData    []byte
	CertData      CertData
}

// CertDataType returns 6 (QE report certification data).
func (q *QEReportCertData) CertDataType() uint16 { return PCKIDQEReportCertData }

// ParseCertData parses certification data, dispatching on the type tag.
// The declared size must cover the remaining bytes exactly; there is no
// tolerance for padding or shortfall, since the size is recomputed from
// content when re-encoding.
func ParseCertData(data []byte) (CertData, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("%w: certification data requires at least 6 bytes, got %d", ErrTruncated, len(data))
	}

	certType := binary.LittleEndian.Uint16(data[0:2])
	size := binary.LittleEndian.Uint32(data[2:6])
	if uint64(len(data)) != uint64(size)+6 {
		return nil, fmt.Errorf("%w: declared %d bytes, actual %d bytes", ErrLengthMismatch, size, len(data)-6)
	}

	switch certType {
	case PCKIDPCKCertChain:
		return &CertChain{Data: append([]byte{}, data[6:]...)}, nil
	case PCKIDQEReportCertData:
		qeReport, err := parseQEReportCertData(data[6:])
		if err != nil {
			return nil, err
		}
		return qeReport, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCertData, certType)
	}
}

func parseQEReportCertData(data []byte) (*QEReportCertData, error) {
	if len(data) < EnclaveReportSize+64+2 {
		return nil, fmt.Errorf("%w: QE report certification data requires at least %d bytes, got %d",
			ErrTruncated, EnclaveReportSize+64+2, len(data))
	}

	enclaveReport := parseEnclaveReport(data[0:EnclaveReportSize])
	signature := [64]byte(data[EnclaveReportSize : EnclaveReportSize+64])

	offset := EnclaveReportSize + 64
	authDataSize := int(binary.LittleEndian.Uint16(data[offset : offset+2]))

	offset += 2
	if len(data) < offset+authDataSize {
		return nil, fmt.Errorf("%w: QE auth data requires %d bytes, left: %d bytes",
			ErrTruncated, authDataSize, len(data)-offset)
	}
	authData := append([]byte{}, data[offset:offset+authDataSize]...)

	// The nested certification data gets everything that is left and
	// validates its own size field against it.
	offset += authDataSize
	certData, err := ParseCertData(data[offset:])
	if err != nil {
		return nil, err
	}

	return &QEReportCertData{
		EnclaveReport: enclaveReport,
		Signature:     signature,
		QEAuthData:    authData,
		CertData:      certData,
	}, nil
}

// EnclaveReport is the report of a Quoting Enclave. Its binary layout is
// fixed at 384 bytes; parse and Marshal are exact inverses.
type EnclaveReport struct {
	CPUSVN     [16]byte
	MiscSelect uint32
	Reserved1  [28]byte
	Attributes [16]byte
	MRENCLAVE  [32]byte
	Reserved2  [32]byte
	MRSIGNER   [32]byte
	Reserved3  [96]byte
	ISVProdID  uint16
	ISVSVN     uint16
	Reserved4  [60]byte
	ReportData [64]byte
}

func parseEnclaveReport(report []byte) EnclaveReport {
	return EnclaveReport{
		CPUSVN:     [16]byte(report[0:16]),
		MiscSelect: binary.LittleEndian.Uint32(report[16:20]),
		Reserved1:  [28]byte(report[20:48]),
		Attributes: [16]byte(report[48:64]),
		MRENCLAVE:  [32]byte(report[64:96]),
		Reserved2:  [32]byte(report[96:128]),
		MRSIGNER:   [32]byte(report[128:160]),
		Reserved3:  [96]byte(report[160:256]),
		ISVProdID:  binary.LittleEndian.Uint16(report[256:258]),
		ISVSVN:     binary.LittleEndian.Uint16(report[258:260]),
		Reserved4:  [60]byte(report[260:320]),
		ReportData: [64]byte(report[320:384]),
	}
}
