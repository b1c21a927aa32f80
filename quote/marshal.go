package quote

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Marshal serializes the quote back to its binary representation.
// All size fields are recomputed from the current content.
func (q *Quote) Marshal() []byte {
	header := q.Header.Marshal()
	signature := q.Signature.Marshal()

	signatureLength := make([]byte, 4)
	binary.LittleEndian.PutUint32(signatureLength, uint32(len(signature)))

	var result []byte
	result = append(result, header[:]...)
	result = append(result, q.Body...)
	result = append(result, signatureLength...)
	result = append(result, signature...)
	result = append(result, q.Rest...)

	return result
}

// VerifyRoundtrip checks that re-encoding the quote reproduces the original
// raw bytes. Callers that modify a parsed quote must call this first and
// treat failure as fatal: size fields are recomputed on Marshal, so a
// misparse would otherwise propagate into silently corrupted output.
func (q *Quote) VerifyRoundtrip(original []byte) error {
	encoded := q.Marshal()
	if !bytes.Equal(encoded, original) {
		return fmt.Errorf("%w: original %d bytes, re-encoded %d bytes", ErrRoundtrip, len(original), len(encoded))
	}
	return nil
}

// Marshal returns the header bytes as found in the original quote.
// The header is deliberately not rebuilt from its parsed fields so that
// fields this codec does not interpret survive re-encoding.
func (h *Header) Marshal() [HeaderSize]byte {
	return h.Raw
}

// Marshal serializes the signature block: signature, public key and
// certification data, without the leading length field (the quote carries
// that, and recomputes it).
func (s *SignatureData) Marshal() []byte {
	var result []byte
	result = append(result, s.Signature[:]...)
	result = append(result, s.PublicKey[:]...)
	result = append(result, MarshalCertData(s.CertData)...)
	return result
}

// MarshalCertData serializes certification data: type tag, recomputed
// payload size, payload.
func MarshalCertData(c CertData) []byte {
	payload := c.marshalPayload()

	result := make([]byte, 6, 6+len(payload))
	binary.LittleEndian.PutUint16(result[0:2], c.CertDataType())
	binary.LittleEndian.PutUint32(result[2:6], uint32(len(payload)))
	return append(result, payload...)
}

func (c *CertChain) marshalPayload() []byte {
	return append([]byte{}, c.Data...)
}

func (q *QEReportCertData) marshalPayload() []byte {
	enclaveReport := q.EnclaveReport.Marshal()

	authDataSize := make([]byte, 2)
	binary.LittleEndian.PutUint16(authDataSize, uint16(len(q.QEAuthData)))

	var result []byte
	result = append(result, enclaveReport[:]...)
	result = append(result, q.Signature[:]...)
	result = append(result, authDataSize...)
	result = append(result, q.QEAuthData...)
	result = append(result, MarshalCertData(q.CertData)...)

	return result
}

// Marshal serializes an EnclaveReport to the 384 byte binary representation
// found in QE report certification data.
func (er *EnclaveReport) Marshal() [EnclaveReportSize]byte {
	var result [EnclaveReportSize]byte
	copy(result[0:16], er.CPUSVN[:])
	binary.LittleEndian.PutUint32(result[16:20], er.MiscSelect)
	copy(result[20:48], er.Reserved1[:])
	copy(result[48:64], er.Attributes[:])
	copy(result[64:96], er.MRENCLAVE[:])
	copy(result[96:128], er.Reserved2[:])
	copy(result[128:160], er.MRSIGNER[:])
	copy(result[160:256], er.Reserved3[:])
	binary.LittleEndian.PutUint16(result[256:258], er.ISVProdID)
	binary.LittleEndian.PutUint16(result[258:260], er.ISVSVN)
	copy(result[260:320], er.Reserved4[:])
	copy(result[320:384], er.ReportData[:])
	return result
}
