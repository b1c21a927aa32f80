package quote

import (
	"encoding/pem"
	"fmt"
)

// pemCertificateLabel is the only PEM block label accepted in a cert chain.
const pemCertificateLabel = "CERTIFICATE"

// TransformCertChain rewrites the PEM certificate chain nested inside the
// quote's QE report certification data to the concatenated raw DER contents
// of its blocks, dropping the PEM armor and any text between blocks.
//
// The quote's certification data must have the QE report shape with a cert
// chain nested inside (type 6 wrapping type 5); any other shape returns
// ErrUnexpectedCertData. Callers must have confirmed VerifyRoundtrip on the
// freshly parsed quote before transforming it.
func (q *Quote) TransformCertChain() error {
	qeReport, ok := q.Signature.CertData.(*QEReportCertData)
	if !ok {
		return fmt.Errorf("%w: quote certification data is type %d, expected QE report certification data (%d)",
			ErrUnexpectedCertData, q.Signature.CertData.CertDataType(), PCKIDQEReportCertData)
	}
	chain, ok := qeReport.CertData.(*CertChain)
	if !ok {
		return fmt.Errorf("%w: QE report certification data holds type %d, expected PCK cert chain (%d)",
			ErrUnexpectedCertData, qeReport.CertData.CertDataType(), PCKIDPCKCertChain)
	}

	transformed, err := pemChainToDER(chain.Data)
	if err != nil {
		return err
	}
	chain.Data = transformed

	return nil
}

// pemChainToDER decodes every PEM block in data and concatenates the DER
// contents. An input without any PEM block yields an empty result.
func pemChainToDER(data []byte) ([]byte, error) {
	var der []byte
	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		if block.Type != pemCertificateLabel {
			return nil, fmt.Errorf("%w: %q", ErrUnexpectedPEMLabel, block.Type)
		}
		der = append(der, block.Bytes...)
	}
	return der, nil
}
