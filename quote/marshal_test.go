package quote

import (
	"encoding/binary"
	"testing"

	fuzzheaders "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundtrip(t *testing.T) {
	testCases := map[string][]byte{
		"TDX with nested cert chain": testQuote(
			TEETypeTDX,
			testQEReportCertData([]byte{0xaa, 0xbb}, testCertChain([]byte("pem chain\x00"))),
			nil,
		),
		"TDX with trailing bytes": testQuote(
			TEETypeTDX,
			testQEReportCertData(nil, testCertChain([]byte("pem chain\x00"))),
			[]byte{0xde, 0xad, 0xbe, 0xef},
		),
		"SGX with flat cert chain": testQuote(
			TEETypeSGX,
			testCertChain([]byte("pem chain\x00")),
			nil,
		),
		"empty auth data and empty chain": testQuote(
			TEETypeTDX,
			testQEReportCertData(nil, testCertChain(nil)),
			nil,
		),
	}

	for name, rawQuote := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			parsedQuote, err := ParseQuote(rawQuote)
			require.NoError(err)

			assert.Equal(rawQuote, parsedQuote.Marshal())
			assert.NoError(parsedQuote.VerifyRoundtrip(rawQuote))

			// Marshal must not depend on parse-time state.
			assert.Equal(parsedQuote.Marshal(), parsedQuote.Marshal())
		})
	}
}

func TestVerifyRoundtripDetectsMismatch(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rawQuote := testQuote(TEETypeTDX, testQEReportCertData(nil, testCertChain([]byte("chain"))), nil)
	parsedQuote, err := ParseQuote(rawQuote)
	require.NoError(err)

	parsedQuote.Body[0] ^= 0xff
	assert.ErrorIs(parsedQuote.VerifyRoundtrip(rawQuote), ErrRoundtrip)
}

func TestMarshalRecomputesLengths(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rawQuote := testQuote(TEETypeTDX, testQEReportCertData([]byte{1, 2, 3}, testCertChain([]byte("chain"))), nil)
	parsedQuote, err := ParseQuote(rawQuote)
	require.NoError(err)

	qeReport := parsedQuote.Signature.CertData.(*QEReportCertData)
	qeReport.CertData.(*CertChain).Data = []byte("a much longer replacement certificate chain")
	qeReport.QEAuthData = append(qeReport.QEAuthData, 4, 5)

	encoded := parsedQuote.Marshal()

	// The re-encoded quote must parse again with all size fields consistent.
	reparsed, err := ParseQuote(encoded)
	require.NoError(err)

	signatureLength := binary.LittleEndian.Uint32(encoded[HeaderSize+TDReport10Size : HeaderSize+TDReport10Size+4])
	assert.EqualValues(len(encoded)-HeaderSize-TDReport10Size-4, signatureLength)

	reparsedQEReport := reparsed.Signature.CertData.(*QEReportCertData)
	assert.Equal([]byte{1, 2, 3, 4, 5}, reparsedQEReport.QEAuthData)
	assert.Equal([]byte("a much longer replacement certificate chain"), reparsedQEReport.CertData.(*CertChain).Data)
}

func TestMarshalEnclaveReport(t *testing.T) {
	assert := assert.New(t)

	raw := make([]byte, EnclaveReportSize)
	for i := range raw {
		raw[i] = byte(i % 251)
	}

	report := parseEnclaveReport(raw)
	encoded := report.Marshal()
	assert.Equal(raw, encoded[:])
}

func FuzzEnclaveReportRoundtrip(f *testing.F) {
	f.Fuzz(func(t *testing.T, a []byte) {
		target := EnclaveReport{}
		fuzzConsumer := fuzzheaders.NewConsumer(a)
		err := fuzzConsumer.GenerateStruct(&target)
		if err != nil {
			return
		}

		encoded := target.Marshal()
		assert.Equal(t, target, parseEnclaveReport(encoded[:]))
	})
}

func FuzzMarshalAfterParse(f *testing.F) {
	f.Add(testQuote(TEETypeSGX, testCertChain([]byte("chain")), nil))
	f.Fuzz(func(t *testing.T, a []byte) {
		assert := assert.New(t)

		parsedQuote, err := ParseQuote(a)
		if err != nil {
			return
		}
		assert.Equal(a, parsedQuote.Marshal())
	})
}
