package cmd

import (
	"encoding/binary"
	"encoding/pem"
	"os"
	"testing"

	"github.com/dcap-tools/dcap-prep/quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func makeTempFile(tb testing.TB, content []byte) string {
	tb.Helper()
	file, err := os.CreateTemp(tb.TempDir(), "dcap_prep_test_*")
	if err != nil {
		tb.Fatal(err)
	}
	defer file.Close()
	if content != nil {
		if _, err := file.Write(content); err != nil {
			tb.Fatal(err)
		}
	}
	return file.Name()
}

func execute(args ...string) error {
	RootCmd.SetArgs(append(args, "--quiet"))
	return RootCmd.Execute()
}

// makeTestQuote builds a TDX quote carrying the given cert chain payload
// nested in QE report certification data.
func makeTestQuote(tb testing.TB, chain []byte) []byte {
	tb.Helper()

	var raw [quote.HeaderSize]byte
	binary.LittleEndian.PutUint16(raw[0:2], 4)
	binary.LittleEndian.PutUint32(raw[4:8], quote.TEETypeTDX)

	q := quote.Quote{
		Header: quote.Header{Raw: raw},
		Body:   make([]byte, quote.TDReport10Size),
		Signature: quote.SignatureData{
			CertData: &quote.QEReportCertData{
				CertData: &quote.CertChain{Data: chain},
			},
		},
	}
	return q.Marshal()
}

func TestQuoteCommand(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	der := []byte{0x30, 0x82, 0x01, 0x0a, 0x02, 0x01, 0x01}
	chain := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	rawQuote := makeTestQuote(t, append(chain, 0x00))

	inputFile := makeTempFile(t, rawQuote)
	outputFile := makeTempFile(t, nil)

	require.NoError(execute("quote", "--input", inputFile, "--output", outputFile))

	transformed, err := os.ReadFile(outputFile)
	require.NoError(err)
	assert.Less(len(transformed), len(rawQuote))

	parsedQuote, err := quote.ParseQuote(transformed)
	require.NoError(err)
	qeReport, ok := parsedQuote.Signature.CertData.(*quote.QEReportCertData)
	require.True(ok)
	assert.Equal(der, qeReport.CertData.(*quote.CertChain).Data)
}

func TestQuoteCommandRejectsCorruptInput(t *testing.T) {
	assert := assert.New(t)

	rawQuote := makeTestQuote(t, []byte("chain"))
	rawQuote = rawQuote[:len(rawQuote)-4]

	inputFile := makeTempFile(t, rawQuote)
	outputFile := makeTempFile(t, nil)

	assert.Error(execute("quote", "--input", inputFile, "--output", outputFile))
}

func TestPemCommand(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	singleBlock := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{0xaa, 0xbb, 0xcc}})

	inputFile := makeTempFile(t, singleBlock)
	outputFile := makeTempFile(t, nil)

	require.NoError(execute("pem", "--input", inputFile, "--output", outputFile))

	got, err := os.ReadFile(outputFile)
	require.NoError(err)
	assert.Equal("pub const DATA: [u8; 3] = [\n    0xaa, 0xbb, 0xcc,\n];\n", string(got))
}

func TestPemCommandErrors(t *testing.T) {
	singleBlock := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{0xaa}})

	testCases := map[string][]byte{
		"no PEM block":   []byte("plain text"),
		"two PEM blocks": append(append([]byte{}, singleBlock...), singleBlock...),
	}

	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			inputFile := makeTempFile(t, content)
			outputFile := makeTempFile(t, nil)

			assert.Error(execute("pem", "--input", inputFile, "--output", outputFile))
		})
	}
}

func TestIncludeBytesCommand(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	inputFile := makeTempFile(t, []byte{0x01, 0x02})
	outputFile := makeTempFile(t, nil)

	require.NoError(execute("include-bytes", "--input", inputFile, "--output", outputFile))

	got, err := os.ReadFile(outputFile)
	require.NoError(err)
	assert.Equal("pub const DATA: [u8; 2] = [\n    0x01, 0x02,\n];\n", string(got))
}

func TestCollateralCommands(t *testing.T) {
	// nextUpdate far in the future so the freshness check passes with the
	// real clock used by the commands.
	qeIdentityJSON := `{
		"enclaveIdentity": {
			"id": "TD_QE",
			"version": 2,
			"issueDate": "2023-08-29T20:21:03Z",
			"nextUpdate": "2999-01-01T00:00:00Z",
			"tcbEvaluationDataNumber": 15,
			"miscselect": "00000000",
			"miscselectMask": "FFFFFFFF",
			"attributes": "11000000000000000000000000000000",
			"attributesMask": "FBFF0000000000000000000000000000",
			"mrsigner": "DC9E2A7C6F948F17474E34A7FC43ED030F7C1563F1BABDDF6340C82E0E54A8C5",
			"isvprodid": 2,
			"tcbLevels": [
				{"tcb": {"isvsvn": 4}, "tcbDate": "2023-08-09T00:00:00Z", "tcbStatus": "UpToDate"}
			]
		},
		"signature": "abd37d7d2b97eec9"
	}`
	tcbInfoJSON := `{
		"tcbInfo": {
			"id": "TDX",
			"version": 3,
			"issueDate": "2024-03-13T10:39:28Z",
			"nextUpdate": "2999-01-01T00:00:00Z",
			"fmspc": "00806f050000",
			"pceId": "0000",
			"tcbType": 0,
			"tcbEvaluationDataNumber": 16,
			"tcbLevels": [
				{
					"tcb": {
						"sgxtcbcomponents": [{"svn": 2}],
						"pcesvn": 13,
						"tdxtcbcomponents": [{"svn": 5}]
					},
					"tcbDate": "2024-03-13T00:00:00Z",
					"tcbStatus": "UpToDate"
				}
			]
		},
		"signature": "5423bba4bb6a4e4c"
	}`

	testCases := map[string]struct {
		command  string
		document string
		wantPart string
	}{
		"qeidentity": {
			command:  "qeidentity",
			document: qeIdentityJSON,
			wantPart: "pub fn data() -> EnclaveIdentityV2 {",
		},
		"tcbinfo": {
			command:  "tcbinfo",
			document: tcbInfoJSON,
			wantPart: "pub fn data() -> TcbInfoV3 {",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			inputFile := makeTempFile(t, []byte(tc.document))
			outputFile := makeTempFile(t, nil)

			require.NoError(execute(tc.command, "--input", inputFile, "--output", outputFile))

			got, err := os.ReadFile(outputFile)
			require.NoError(err)
			assert.Contains(string(got), tc.wantPart)
		})
	}
}

func TestInspectCommand(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	inputFile := makeTempFile(t, makeTestQuote(t, []byte("chain")))
	outputFile := makeTempFile(t, nil)

	require.NoError(execute("inspect", "--input", inputFile, "--output", outputFile))

	got, err := os.ReadFile(outputFile)
	require.NoError(err)
	assert.Contains(string(got), `"Header"`)
	assert.Contains(string(got), `"TEEType": 129`)
}
