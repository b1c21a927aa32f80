package cairo

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBytes(t *testing.T) {
	testCases := map[string]struct {
		data []byte
		want string
	}{
		"empty data": {
			data: nil,
			want: "pub const DATA: [u8; 0] = [\n];\n",
		},
		"single row": {
			data: []byte{0x00, 0xff, 0x81},
			want: "pub const DATA: [u8; 3] = [\n" +
				"    0x00, 0xff, 0x81,\n" +
				"];\n",
		},
		"row break after 20 bytes": {
			data: bytes.Repeat([]byte{0xab}, 21),
			want: "pub const DATA: [u8; 21] = [\n" +
				"    0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab," +
				" 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab, 0xab,\n" +
				"    0xab,\n" +
				"];\n",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			var out bytes.Buffer
			require.NoError(WriteBytes(&out, tc.data))
			assert.Equal(tc.want, out.String())
		})
	}
}

func TestFormatDateTime(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ts, err := time.Parse(time.RFC3339, "2023-08-29T20:21:03Z")
	require.NoError(err)

	got := FormatDateTime("issue_date", ts, "2023-08-29T20:21:03Z")
	assert.Equal(
		"    // 2023-08-29T20:21:03Z\n"+
			"    let issue_date = OffsetDateTimeTrait::new_utc(\n"+
			"        DateTrait::from_calendar_date(2023, Month::August, 29).unwrap(),\n"+
			"        TimeTrait::from_hms_milli(20, 21, 3, 0).unwrap(),\n"+
			"    );\n\n",
		got,
	)
}

func TestFormatBytes(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("0x0a, 0xff, 0x00", FormatBytes([]byte{0x0a, 0xff, 0x00}, false))
	assert.Equal("0x0A, 0xFF, 0x00", FormatBytes([]byte{0x0a, 0xff, 0x00}, true))
	assert.Equal("", FormatBytes(nil, false))
}

func TestFormatBytesMultiline(t *testing.T) {
	assert := assert.New(t)

	got := FormatBytesMultiline([]byte{1, 2, 3, 4, 5}, 2, strings.Repeat(" ", 12), false)
	assert.Equal(
		"\n            0x01, 0x02,"+
			"\n            0x03, 0x04,"+
			"\n            0x05,\n        ",
		got,
	)
}

func TestIsUpperHex(t *testing.T) {
	assert := assert.New(t)

	assert.True(IsUpperHex("00ABCDEF"))
	assert.True(IsUpperHex("0F"))
	assert.False(IsUpperHex("00abcdef"))
	assert.False(IsUpperHex("0123456789"))
	assert.False(IsUpperHex(""))
}
