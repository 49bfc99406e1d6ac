package filters

import (
	"bytes"
	"io"

	"golang.org/x/image/ccitt"
)

// CCITTFaxDecode decodes CCITT Group 3/4 fax compressed data, the usual
// encoding for bi-level scanned pages.
//
// Recognized decode parameters:
//
//	K        group selector (<0 Group 4, 0 Group 3 1-D, >0 Group 3 2-D)
//	Columns  row width in pixels (default 1728)
//	Rows     image height (default auto-detect)
//	BlackIs1 bit sense (default false)
func CCITTFaxDecode(data []byte, params Params) ([]byte, error) {
	columns := getIntParam(params, "Columns", 1728)
	rows := getIntParam(params, "Rows", 0)
	k := getIntParam(params, "K", 0)
	blackIs1 := getBoolParam(params, "BlackIs1", false)

	sf := ccitt.Group3
	if k < 0 {
		sf = ccitt.Group4
	}
	if rows == 0 {
		rows = ccitt.AutoDetectHeight
	}

	opts := &ccitt.Options{Invert: blackIs1}
	r := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, sf, columns, rows, opts)
	return io.ReadAll(r)
}
