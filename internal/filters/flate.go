package filters

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// Params carries decode parameters from stream dictionaries. Common keys are
// Predictor, Columns, Colors, and BitsPerComponent.
type Params map[string]interface{}

// FlateDecode decompresses zlib/deflate compressed data, optionally undoing
// the predictor named in params. This is the workhorse filter: object
// streams and cross-reference streams are almost always Flate compressed.
func FlateDecode(data []byte, params Params) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer zr.Close()

	decompressed, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}

	predictor := getIntParam(params, "Predictor", 1)
	if predictor == 1 {
		return decompressed, nil
	}
	return undoPredictor(decompressed, predictor, params)
}

// undoPredictor reverses the prediction transform applied before
// compression. Predictor 2 is TIFF horizontal differencing; 10-15 are the
// PNG row filters, where each row carries its own filter tag byte.
func undoPredictor(data []byte, predictor int, params Params) ([]byte, error) {
	columns := getIntParam(params, "Columns", 1)
	colors := getIntParam(params, "Colors", 1)
	bpc := getIntParam(params, "BitsPerComponent", 8)

	if bpc != 8 {
		return nil, fmt.Errorf("predictor %d: only 8 bits per component supported, got %d", predictor, bpc)
	}

	switch {
	case predictor == 2:
		return undoTIFFPredictor(data, columns, colors)
	case predictor >= 10 && predictor <= 15:
		return undoPNGPredictor(data, columns, colors)
	}
	return nil, fmt.Errorf("unsupported predictor %d", predictor)
}

// undoTIFFPredictor reverses horizontal differencing: each sample was stored
// as the difference from the sample to its left.
func undoTIFFPredictor(data []byte, columns, colors int) ([]byte, error) {
	rowSize := columns * colors
	if rowSize <= 0 || len(data)%rowSize != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of row size %d", len(data), rowSize)
	}

	result := make([]byte, len(data))
	copy(result, data)
	for row := 0; row < len(data)/rowSize; row++ {
		start := row * rowSize
		for col := colors; col < rowSize; col++ {
			result[start+col] += result[start+col-colors]
		}
	}
	return result, nil
}

// undoPNGPredictor reverses the PNG row filters. The stored predictor value
// (10-15) only selects "PNG family"; the actual filter is the tag byte at
// the start of each row: 0 none, 1 sub, 2 up, 3 average, 4 paeth.
func undoPNGPredictor(data []byte, columns, colors int) ([]byte, error) {
	bpp := colors
	rowSize := columns * colors
	if rowSize <= 0 || len(data)%(rowSize+1) != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of row size %d", len(data), rowSize+1)
	}
	numRows := len(data) / (rowSize + 1)

	result := make([]byte, numRows*rowSize)
	prev := make([]byte, rowSize) // zero row above the first

	for row := 0; row < numRows; row++ {
		tag := data[row*(rowSize+1)]
		src := data[row*(rowSize+1)+1 : (row+1)*(rowSize+1)]
		dst := result[row*rowSize : (row+1)*rowSize]

		for i := 0; i < rowSize; i++ {
			var left, up, upLeft byte
			if i >= bpp {
				left = dst[i-bpp]
				upLeft = prev[i-bpp]
			}
			up = prev[i]

			var predicted byte
			switch tag {
			case 0:
			case 1:
				predicted = left
			case 2:
				predicted = up
			case 3:
				predicted = byte((int(left) + int(up)) / 2)
			case 4:
				predicted = paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("row %d: unknown PNG filter tag %d", row, tag)
			}
			dst[i] = src[i] + predicted
		}
		prev = dst
	}

	return result, nil
}

// paeth selects the neighbor (left, above, upper-left) closest to the linear
// prediction a+b-c, per the PNG specification.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))

	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// getIntParam extracts an integer parameter, returning def when the key is
// missing or not numeric.
func getIntParam(params Params, key string, def int) int {
	if params == nil {
		return def
	}
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// getBoolParam extracts a boolean parameter, returning def when the key is
// missing or not a bool.
func getBoolParam(params Params, key string, def bool) bool {
	if params == nil {
		return def
	}
	if v, ok := params[key].(bool); ok {
		return v
	}
	return def
}
