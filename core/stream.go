package core

import (
	"fmt"

	"github.com/mblythe/vellum/internal/filters"
)

// Decode decodes the stream data according to the Filter entry in the
// stream dictionary, applying filter chains in order. The decoded bytes are
// cached on the stream; repeated calls return the same slice.
func (s *Stream) Decode() ([]byte, error) {
	if s.decoded != nil {
		return s.decoded, nil
	}

	filterObj := s.Dict.Get("Filter")
	if filterObj == nil {
		s.decoded = s.Raw
		return s.decoded, nil
	}

	paramsObj := s.Dict.Get("DecodeParms")
	if paramsObj == nil {
		paramsObj = s.Dict.Get("DP") // abbreviated spelling used in inline images
	}

	switch f := filterObj.(type) {
	case Name:
		data, err := decodeWithFilter(s.Raw, string(f), paramsObjToDict(paramsObj))
		if err != nil {
			return nil, err
		}
		s.decoded = data
		return data, nil

	case *Array:
		data := s.Raw
		for i := 0; i < f.Len(); i++ {
			filterName, ok := f.GetName(i)
			if !ok {
				return nil, fmt.Errorf("%w: filter %d is not a name, got %v", ErrType, i, f.Get(i).Type())
			}

			var params *Dict
			if paramsArr, ok := paramsObj.(*Array); ok {
				if i < paramsArr.Len() {
					params = paramsObjToDict(paramsArr.Get(i))
				}
			} else {
				params = paramsObjToDict(paramsObj)
			}

			var err error
			data, err = decodeWithFilter(data, string(filterName), params)
			if err != nil {
				return nil, fmt.Errorf("filter %d (%s) failed: %w", i, filterName, err)
			}
		}
		s.decoded = data
		return data, nil
	}

	return nil, fmt.Errorf("%w: invalid Filter type %v", ErrType, filterObj.Type())
}

// decodeWithFilter applies a single decompression filter to data. Both the
// full and abbreviated (inline image) filter spellings are accepted.
func decodeWithFilter(data []byte, filterName string, params *Dict) ([]byte, error) {
	switch filterName {
	case "FlateDecode", "Fl":
		return filters.FlateDecode(data, dictToParams(params))

	case "ASCIIHexDecode", "AHx":
		return filters.ASCIIHexDecode(data)

	case "ASCII85Decode", "A85":
		return filters.ASCII85Decode(data)

	case "RunLengthDecode", "RL":
		return filters.RunLengthDecode(data)

	case "CCITTFaxDecode", "CCF":
		return filters.CCITTFaxDecode(data, dictToParams(params))

	case "DCTDecode", "DCT", "JPXDecode":
		// Image codecs are the renderer's concern; pass the bytes through.
		return data, nil

	default:
		return nil, fmt.Errorf("%w: unknown filter %s", ErrUndefined, filterName)
	}
}

// paramsObjToDict extracts a decode-parameter dictionary, treating null and
// anything else as no parameters.
func paramsObjToDict(obj Object) *Dict {
	if dict, ok := obj.(*Dict); ok {
		return dict
	}
	return nil
}

// dictToParams converts a Dict to filters.Params, translating object types
// to Go primitives.
func dictToParams(dict *Dict) filters.Params {
	if dict == nil {
		return nil
	}

	params := make(filters.Params, dict.Len())
	for _, k := range dict.Keys() {
		switch obj := dict.Get(k).(type) {
		case Int:
			params[k] = int(obj)
		case Real:
			params[k] = float64(obj)
		case Bool:
			params[k] = bool(obj)
		case String:
			params[k] = string(obj)
		case Name:
			params[k] = string(obj)
		}
	}
	return params
}
