// Package filters implements the stream decompression filters the document
// core needs for its own operation: object streams, cross-reference streams,
// and content streams are stored compressed.
//
// Supported filters: FlateDecode (with TIFF and PNG predictors),
// ASCIIHexDecode, ASCII85Decode, RunLengthDecode, and CCITTFaxDecode.
// Filters take their decode parameters as a Params map translated from the
// stream dictionary.
//
// Image codecs (DCTDecode, JPXDecode) are deliberately not decoded here;
// their bytes pass through untouched for the rendering collaborator.
package filters
