package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/mblythe/vellum/contentstream"
	"github.com/mblythe/vellum/core"
	"github.com/mblythe/vellum/logger"
	"github.com/mblythe/vellum/pages"
	"github.com/mblythe/vellum/repair"
	"github.com/mblythe/vellum/resolver"
)

// Version is a document format version.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Document is a single open document session. All methods must be called
// from one goroutine; independent documents are safe to process in
// parallel.
type Document struct {
	rs   io.ReadSeeker
	file *os.File // set when the session owns the file handle
	cfg  *Config
	diag *core.Diagnostics

	version Version
	table   *core.XRefTable
	res     *resolver.Resolver
	catalog *pages.Catalog
	tree    *pages.PageTree
}

// Open opens the file at path with the default best-effort configuration.
func Open(path string) (*Document, error) {
	return OpenWithConfig(path, nil)
}

// OpenWithConfig opens the file at path. The session owns the file handle
// and closes it on Close.
func OpenWithConfig(path string, cfg *Config) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}

	doc, err := NewDocument(file, cfg)
	if err != nil {
		file.Close()
		return nil, err
	}
	doc.file = file
	return doc, nil
}

// NewDocument builds a session over rs: header parse, cross-reference load
// with a one-shot repair fallback, encryption check, and catalog resolve.
// A nil cfg selects the defaults.
func NewDocument(rs io.ReadSeeker, cfg *Config) (*Document, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Logger != nil {
		logger.SetLogger(cfg.Logger)
	}

	doc := &Document{
		rs:   rs,
		cfg:  cfg,
		diag: &core.Diagnostics{Strict: cfg.ParsingMode == Strict},
	}

	if err := doc.parseHeader(); err != nil {
		return nil, err
	}

	table, err := doc.loadXRef()
	if err != nil {
		return nil, err
	}
	doc.table = table

	// Encrypted documents are refused outright, in both modes.
	if table.Trailer != nil && table.Trailer.Has("Encrypt") {
		core.Release(table)
		doc.table = nil
		return nil, core.ErrEncrypted
	}

	doc.res = resolver.New(rs, table, doc.diag,
		resolver.WithCacheCapacity(cfg.CacheCapacity),
		resolver.WithMaxDepth(cfg.MaxResolveDepth))

	if err := doc.loadCatalog(); err != nil {
		doc.Close()
		return nil, err
	}
	return doc, nil
}

var headerPattern = regexp.MustCompile(`%PDF-(\d+)\.(\d+)`)

// parseHeader finds the %PDF-M.m marker near the start of the file. The
// marker is not required to sit at offset zero; some producers prepend
// junk.
func (d *Document) parseHeader() error {
	if _, err := d.rs.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek to header: %v", core.ErrIO, err)
	}

	buf := make([]byte, 1024)
	n, err := io.ReadFull(d.rs, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("%w: read header: %v", core.ErrIO, err)
	}

	m := headerPattern.FindSubmatch(buf[:n])
	if m == nil {
		return d.diag.Error(core.ErrFlagNoHeader,
			fmt.Errorf("%w: no document header found", core.ErrSyntax))
	}

	major, _ := strconv.Atoi(string(m[1]))
	minor, _ := strconv.Atoi(string(m[2]))
	d.version = Version{Major: major, Minor: minor}
	return nil
}

// loadXRef parses the cross-reference index, falling back to the repair
// scan once when the index is missing or unusable. Strict sessions do not
// repair.
func (d *Document) loadXRef() (*core.XRefTable, error) {
	table, err := core.NewXRefParser(d.rs, d.diag).Load()
	if err == nil {
		return table, nil
	}
	if errors.Is(err, core.ErrIO) || errors.Is(err, core.ErrVM) || d.diag.Strict {
		return nil, err
	}

	logger.Debug("cross-reference load failed, rebuilding", "error", err.Error())
	table, rerr := repair.ReconstructXRef(d.rs, d.cfg.MaxRepairScanSize, d.diag)
	if rerr != nil {
		return nil, fmt.Errorf("cross-reference rebuild after %q: %w", err, rerr)
	}
	return table, nil
}

// loadCatalog resolves /Root and wires up the page tree. A document
// without a usable catalog cannot be walked, so failures here are hard in
// both modes.
func (d *Document) loadCatalog() error {
	if d.table.Trailer == nil {
		return fmt.Errorf("%w: document has no trailer", core.ErrUndefined)
	}

	obj, err := d.res.ResolveDictKey(d.table.Trailer, "Root")
	if err != nil {
		return fmt.Errorf("resolving /Root: %w", err)
	}
	if obj == nil {
		return fmt.Errorf("%w: trailer has no /Root", core.ErrUndefined)
	}
	root, ok := obj.(*core.Dict)
	if !ok {
		core.Release(obj)
		return fmt.Errorf("%w: /Root is not a dictionary", core.ErrType)
	}

	catalog, err := pages.NewCatalog(root, d.res, d.diag)
	core.Release(root)
	if err != nil {
		return err
	}
	d.catalog = catalog

	treeRoot, err := catalog.Pages()
	if err != nil {
		return err
	}
	d.tree = pages.NewPageTree(treeRoot, d.res, d.diag)
	core.Release(treeRoot)
	return nil
}

// Close tears the session down: page tree, catalog, resolver cache, table,
// and the file handle when the session owns one.
func (d *Document) Close() error {
	if d.tree != nil {
		d.tree.Close()
		d.tree = nil
	}
	if d.catalog != nil {
		d.catalog.Close()
		d.catalog = nil
	}
	if d.res != nil {
		d.res.Close()
		d.res = nil
	}
	if d.table != nil {
		core.Release(d.table)
		d.table = nil
	}
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}

// Version returns the document version, honoring a catalog /Version
// override when it parses.
func (d *Document) Version() Version {
	if d.catalog != nil {
		if m := headerPattern.FindStringSubmatch("%PDF-" + d.catalog.Version()); m != nil {
			major, _ := strconv.Atoi(m[1])
			minor, _ := strconv.Atoi(m[2])
			return Version{Major: major, Minor: minor}
		}
	}
	return d.version
}

// PageCount returns the declared page count.
func (d *Document) PageCount() int {
	return d.tree.Count()
}

// Page returns the zero-based ordinal'th page. The caller closes it.
func (d *Document) Page(ordinal int) (*pages.Page, error) {
	return d.tree.Page(ordinal)
}

// Diagnostics exposes the accumulated error and warning flags.
func (d *Document) Diagnostics() *core.Diagnostics {
	return d.diag
}

// InterpretPage runs the page's content against dev. A page with multiple
// content streams is interpreted as one stream with the parts joined by a
// space, since operators may straddle part boundaries.
func (d *Document) InterpretPage(ordinal int, dev contentstream.Device) error {
	page, err := d.Page(ordinal)
	if err != nil {
		return err
	}
	defer page.Close()

	streams, err := page.Contents()
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range streams {
			core.Release(s)
		}
	}()

	var parts [][]byte
	for _, s := range streams {
		data, err := s.Decode()
		if err != nil {
			if derr := d.diag.Error(core.ErrFlagUnknownFilter, err); derr != nil {
				return derr
			}
			continue
		}
		parts = append(parts, data)
	}

	content := bytes.Join(parts, []byte(" "))
	return contentstream.New(dev, d.diag).Run(content)
}

// Info returns the document information dictionary with its text strings
// decoded, or nil when the trailer has none.
func (d *Document) Info() (map[string]string, error) {
	obj, err := d.res.ResolveDictKey(d.table.Trailer, "Info")
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	defer core.Release(obj)

	dict, ok := obj.(*core.Dict)
	if !ok {
		if derr := d.diag.Error(core.ErrFlagBadTrailer,
			fmt.Errorf("%w: /Info is not a dictionary", core.ErrType)); derr != nil {
			return nil, derr
		}
		return nil, nil
	}

	out := make(map[string]string, dict.Len())
	for _, key := range dict.Keys() {
		val, err := d.res.Resolve(dict.Get(key))
		if err != nil {
			continue
		}
		switch v := val.(type) {
		case core.String:
			out[key] = decodeTextString(v)
		case core.Name:
			out[key] = string(v)
		}
		core.Release(val)
	}
	return out, nil
}

// Report renders the end-of-session summary: version, page count, producer
// attribution when available, and each distinct error and warning kind
// once.
func (d *Document) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "version %s, %d pages\n", d.Version(), d.PageCount())

	if info, err := d.Info(); err == nil {
		if producer := info["Producer"]; producer != "" {
			fmt.Fprintf(&b, "producer: %s\n", producer)
		}
	}
	for _, e := range d.diag.Errors.Strings() {
		fmt.Fprintf(&b, "error: %s\n", e)
	}
	for _, w := range d.diag.Warnings.Strings() {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	return b.String()
}

// decodeTextString converts a text string to UTF-8. Strings carrying the
// UTF-16BE byte order mark are decoded as such; everything else is treated
// as a single-byte encoding.
func decodeTextString(s core.String) string {
	b := []byte(s)
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, err := dec.Bytes(b); err == nil {
			return string(out)
		}
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
