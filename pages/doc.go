// Package pages walks the document catalog and page tree.
//
// Pages are located by ordinal without flattening the tree: intermediate
// nodes declare how many leaves they hold, so whole subtrees are skipped by
// arithmetic. The located leaf is returned as a merged copy with the
// inheritable attributes (Resources, MediaBox, CropBox, Rotate) filled in
// from the closest ancestor that carries them; the stored objects are never
// rewritten. Once a leaf has been visited its /Kids slot is replaced with a
// small stub holding only the reference, so repeated sweeps over a large
// document do not keep every visited page alive.
package pages
