// Package sitemap discovers page URLs by walking a sitemap tree.
//
// A walk fetches one document per node, recurses into any nested sitemap
// references first, then appends the node's own URL records to a store. Each
// node is an independent unit of failure: a bad child never stops its siblings
// or its parent's own records, and every node's rows are appended as soon as
// that node finishes.
package sitemap
