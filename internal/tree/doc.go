// Package tree implements the bookmark tree engine: traversal, structural
// mutation, unique slug generation, and the public projection.
//
// Every function operates on an in-memory tree and performs no I/O. Callers load
// a tree, run one operation, and persist the whole tree if it changed.
//
// Lookups are depth-first and pre-order: the root is checked first, then each
// child subtree in insertion order. When a mutation targets a slug, only the
// first match in that order is touched.
package tree
