// Package archive exports computations and the algorithms they use to a
// file before they are disposed of.
//
// The format follows the file extension: ".yaml" and ".yml" produce YAML,
// anything else produces the XML database-export layout.
package archive
