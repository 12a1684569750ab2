// Package catalog enumerates the fixed set of files that make up the SINS
// dataset. Each recording node is a Group with its own Zenodo record; a
// group expands to its audio part archives, license.pdf and, for most
// groups, readme.txt.
//
// Build is pure enumeration apart from creating the per-group destination
// directories. It never touches the network.
package catalog
