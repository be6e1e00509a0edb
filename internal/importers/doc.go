// Package importers reads recorded sessions from on-disk export
// formats into the dataset object model. Importing is cheap: only
// prompt and metadata files are parsed eagerly, while sample data
// stays on disk behind readers that the dataset containers invoke on
// first access.
//
// A recording with crucial files missing is still listed, but marked
// excluded, so a session's on-disk contents and its recording list
// always correspond one to one.
package importers
