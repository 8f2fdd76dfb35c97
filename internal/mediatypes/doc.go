// Package mediatypes maps file extensions to media types and MIME types.
//
// It is a dependency-free foundation imported by the runner and the
// thumbnail builder. Mappings record the MIME type derived from the file
// extension when a file is first dropped into the virtual tree, and only
// the image class is materialized as catalog content:
//
//	mime := mediatypes.MimeTypeForPath("Vacation/beach.png") // "image/png"
//	mediatypes.IsContentMimeType(mime)                      // true
package mediatypes
