// Package media generates thumbnails for catalog content.
//
// ThumbnailGenerator implements vfs.ThumbnailBuilder. Thumbnails are JPEGs
// fitted into a 200x200 box and stored in the cache directory under a random
// 32-digit key; the key is kept on the content record so a later rebuild
// overwrites the same file. Decoding goes through libvips when InitVips has
// been called and falls back to the imaging package.
package media
