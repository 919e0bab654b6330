// Package media implements the portable asset encoding shared by the capture
// ingest, session store, and generation clients: base64 data URLs with
// lossless round-tripping, MIME sniffing and acceptance policy, and the
// image constraints the style generator imposes on input photos.
package media
