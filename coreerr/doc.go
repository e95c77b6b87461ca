// Package coreerr defines the tagged error taxonomy shared by every
// go-actorvm component, mirroring the emilua.core category from the design's
// error handling section.
package coreerr
