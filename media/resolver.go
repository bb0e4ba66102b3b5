// Package media talks to the external image host and maps stored cover URLs
// back to the host's own identifiers.
package media

import (
	"strings"
	"time"
)

// Asset is one stored object on the media host.
type Asset struct {
	PublicID  string    `json:"public_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	Bytes     int64     `json:"bytes"`
}

// Resolver derives host identifiers from delivery URLs. All methods are pure
// string transforms; nothing here performs I/O.
type Resolver struct {
	folder string
}

// NewResolver creates a resolver for covers stored under the given folder.
func NewResolver(folder string) *Resolver {
	return &Resolver{folder: folder}
}

// PublicIDFromURL extracts the host-side identifier from a delivery URL.
// Delivery URLs look like
//
//	https://res.cloudinary.com/<cloud>/image/upload/v12345/blog-images/name.jpg
//
// so we take the last path segment, drop any prefix before the last
// underscore, strip the file extension and re-attach the folder. Returns
// ok=false for URLs that do not belong to the media host.
func (rs *Resolver) PublicIDFromURL(url string) (string, bool) {
	if url == "" || !strings.Contains(url, "cloudinary") {
		return "", false
	}

	parts := strings.Split(url, "/")
	last := parts[len(parts)-1]
	if last == "" {
		return "", false
	}

	underscored := strings.Split(last, "_")
	filename := underscored[len(underscored)-1]

	name := strings.SplitN(filename, ".", 2)[0]
	if name == "" {
		return "", false
	}

	return rs.folder + "/" + name, true
}

// Folder returns the folder every cover lives under.
func (rs *Resolver) Folder() string {
	return rs.folder
}
