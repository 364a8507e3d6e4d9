package domain

// MediaData is the media metadata persisted inside a message document.
type MediaData struct {
	Mime   string `json:"mime"`
	Name   string `json:"name"` // "<message_id>.<ext>"
	SHA256 string `json:"sha256,omitempty"`
	Size   int    `json:"size,omitempty"`
}

// MediaContent is the raw media payload, persisted separately under the
// case's media/ directory rather than inline in the message document.
type MediaContent struct {
	Mime    string `json:"mime"`
	Content []byte `json:"-"`
}

// NewMediaData builds the metadata for inbound media content, deriving the
// checksum and size from the bytes themselves.
func NewMediaData(mime, name string, content []byte) *MediaData {
	return &MediaData{
		Mime:   mime,
		Name:   name,
		SHA256: SHA256Hex(content),
		Size:   len(content),
	}
}
