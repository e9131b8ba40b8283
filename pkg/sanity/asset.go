package sanity

import (
	"encoding/json"
	"mime"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// AssetKind selects the assets endpoint.
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetFile  AssetKind = "file"
)

// Endpoint returns the path segment for the kind, "images" or "files".
func (k AssetKind) Endpoint() string {
	if k == AssetFile {
		return "files"
	}

	return "images"
}

// AssetUploadRequest describes a binary to upload.
type AssetUploadRequest struct {
	// Source is a local path or an http(s) URL.
	Source string
	// MIMEType overrides detection.
	MIMEType string
	// Kind selects images or files. Empty infers it from the MIME type.
	Kind AssetKind
	// Filename is stored as originalFilename. Defaults to the source base name.
	Filename string
	Label    string
	Title    string
}

// IsRemote reports whether Source is a URL to download first.
func (r *AssetUploadRequest) IsRemote() bool {
	s := strings.ToLower(r.Source)

	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// BaseName returns Filename or the last path element of Source.
func (r *AssetUploadRequest) BaseName() string {
	if r.Filename != "" {
		return r.Filename
	}

	src := r.Source
	if r.IsRemote() {
		if i := strings.IndexAny(src, "?#"); i >= 0 {
			src = src[:i]
		}
	}

	base := path.Base(strings.ReplaceAll(src, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}

	return base
}

// Validate checks the request before any I/O.
func (r *AssetUploadRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Source, validation.Required),
		validation.Field(&r.Kind, validation.In(AssetImage, AssetFile)),
	)
	if err != nil {
		return &ValidationError{Err: err}
	}

	return nil
}

// GuessMIMEType returns the media type implied by name's extension, or "".
func GuessMIMEType(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}

	t := mime.TypeByExtension(strings.ToLower(ext))
	if t == "" {
		return ""
	}

	media, _, err := mime.ParseMediaType(t)
	if err != nil {
		return t
	}

	return media
}

// KindForMIMEType returns AssetImage for image/* types and AssetFile otherwise.
func KindForMIMEType(mimeType string) AssetKind {
	if strings.HasPrefix(mimeType, "image/") {
		return AssetImage
	}

	return AssetFile
}

// AssetDocument is the stored asset.
type AssetDocument struct {
	ID               string         `json:"_id"`
	Type             string         `json:"_type"`
	URL              string         `json:"url"`
	Path             string         `json:"path"`
	Size             int64          `json:"size"`
	SHA1Hash         string         `json:"sha1hash"`
	Extension        string         `json:"extension"`
	MIMEType         string         `json:"mimeType"`
	OriginalFilename string         `json:"originalFilename,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// AssetResponse is the result of an upload.
type AssetResponse struct {
	Document AssetDocument `json:"document"`

	Raw json.RawMessage `json:"-"`
}

type assetResponseAlias AssetResponse

// ParseAssetResponse decodes an upload response body.
func ParseAssetResponse(status int, body []byte) (*AssetResponse, error) {
	var out assetResponseAlias

	err := json.Unmarshal(body, &out)
	if err != nil {
		return nil, &ParseError{StatusCode: status, Body: body, Err: err}
	}

	res := AssetResponse(out)
	res.Raw = append(json.RawMessage(nil), body...)

	return &res, nil
}

// MarshalJSON returns the original body when available.
func (r AssetResponse) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}

	return json.Marshal(assetResponseAlias(r))
}
