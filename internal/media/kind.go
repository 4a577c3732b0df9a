package media

import (
	"net/url"
	"path"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// filetype only registers one extension per type.
var extAliases = map[string]string{
	"jpeg": "jpg",
	"tiff": "tif",
}

// KindOf classifies a media reference (URL or object key) by its extension.
// Query strings, as found on presigned URLs, are ignored.
func KindOf(ref string) Kind {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if ext == "" {
		return KindUnknown
	}
	if alias, ok := extAliases[ext]; ok {
		ext = alias
	}

	t := filetype.GetType(ext)
	if t == types.Unknown {
		return KindUnknown
	}

	switch t.MIME.Type {
	case "image":
		return KindImage
	case "video":
		return KindVideo
	}
	return KindUnknown
}

// Split partitions refs into images and videos, dropping anything else.
func Split(refs []string) (images, videos []string) {
	for _, ref := range refs {
		switch KindOf(ref) {
		case KindImage:
			images = append(images, ref)
		case KindVideo:
			videos = append(videos, ref)
		}
	}
	return images, videos
}
