package catalog

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// MaxPhotoBytes caps every uploaded image.
const MaxPhotoBytes = 5 * 1024 * 1024

// Photo form fields.
const (
	FieldPrimaryPhoto    = "primaryPhoto"
	FieldSecondaryPhotos = "secondaryPhotos"
	FieldNewBrandLogo    = "newBrandLogoFile"
)

var acceptedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// Photo is an uploaded image attached to a watch form.
type Photo struct {
	Field       string
	Filename    string
	Content     []byte
	ContentType string
}

// DetectPhoto sniffs the upload and rejects anything but jpeg, png or webp
// up to MaxPhotoBytes. The declared content type is ignored.
func DetectPhoto(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("file is empty")
	}
	if len(content) > MaxPhotoBytes {
		return "", fmt.Errorf("each file must be less than 5MB")
	}
	detected := mimetype.Detect(content)
	for _, accepted := range acceptedImageTypes {
		if detected.Is(accepted) {
			return accepted, nil
		}
	}
	return "", fmt.Errorf("only .jpg, .jpeg, .png, .webp files are allowed (got %s)", detected.String())
}

func photosFor(photos []Photo, field string) []Photo {
	var out []Photo
	for _, p := range photos {
		if p.Field == field {
			out = append(out, p)
		}
	}
	return out
}
