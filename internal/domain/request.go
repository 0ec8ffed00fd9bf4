package domain

import (
	"encoding/json"
	"strings"
)

// ImageSize is the output size class requested from the generative provider.
type ImageSize string

const (
	ImageSize1K ImageSize = "1K"
	ImageSize2K ImageSize = "2K"
	ImageSize4K ImageSize = "4K"

	DefaultImageSize = ImageSize2K
)

// NormalizeImageSize coerces free-form input to a supported size class.
// Unknown or empty values fall back to DefaultImageSize.
func NormalizeImageSize(raw string) ImageSize {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(ImageSize1K):
		return ImageSize1K
	case string(ImageSize2K):
		return ImageSize2K
	case string(ImageSize4K):
		return ImageSize4K
	default:
		return DefaultImageSize
	}
}

// DefaultAspectRatio is applied when a request omits aspectRatio.
const DefaultAspectRatio = "3:4"

var supportedAspectRatios = map[string]struct{}{
	"1:1": {}, "2:3": {}, "3:2": {}, "3:4": {}, "4:3": {},
	"4:5": {}, "5:4": {}, "9:16": {}, "16:9": {}, "21:9": {},
}

// NormalizeAspectRatio returns raw when supported, DefaultAspectRatio otherwise.
func NormalizeAspectRatio(raw string) string {
	ratio := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if _, ok := supportedAspectRatios[ratio]; ok {
		return ratio
	}
	return DefaultAspectRatio
}

// GenerationRequest is one desired output image. Contents is forwarded to the
// provider untouched.
type GenerationRequest struct {
	Contents json.RawMessage `json:"contents"`
}
