package transform

import (
	"fmt"
	"strings"

	"burnin/internal/services"
)

// Resolution is a named output size.
type Resolution string

const (
	Resolution360p  Resolution = "360p"
	Resolution480p  Resolution = "480p"
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

var dimensions = map[Resolution][2]int{
	Resolution360p:  {640, 360},
	Resolution480p:  {854, 480},
	Resolution720p:  {1280, 720},
	Resolution1080p: {1920, 1080},
}

// Resolutions lists the supported resolutions from smallest to largest.
func Resolutions() []Resolution {
	return []Resolution{Resolution360p, Resolution480p, Resolution720p, Resolution1080p}
}

// ParseResolution maps a label such as "720p" onto a Resolution. Unknown
// labels are tagged services.ErrInvalidResolution.
func ParseResolution(label string) (Resolution, error) {
	r := Resolution(strings.ToLower(strings.TrimSpace(label)))
	if _, ok := dimensions[r]; !ok {
		return "", services.Wrap(services.ErrInvalidResolution, "validate", "resolution",
			fmt.Sprintf("%q is not one of 360p, 480p, 720p, 1080p", label), nil)
	}
	return r, nil
}

// Dimensions returns the target width and height.
func (r Resolution) Dimensions() (int, int) {
	d := dimensions[r]
	return d[0], d[1]
}

// Size renders the dimensions as WIDTHxHEIGHT.
func (r Resolution) Size() string {
	w, h := r.Dimensions()
	return fmt.Sprintf("%dx%d", w, h)
}

func (r Resolution) String() string {
	return string(r)
}

// ValidateQuality checks a CRF value against the 0..51 scale.
func ValidateQuality(q int) error {
	if q < MinQuality || q > MaxQuality {
		return services.Wrap(services.ErrInvalidInput, "validate", "quality",
			fmt.Sprintf("crf %d outside %d..%d", q, MinQuality, MaxQuality), nil)
	}
	return nil
}

// CRF bounds.
const (
	MinQuality = 0
	MaxQuality = 51
)
