// Package version compares firmware versions and decides whether a device is
// eligible for an over-the-air update.
package version

import (
	"errors"
	"fmt"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Current is the version of this client.
const Current = "0.3.0"

// ImageExt is the suffix of firmware image objects.
const ImageExt = ".bin"

// ErrImageName is returned for object keys that are not firmware images.
var ErrImageName = errors.New("not a firmware image name")

// segments splits a dotted version into numbers. An empty segment counts as
// zero and a segment that is not a number is NaN, which compares neither
// greater nor less than anything.
func segments(v string) []float64 {
	parts := strings.Split(v, ".")
	out := make([]float64, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseFloat(p, 64)
		if err != nil {
			n = math.NaN()
		}
		out[i] = n
	}
	return out
}

// IsGreater reports whether a is newer than b.
//
// Segments are compared left to right over the segments of a. A segment
// missing from b or not a number on either side is skipped, so "1.2.1" is
// not greater than "1.2" and "1.2" is not greater than "1.2.0". Empty
// segments are zero and negative segments compare as numbers: "1..1" is
// greater than "1.0.0" and "1.-1" is less than "1.0".
func IsGreater(a, b string) bool {
	sa, sb := segments(a), segments(b)
	for i, x := range sa {
		if i >= len(sb) {
			continue
		}
		y := sb[i]
		if x > y {
			return true
		}
		if x < y {
			return false
		}
	}
	return false
}

// FromImageName returns the version encoded in a firmware image object key,
// for example "fw/1.2.0.bin" gives "1.2.0".
func FromImageName(name string) (string, error) {
	base := path.Base(name)
	if !strings.HasSuffix(base, ImageExt) {
		return "", fmt.Errorf("%w: %q", ErrImageName, name)
	}
	v := strings.TrimSuffix(base, ImageExt)
	if v == "" {
		return "", fmt.Errorf("%w: %q", ErrImageName, name)
	}
	return v, nil
}

// UpdateAvailable reports whether latestImage carries a newer version than
// the one the device runs.
func UpdateAvailable(latestImage, deviceVersion string) (bool, error) {
	latest, err := FromImageName(latestImage)
	if err != nil {
		return false, err
	}
	return IsGreater(latest, deviceVersion), nil
}

// Latest returns the image with the newest version among names. Keys that
// are not images are ignored. It returns false when there is none.
func Latest(names []string) (string, bool) {
	type image struct {
		name, version string
	}
	var images []image
	for _, n := range names {
		v, err := FromImageName(n)
		if err != nil {
			continue
		}
		images = append(images, image{n, v})
	}
	if len(images) == 0 {
		return "", false
	}
	sort.SliceStable(images, func(i, j int) bool {
		return IsGreater(images[j].version, images[i].version)
	})
	return images[len(images)-1].name, true
}
