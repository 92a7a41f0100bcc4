package stream

import (
	"fmt"
	"strconv"
	"strings"

	"burnin/internal/services"
	"burnin/internal/storage"
)

// ParseRange interprets a Range header against an artifact of size bytes.
//
// It returns ok=false when header is empty, meaning the full body should be
// served. Supported forms are bytes=start-end, bytes=start- and bytes=-N.
// An end past the artifact is clamped to the last byte. A start at or past
// size, a start after end, a malformed header, or multiple ranges yield an
// error wrapping services.ErrRangeNotSatisfiable.
func ParseRange(header string, size int64) (storage.ByteRange, bool, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return storage.ByteRange{}, false, nil
	}
	unsatisfiable := func(reason string) (storage.ByteRange, bool, error) {
		return storage.ByteRange{}, false, services.Wrap(services.ErrRangeNotSatisfiable, "stream", "parse range",
			fmt.Sprintf("%s (%q, size %d)", reason, header, size), nil)
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return unsatisfiable("unsupported range unit")
	}
	spec = strings.TrimSpace(spec)
	if strings.Contains(spec, ",") {
		return unsatisfiable("multiple ranges are not supported")
	}
	startRaw, endRaw, ok := strings.Cut(spec, "-")
	if !ok {
		return unsatisfiable("malformed range")
	}
	startRaw = strings.TrimSpace(startRaw)
	endRaw = strings.TrimSpace(endRaw)

	if startRaw == "" {
		// Suffix form: the last N bytes.
		n, err := strconv.ParseInt(endRaw, 10, 64)
		if err != nil || n <= 0 {
			return unsatisfiable("malformed suffix range")
		}
		if size == 0 {
			return unsatisfiable("empty artifact")
		}
		if n > size {
			n = size
		}
		return storage.ByteRange{Start: size - n, End: size - 1}, true, nil
	}

	start, err := strconv.ParseInt(startRaw, 10, 64)
	if err != nil || start < 0 {
		return unsatisfiable("malformed range start")
	}
	if start >= size {
		return unsatisfiable("range start beyond end of artifact")
	}
	end := size - 1
	if endRaw != "" {
		end, err = strconv.ParseInt(endRaw, 10, 64)
		if err != nil || end < 0 {
			return unsatisfiable("malformed range end")
		}
		if end < start {
			return unsatisfiable("range end before start")
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return storage.ByteRange{Start: start, End: end}, true, nil
}

// ContentRange renders the Content-Range header value for rng.
func ContentRange(rng storage.ByteRange, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, size)
}
