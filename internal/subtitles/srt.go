package subtitles

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Cue is one numbered subtitle entry.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

var (
	errEmptyPayload = errors.New("subtitle payload is empty")
	errJSONPayload  = errors.New("subtitle payload is a JSON document, not SRT")
	errNoCues       = errors.New("subtitle payload contains no valid cues")
	errNotUTF8      = errors.New("subtitle payload is not valid UTF-8")

	blockSeparator = regexp.MustCompile(`\n[ \t]*\n`)
)

// Decode converts a raw payload to UTF-8, honouring UTF-8 and UTF-16 byte
// order marks and normalizing line endings to LF.
func Decode(raw []byte) ([]byte, error) {
	utf16 := bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF})
	// The UTF-8 decoder substitutes U+FFFD for bad bytes, so reject them up front.
	if !utf16 && !utf8.Valid(raw) {
		return nil, errNotUTF8
	}
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return nil, fmt.Errorf("decode subtitle payload: %w", err)
	}
	decoded = bytes.ReplaceAll(decoded, []byte("\r\n"), []byte("\n"))
	decoded = bytes.ReplaceAll(decoded, []byte("\r"), []byte("\n"))
	return decoded, nil
}

// Parse extracts cues from a UTF-8 SRT document. Blocks that do not carry a
// numeric index, a timing line, and at least one line of text are skipped.
func Parse(data []byte) []Cue {
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil
	}
	blocks := blockSeparator.Split(content, -1)
	cues := make([]Cue, 0, len(blocks))
	for _, block := range blocks {
		cue, ok := parseBlock(block)
		if ok {
			cues = append(cues, cue)
		}
	}
	return cues
}

func parseBlock(block string) (Cue, bool) {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	if len(lines) < 3 {
		return Cue{}, false
	}
	index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || index < 0 {
		return Cue{}, false
	}
	start, end, err := parseTiming(lines[1])
	if err != nil {
		return Cue{}, false
	}
	text := strings.TrimSpace(strings.Join(lines[2:], "\n"))
	if text == "" {
		return Cue{}, false
	}
	return Cue{Index: index, Start: start, End: end, Text: text}, true
}

func parseTiming(line string) (time.Duration, time.Duration, error) {
	startText, rest, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, fmt.Errorf("missing arrow in %q", line)
	}
	// Position hints (X1:... Y1:...) may follow the end timestamp.
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("missing end timestamp in %q", line)
	}
	start, err := parseSRTTimestamp(startText)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseSRTTimestamp(fields[0])
	if err != nil {
		return 0, 0, err
	}
	if end < start {
		return 0, 0, fmt.Errorf("cue ends before it starts: %q", line)
	}
	return start, end, nil
}

func parseSRTTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty timestamp")
	}
	// Some producers emit a period instead of the standard comma.
	value = strings.Replace(value, ".", ",", 1)
	clock, millisText, ok := strings.Cut(value, ",")
	if !ok || len(millisText) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 || len(hms[1]) != 2 || len(hms[2]) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(millisText)
	if errH != nil || errM != nil || errS != nil || errMS != nil || minutes > 59 || seconds > 59 || hours < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}

// Validate decodes a payload and confirms it is a usable SRT document. The
// returned bytes are the normalized UTF-8 form that should be handed to the
// transcoder.
func Validate(raw []byte) ([]byte, []Cue, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, errEmptyPayload
	}
	decoded, err := Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	trimmed := bytes.TrimSpace(decoded)
	if len(trimmed) == 0 {
		return nil, nil, errEmptyPayload
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return nil, nil, errJSONPayload
	}
	cues := Parse(decoded)
	if len(cues) == 0 {
		return nil, nil, errNoCues
	}
	return decoded, cues, nil
}

// LastCueEnd returns the latest end time across cues.
func LastCueEnd(cues []Cue) time.Duration {
	var last time.Duration
	for _, cue := range cues {
		if cue.End > last {
			last = cue.End
		}
	}
	return last
}
