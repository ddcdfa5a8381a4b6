// Package timecode converts wall-clock timestamps into the frame-accurate
// HH:MM:SS:FF timecodes that transcoders expect for input clipping.
package timecode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultFrameRate is used when callers pass a frame rate <= 0.
const DefaultFrameRate = 30

const microsPerSecond = 1_000_000

// ErrMalformed is returned (wrapped) when an input string does not parse
// as HH:MM:SS with an optional fractional-second component.
var ErrMalformed = errors.New("malformed wall-clock time")

// ToTimecode converts a wall-clock timestamp "HH:MM:SS[.ffffff]" to a
// frame-based timecode "HH:MM:SS:FF" at the given frame rate. The frame
// component is the fractional seconds quantized to whole frames (floor).
func ToTimecode(wallClock string, frameRate int) (string, error) {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	micros, err := parseWallClock(wallClock)
	if err != nil {
		return "", err
	}
	return format(micros, frameRate), nil
}

// AddDuration returns the frame-based timecode of start + duration, carrying
// second/minute/hour overflow with standard clock arithmetic. Both arguments
// use the same "HH:MM:SS[.ffffff]" form accepted by ToTimecode.
func AddDuration(start, duration string, frameRate int) (string, error) {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	startMicros, err := parseWallClock(start)
	if err != nil {
		return "", fmt.Errorf("start: %w", err)
	}
	durMicros, err := parseWallClock(duration)
	if err != nil {
		return "", fmt.Errorf("duration: %w", err)
	}
	return format(startMicros+durMicros, frameRate), nil
}

// SecondsToTimecode returns the timecode for a whole number of seconds.
// The frame component is always 00.
func SecondsToTimecode(totalSeconds int) string {
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d:00", h, m, s)
}

// parseWallClock parses "HH:MM:SS[.ffffff]" into total microseconds.
// Fractional digits beyond six are truncated.
func parseWallClock(wallClock string) (int64, error) {
	parts := strings.Split(wallClock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, wallClock)
	}

	h, err := parseField(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, wallClock)
	}
	m, err := parseField(parts[1])
	if err != nil || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, wallClock)
	}

	secPart := parts[2]
	frac := ""
	if i := strings.IndexByte(secPart, '.'); i >= 0 {
		secPart, frac = secPart[:i], secPart[i+1:]
	}
	s, err := parseField(secPart)
	if err != nil || s > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, wallClock)
	}

	micros := int64(h)*3600*microsPerSecond + int64(m)*60*microsPerSecond + int64(s)*microsPerSecond
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		f, err := strconv.Atoi(frac)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, wallClock)
		}
		// Scale to microseconds: ".5" is 500000, ".123" is 123000.
		for i := len(frac); i < 6; i++ {
			f *= 10
		}
		micros += int64(f)
	}

	return micros, nil
}

func parseField(s string) (int, error) {
	if s == "" {
		return 0, ErrMalformed
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, ErrMalformed
	}
	return n, nil
}

// format renders total microseconds as HH:MM:SS:FF. Quantizing the
// sub-second remainder with integer math keeps the frame field strictly
// below the frame rate; a fraction that would round up to a full second
// has already carried into the seconds total.
func format(totalMicros int64, frameRate int) string {
	totalSeconds := totalMicros / microsPerSecond
	frames := (totalMicros % microsPerSecond) * int64(frameRate) / microsPerSecond

	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", h, m, s, frames)
}
