package queue

import "strings"

var invalidFilenameChars = []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*"}

var reservedFilenames = []string{
	"CON", "PRN", "AUX", "NUL",
	"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
	"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
}

const maxFilenameLen = 255

// SanitizeFilename makes a display name safe to use as a local file name:
// path separators and other invalid characters become underscores, trailing
// dots and spaces are stripped, reserved device names are prefixed, and the
// result is capped at 255 bytes.
func SanitizeFilename(name string) string {
	safe := name
	for _, c := range invalidFilenameChars {
		safe = strings.ReplaceAll(safe, c, "_")
	}

	safe = strings.TrimRight(safe, ". ")
	if safe == "" {
		safe = "_"
	}

	upper := strings.ToUpper(safe)
	for _, reserved := range reservedFilenames {
		if upper == reserved || strings.HasPrefix(upper, reserved+".") {
			safe = "_" + safe

			break
		}
	}

	if len(safe) > maxFilenameLen {
		safe = safe[:maxFilenameLen]
	}

	return safe
}
