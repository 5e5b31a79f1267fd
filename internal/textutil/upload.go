package textutil

import (
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

// audioExtensions lists the containers ffmpeg is asked to decode.
var audioExtensions = map[string]struct{}{
	".m4a": {}, ".mp3": {}, ".wav": {}, ".webm": {}, ".ogg": {},
	".aac": {}, ".flac": {}, ".mp4": {},
}

const unsafeNameChars = `:*?"<>|`

// UploadBaseName reduces a client-supplied file name to its last path
// segment. Both separators count since some browsers send Windows paths.
// Control characters and characters unsafe on common filesystems are dropped.
func UploadBaseName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(unsafeNameChars, r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// AudioExtension returns the lowercased extension of name, dot included,
// when it names a supported audio container.
func AudioExtension(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(UploadBaseName(name)))
	if _, ok := audioExtensions[ext]; !ok {
		return "", false
	}
	return ext, true
}

// AudioExtensions lists the supported extensions in sorted order.
func AudioExtensions() []string {
	out := make([]string, 0, len(audioExtensions))
	for ext := range audioExtensions {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}
