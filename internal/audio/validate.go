package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lifewrapped/lw-engine/internal/model"
)

// Containers the recognition backends accept.
var supportedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".webm": true,
}

// Validate checks that path points at an existing, readable audio file in a
// supported container. Returns AudioFileNotFound or InvalidAudioFormat.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return model.NewAudioFileNotFound(path)
	}
	if info.IsDir() {
		return model.NewInvalidAudioFormat(fmt.Sprintf("%s is a directory", filepath.Base(path)))
	}
	if info.Size() == 0 {
		return model.NewInvalidAudioFormat(fmt.Sprintf("%s is empty", filepath.Base(path)))
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return model.NewInvalidAudioFormat(fmt.Sprintf("unsupported extension %q", ext))
	}

	f, err := os.Open(path)
	if err != nil {
		return model.NewAudioFileNotFound(path)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return model.NewInvalidAudioFormat(err.Error())
	}
	header = header[:n]

	if !headerMatches(ext, header) {
		return model.NewInvalidAudioFormat(fmt.Sprintf("%s does not look like %s audio", filepath.Base(path), ext))
	}
	return nil
}

// headerMatches sniffs container magic bytes. Extensions without a reliable
// magic (mp3 with leading junk) accept any header.
func headerMatches(ext string, header []byte) bool {
	switch ext {
	case ".wav":
		return len(header) >= 12 &&
			bytes.HasPrefix(header, []byte("RIFF")) &&
			bytes.Equal(header[8:12], []byte("WAVE"))
	case ".flac":
		return bytes.HasPrefix(header, []byte("fLaC"))
	case ".ogg", ".opus":
		return bytes.HasPrefix(header, []byte("OggS"))
	case ".m4a", ".mp4":
		return len(header) >= 8 && bytes.Equal(header[4:8], []byte("ftyp"))
	default:
		return true
	}
}
