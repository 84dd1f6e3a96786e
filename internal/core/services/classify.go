package services

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

// allowedExtensions maps accepted file extensions to their category.
// The set is closed: anything not listed here is refused.
var allowedExtensions = map[string]domain.Category{
	// documents
	".pdf":  domain.CategoryDocuments,
	".doc":  domain.CategoryDocuments,
	".docx": domain.CategoryDocuments,
	".odt":  domain.CategoryDocuments,
	".rtf":  domain.CategoryDocuments,
	".md":   domain.CategoryDocuments,
	".txt":  domain.CategoryDocuments,

	// images
	".png":  domain.CategoryImages,
	".jpg":  domain.CategoryImages,
	".jpeg": domain.CategoryImages,
	".gif":  domain.CategoryImages,
	".webp": domain.CategoryImages,
	".bmp":  domain.CategoryImages,

	// videos
	".mp4":  domain.CategoryVideos,
	".mov":  domain.CategoryVideos,
	".mkv":  domain.CategoryVideos,
	".avi":  domain.CategoryVideos,
	".webm": domain.CategoryVideos,

	// tabular
	".csv": domain.CategoryCSV,
	".tsv": domain.CategoryCSV,
}

// rejectedExtensions holds extensions refused with an explicit reason.
// Everything else outside the allow list is refused generically.
var rejectedExtensions = map[string]string{
	// audio
	".mp3":  "audio files are not supported",
	".wav":  "audio files are not supported",
	".flac": "audio files are not supported",
	".m4a":  "audio files are not supported",
	".ogg":  "audio files are not supported",

	// executables
	".exe": "executables are not allowed in the vault",
	".msi": "executables are not allowed in the vault",
	".bat": "executables are not allowed in the vault",
	".com": "executables are not allowed in the vault",
	".app": "executables are not allowed in the vault",

	// archives
	".zip": "archives are not supported, drop the files inside instead",
	".tar": "archives are not supported, drop the files inside instead",
	".gz":  "archives are not supported, drop the files inside instead",
	".rar": "archives are not supported, drop the files inside instead",
	".7z":  "archives are not supported, drop the files inside instead",

	// system files
	".dll":   "system files are not supported",
	".sys":   "system files are not supported",
	".so":    "system files are not supported",
	".dylib": "system files are not supported",
	".tmp":   "system files are not supported",
}

// urlPattern recognises pasted links.
var urlPattern = regexp.MustCompile(`^(https?://|www\.)\S+$`)

// codeTokens are substrings that strongly suggest source code.
var codeTokens = []string{
	"func ", "def ", "class ", "import ", "package ", "return ",
	"const ", "var ", "let ", "=>", "#include", "SELECT ", "select * from",
}

// mimeTypes maps known extensions to their informational MIME type.
var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":  "application/vnd.oasis.opendocument.text",
	".rtf":  "application/rtf",
	".md":   "text/markdown",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
}

// ClassifyFile maps a file path onto a category via its extension.
// Returns domain.ErrFileRejected with a readable reason when the
// extension is rejected or unknown.
func ClassifyFile(path string) (domain.Category, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", fmt.Errorf("%w: file has no extension", domain.ErrFileRejected)
	}
	if reason, ok := rejectedExtensions[ext]; ok {
		return "", fmt.Errorf("%w: %s", domain.ErrFileRejected, reason)
	}
	category, ok := allowedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s files are not supported", domain.ErrFileRejected, ext)
	}
	return category, nil
}

// IsURL reports whether pasted or typed text is a link.
func IsURL(text string) bool {
	return urlPattern.MatchString(strings.TrimSpace(text))
}

// ClassifyText chooses among code, notes, and ideas for a text payload.
// Links are detected separately with IsURL before this runs.
func ClassifyText(text string) domain.Category {
	trimmed := strings.TrimSpace(text)

	if looksLikeCode(trimmed) {
		return domain.CategoryCode
	}

	// Longer structured writing lands in notes; short thoughts in ideas.
	if len(trimmed) > 200 || strings.Count(trimmed, "\n") >= 2 || hasBulletLines(trimmed) {
		return domain.CategoryNotes
	}

	return domain.CategoryIdeas
}

// looksLikeCode applies keyword and structural-character heuristics.
func looksLikeCode(text string) bool {
	for _, token := range codeTokens {
		if strings.Contains(text, token) {
			return true
		}
	}

	// Structural characters dominate real code even without keywords.
	structural := 0
	for _, r := range text {
		switch r {
		case '{', '}', ';', '<', '>', '=', '(', ')':
			structural++
		}
	}
	return len(text) > 0 && strings.Contains(text, "\n") &&
		float64(structural)/float64(len(text)) > 0.04
}

// hasBulletLines reports whether the text contains list-style lines.
func hasBulletLines(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") ||
			strings.HasPrefix(line, "#") {
			return true
		}
	}
	return false
}

// DeriveTitle produces a short human-readable label from text content.
func DeriveTitle(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	const maxTitle = 80
	if len(line) > maxTitle {
		line = strings.TrimSpace(line[:maxTitle]) + "…"
	}
	return line
}

// MIMEFromPath derives the informational MIME type from the extension.
func MIMEFromPath(path string) string {
	if m, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "application/octet-stream"
}
