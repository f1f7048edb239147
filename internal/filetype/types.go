package filetype

import (
	"strings"
)

// KnownType is a MIME type the filter UI offers by name.
type KnownType struct {
	MIMEType   string
	Label      string
	Extensions []string
}

// KnownTypes is the catalogue of selectable file types, in display order.
var KnownTypes = []KnownType{
	{"application/pdf", "PDF", []string{".pdf"}},
	{"image/png", "PNG Image", []string{".png"}},
	{"image/jpeg", "JPEG Image", []string{".jpg", ".jpeg"}},
	{"image/gif", "GIF Image", []string{".gif"}},
	{"text/plain", "Text File", []string{".txt"}},
	{"text/x-python", "Python", []string{".py"}},
	{"application/json", "JSON", []string{".json"}},
	{"text/csv", "CSV", []string{".csv"}},
	{"text/markdown", "Markdown", []string{".md"}},
	{"application/parquet", "Parquet", []string{".parquet"}},
	{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "Excel (.xlsx)", []string{".xlsx"}},
	{"application/vnd.ms-excel", "Excel (.xls)", []string{".xls"}},
	{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "Word (.docx)", []string{".docx"}},
	{"application/msword", "Word (.doc)", []string{".doc"}},
	{"application/vnd.ms-powerpoint", "PowerPoint (.ppt)", []string{".ppt"}},
	{"application/vnd.openxmlformats-officedocument.presentationml.presentation", "PowerPoint (.pptx)", []string{".pptx"}},
	{"application/zip", "ZIP Archive", []string{".zip"}},
	{"application/x-rar-compressed", "RAR Archive", []string{".rar"}},
	{"application/x-7z-compressed", "7-Zip Archive", []string{".7z"}},
	{"application/x-tar", "TAR Archive", []string{".tar"}},
	{"application/gzip", "GZIP Archive", []string{".gz"}},
	{"application/xml", "XML", []string{".xml"}},
	{"text/html", "HTML", []string{".html", ".htm"}},
	{"text/css", "CSS", []string{".css"}},
	{"application/javascript", "JavaScript", []string{".js"}},
	{"application/typescript", "TypeScript", []string{".ts"}},
	{"text/x-java-source", "Java", []string{".java"}},
	{"text/x-c", "C", []string{".c"}},
	{"text/x-c++", "C++", []string{".cpp"}},
	{"text/x-c-header", "C Header", []string{".h"}},
	{"text/x-c++-header", "C++ Header", []string{".hpp"}},
	{"text/x-go", "Go", []string{".go"}},
	{"text/x-rust", "Rust", []string{".rs"}},
	{"text/x-ruby", "Ruby", []string{".rb"}},
	{"text/x-php", "PHP", []string{".php"}},
	{"text/x-shellscript", "Shell Script", []string{".sh"}},
	{"application/x-msdos-program", "Batch File", []string{".bat"}},
	{"application/x-powershell", "PowerShell", []string{".ps1"}},
	{"application/sql", "SQL", []string{".sql"}},
	{"application/x-yaml", "YAML", []string{".yaml", ".yml"}},
	{"application/toml", "TOML", []string{".toml"}},
}

// LookupMIME returns the known type with the given MIME type.
func LookupMIME(mime string) (KnownType, bool) {
	m := normalize(mime)
	for _, t := range KnownTypes {
		if t.MIMEType == m {
			return t, true
		}
	}
	return KnownType{}, false
}

// LookupExtension returns the known type for a file extension. The leading
// dot is optional.
func LookupExtension(ext string) (KnownType, bool) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return KnownType{}, false
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, t := range KnownTypes {
		for _, e := range t.Extensions {
			if e == ext {
				return t, true
			}
		}
	}
	return KnownType{}, false
}

// IsKnown reports whether mime is in the catalogue.
func IsKnown(mime string) bool {
	_, ok := LookupMIME(mime)
	return ok
}

// DescribeMIME returns the catalogue label for mime, falling back to the
// label of its category.
func DescribeMIME(mime string) string {
	if t, ok := LookupMIME(mime); ok {
		return t.Label
	}
	return Classify(mime).Label()
}
