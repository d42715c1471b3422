package config

// Default folder names used when the configuration does not override them
const (
	DefaultOthersCategory      = "Others"
	DefaultNoExtensionCategory = "NoExtension"
	DefaultDuplicatesCategory  = "Duplicates"
	DefaultSampleSize          = 16 * 1024
	DefaultIntervalMinutes     = 60
)

// DefaultCategories returns the built-in category table
func DefaultCategories() Categories {
	return Categories{
		{Name: "Images", Extensions: []string{"png", "jpg", "jpeg", "gif", "bmp", "webp", "svg", "heic", "tiff"}},
		{Name: "Documents", Extensions: []string{"pdf", "docx", "doc", "odt", "rtf", "txt", "md", "xlsx", "xls", "csv", "pptx", "ppt"}},
		{Name: "Videos", Extensions: []string{"mp4", "mkv", "avi", "mov", "webm", "wmv"}},
		{Name: "Music", Extensions: []string{"mp3", "wav", "m4a", "flac", "aac", "ogg"}},
		{Name: "Archives", Extensions: []string{"zip", "rar", "7z", "tar", "gz", "bz2", "xz"}},
	}
}

// DefaultSubfolders returns the built-in split of Documents by document type
func DefaultSubfolders() map[string]map[string]string {
	return map[string]map[string]string{
		"Documents": {
			"pdf":  "PDFs",
			"doc":  "Word",
			"docx": "Word",
			"odt":  "Word",
			"rtf":  "Word",
			"xls":  "Excel",
			"xlsx": "Excel",
			"csv":  "Excel",
			"ppt":  "PowerPoint",
			"pptx": "PowerPoint",
			"txt":  "Text",
			"md":   "Text",
		},
	}
}

// GetDefault returns the default configuration
func GetDefault() *Config {
	return &Config{
		Categories:          DefaultCategories(),
		Subfolders:          DefaultSubfolders(),
		OthersCategory:      DefaultOthersCategory,
		NoExtensionCategory: DefaultNoExtensionCategory,
		Duplicates: DuplicatesConfig{
			Enabled:    true,
			Category:   DefaultDuplicatesCategory,
			SampleSize: "16KB",
			MinSize:    "0B",
			SampleHash: "sha256",
			Workers:    0,
		},
		Mover: MoverConfig{
			Workers: 0,
			DryRun:  false,
		},
		ExcludePatterns: []string{},
		IncludeHidden:   false,
		ProtectedPaths: []string{
			"/",
			"/bin",
			"/boot",
			"/dev",
			"/etc",
			"/lib",
			"/lib64",
			"/proc",
			"/root",
			"/sbin",
			"/sys",
			"/usr",
			"/var",
			"/System",
			"/Applications",
			"/Library",
		},
		Log: LogConfig{
			Level: "info",
		},
		Schedule: ScheduleConfig{
			IntervalMinutes: DefaultIntervalMinutes,
		},
	}
}
