// Package rules maps file extensions to destination categories.
package rules

import (
	"path/filepath"
	"strings"

	"github.com/fenilsonani/sortdir/internal/config"
)

// Conflict records an extension listed by more than one category. The
// category registered first keeps it.
type Conflict struct {
	Extension string
	Winner    string
	Ignored   string
}

// Rules is an ordered extension lookup table built once from configuration.
// It is read-only after Build and safe for concurrent use.
type Rules struct {
	categories []string
	byExt      map[string]string
	subfolders map[string]map[string]string
	others     string
	noExt      string
	conflicts  []Conflict
}

// Build validates cfg and compiles its category table
func Build(cfg *config.Config) (*Rules, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Rules{
		categories: make([]string, 0, len(cfg.Categories)),
		byExt:      make(map[string]string),
		subfolders: make(map[string]map[string]string),
		others:     cfg.OthersCategory,
		noExt:      cfg.NoExtensionCategory,
	}

	for _, cat := range cfg.Categories {
		r.categories = append(r.categories, cat.Name)
		for _, raw := range cat.Extensions {
			ext, _ := config.NormalizeExtension(raw)
			if owner, taken := r.byExt[ext]; taken {
				if owner != cat.Name {
					r.conflicts = append(r.conflicts, Conflict{Extension: ext, Winner: owner, Ignored: cat.Name})
				}
				continue
			}
			r.byExt[ext] = cat.Name
		}
	}

	for catName, mapping := range cfg.Subfolders {
		folders := make(map[string]string, len(mapping))
		for raw, folder := range mapping {
			ext, _ := config.NormalizeExtension(raw)
			// A subfolder only applies where its category actually owns the extension
			if r.byExt[ext] == catName {
				folders[ext] = folder
			}
		}
		if len(folders) > 0 {
			r.subfolders[catName] = folders
		}
	}

	return r, nil
}

// ExtensionOf returns the lowercase extension of a file name without the dot
func ExtensionOf(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		// ".profile" has no extension, it is a dotfile
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Classify returns the category for ext. Unknown extensions go to the
// others category, an empty extension to the no-extension category.
func (r *Rules) Classify(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return r.noExt
	}
	if cat, ok := r.byExt[ext]; ok {
		return cat
	}
	return r.others
}

// Subfolder returns the optional subfolder for ext inside its category
func (r *Rules) Subfolder(ext string) (string, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	cat, ok := r.byExt[ext]
	if !ok {
		return "", false
	}
	folder, ok := r.subfolders[cat][ext]
	return folder, ok
}

// Destination returns the folder, relative to the target directory, that
// a file with ext belongs in
func (r *Rules) Destination(ext string) string {
	cat := r.Classify(ext)
	if sub, ok := r.Subfolder(ext); ok {
		return filepath.Join(cat, sub)
	}
	return cat
}

// Categories returns the configured category names in registration order
func (r *Rules) Categories() []string {
	out := make([]string, len(r.categories))
	copy(out, r.categories)
	return out
}

// Conflicts returns extensions claimed by more than one category
func (r *Rules) Conflicts() []Conflict {
	out := make([]Conflict, len(r.conflicts))
	copy(out, r.conflicts)
	return out
}

// OthersCategory returns the fallback category for unknown extensions
func (r *Rules) OthersCategory() string { return r.others }

// NoExtensionCategory returns the category for files without an extension
func (r *Rules) NoExtensionCategory() string { return r.noExt }
