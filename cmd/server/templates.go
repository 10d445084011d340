package main

import (
	"fmt"
	"html/template"
	"path/filepath"
)

// LoadTemplates parses the HTML templates in dir. It returns nil when the
// directory holds none.
func LoadTemplates(dir string) (*template.Template, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	tmpl := template.New("")
	for _, f := range files {
		if tmpl, err = tmpl.ParseFiles(f); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", f, err)
		}
	}
	return tmpl, nil
}
