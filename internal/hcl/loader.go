// Package hcl implements the HCL-specific configuration loader. It parses
// .hcl desired-state files and translates them into the format-agnostic
// config model consumed by the graph builder.
package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/converge/internal/config"
	"github.com/vk/converge/internal/ctxlog"
	"github.com/vk/converge/internal/schema"
)

// Loader is the HCL implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads every .hcl file under the given paths, parses them, and
// translates the result into a single merged config model. Files are
// processed in lexical order so declaration indices are stable across runs.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl configuration files found in %v", paths)
	}
	logger.Debug("Discovered configuration files.", "count", len(files))

	parser := hclparse.NewParser()
	model := &config.Model{}
	declIndex := 0

	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		file, diags := parser.ParseHCL(src, path)
		if diags.HasErrors() {
			return nil, diags
		}
		if err := l.decodeFile(file, model, &declIndex); err != nil {
			return nil, err
		}
	}

	logger.Debug("Configuration model loaded.",
		"resources", len(model.Resources), "outputs", len(model.Outputs))
	return model, nil
}

// decodeFile translates one parsed file's blocks into the model.
func (l *Loader) decodeFile(file *hcl.File, model *config.Model, declIndex *int) error {
	content, diags := file.Body.Content(schema.RootSchema)
	if diags.HasErrors() {
		return diags
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "resource":
			res, err := l.translateResource(block, *declIndex)
			if err != nil {
				return err
			}
			*declIndex++
			model.Resources = append(model.Resources, res)
		case "output":
			out, err := l.translateOutput(block)
			if err != nil {
				return err
			}
			model.Outputs = append(model.Outputs, out)
		}
	}
	return nil
}

// findFiles expands each path into the sorted list of .hcl files it holds.
// A path may be a single file or a directory; directories are not recursed
// into, matching the flat layout of a configuration root.
func findFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("configuration path %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".hcl" {
				continue
			}
			files = append(files, filepath.Join(p, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
