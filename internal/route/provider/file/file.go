// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package file implements a route provider that serves a route stored on disk. Routes are read
// from JSON or TOML files and are useful for offline use and for replaying recorded trips.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/route"
)

const name = "file"

// ErrUnsupportedFormat is returned for route files that are neither JSON nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported route file format")

type File struct {
	path string
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string {
	return name
}

// Route loads the route file. The file is read on every call so that an updated file is picked
// up on reroute. Origin and destination are ignored.
func (f *File) Route(_ context.Context, _, _ geo.Point) (*route.Data, error) {
	return Load(f.path)
}

// Load reads a route from a .json or .toml file.
func Load(path string) (*route.Data, error) {
	data := new(route.Data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read route file: %w", err)
		}
		if err = json.Unmarshal(buf, data); err != nil {
			return nil, fmt.Errorf("failed to decode JSON route file: %w", err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, data); err != nil {
			return nil, fmt.Errorf("failed to decode TOML route file: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if len(data.Steps) == 0 {
		return nil, fmt.Errorf("%w: route file %s has no steps", route.ErrNoRoute, path)
	}
	for i, step := range data.Steps {
		if !step.Start.Valid() || !step.End.Valid() {
			return nil, fmt.Errorf("step %d of route file %s has invalid coordinates", i, path)
		}
	}
	data.Summarize()

	return data, nil
}
