// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package copytext

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bundle is the decoded copy document.
type Bundle map[string]any

// Loader fetches the current copy bundle.
type Loader interface {
	Load(ctx context.Context) (Bundle, error)
}

// FileLoader reads the bundle from a local file. Files ending in .yaml or
// .yml are decoded as YAML, anything else as JSON.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(ctx context.Context) (Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Path == "" {
		return nil, fmt.Errorf("copy path is not configured")
	}

	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read copy bundle: %w", err)
	}

	var b Bundle
	switch strings.ToLower(filepath.Ext(l.Path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &b)
	default:
		err = json.Unmarshal(data, &b)
	}
	if err != nil {
		return nil, fmt.Errorf("decode copy bundle %s: %w", filepath.Base(l.Path), err)
	}
	if b == nil {
		b = Bundle{}
	}
	return b, nil
}
