// Package layout locates the files a stamping cycle reads and writes inside an
// Unreal-style project tree.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/launchbynttdata/launch-build-stamper/internal/header"
)

const (
	sourceDir       = "Source"
	publicDir       = "Public"
	metaSuffix      = ".Meta.ini"
	sidecarSuffix   = ".generated"
	projectFileGlob = "*.uproject"
)

var (
	ErrEmptyRoot     = errors.New("layout: project root is empty")
	ErrModuleUnknown = errors.New("layout: module name could not be determined")
)

// Project identifies a project root and the module whose metadata is stamped.
type Project struct {
	Root   string
	Module string
}

// Resolve makes root absolute and fills in the module name. When module is
// empty the base name of the single *.uproject file in root is used.
func Resolve(root, module string) (Project, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return Project{}, ErrEmptyRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Project{}, fmt.Errorf("layout: resolving %s: %w", root, err)
	}

	module = strings.TrimSpace(module)
	if module == "" {
		module, err = discoverModule(abs)
		if err != nil {
			return Project{}, err
		}
	}
	if strings.ContainsAny(module, `/\`) {
		return Project{}, fmt.Errorf("layout: invalid module name %q", module)
	}

	return Project{Root: abs, Module: module}, nil
}

func discoverModule(root string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, projectFileGlob))
	if err != nil {
		return "", fmt.Errorf("layout: scanning %s: %w", root, err)
	}
	var projects []string
	for _, match := range matches {
		if info, statErr := os.Stat(match); statErr == nil && info.Mode().IsRegular() {
			projects = append(projects, match)
		}
	}
	switch len(projects) {
	case 0:
		return "", fmt.Errorf("%w: no %s file in %s; pass the module name explicitly", ErrModuleUnknown, projectFileGlob, root)
	case 1:
		return strings.TrimSuffix(filepath.Base(projects[0]), filepath.Ext(projects[0])), nil
	default:
		sort.Strings(projects)
		names := make([]string, 0, len(projects))
		for _, p := range projects {
			names = append(names, filepath.Base(p))
		}
		return "", fmt.Errorf("%w: several project files in %s (%s); pass the module name explicitly", ErrModuleUnknown, root, strings.Join(names, ", "))
	}
}

// MetaPath is the persisted record: <root>/Source/<Module>.Meta.ini.
func (p Project) MetaPath() string {
	return filepath.Join(p.Root, sourceDir, p.Module+metaSuffix)
}

// SidecarPath is where a bootstrap record is written for review.
func (p Project) SidecarPath() string {
	return p.MetaPath() + sidecarSuffix
}

// HeaderPath is the generated header: <root>/Source/<Module>/Public/GameVersion.generated.h.
func (p Project) HeaderPath() string {
	return filepath.Join(p.Root, sourceDir, p.Module, publicDir, header.FileName)
}
