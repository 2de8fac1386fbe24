// Package header renders the C/C++ header that exposes build metadata to the
// compiled application.
package header

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/launchbynttdata/launch-build-stamper/internal/domain/buildmeta"
)

// FileName is the name of the generated header inside the module's Public directory.
const FileName = "GameVersion.generated.h"

const source = `/** DO NOT MODIFY THIS FILE, IT IS AUTOMATICALLY GENERATED ON EACH BUILD! **/

// Version numbers
#define BUILD_MAJOR_VERSION {{.Major}}
#define BUILD_MINOR_VERSION {{.Minor}}
#define BUILD_PATCH_VERSION {{.Patch}}

// Build
#define BUILD_BUILD_NUMBER {{.BuildNumber}}
#define BUILD_BUILD_DATE "{{cstring .BuildDate}}"
#define BUILD_BUILD_TIME "{{cstring .BuildTime}}"

// Git
#define BUILD_GIT_HASH "{{cstring .GitHash}}"
`

var (
	cEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
	tmpl     = template.Must(template.New(FileName).Funcs(template.FuncMap{"cstring": cEscaper.Replace}).Parse(source))
)

// Render writes the header for m to w.
func Render(w io.Writer, m buildmeta.Metadata) error {
	if err := tmpl.Execute(w, m); err != nil {
		return fmt.Errorf("rendering %s: %w", FileName, err)
	}
	return nil
}

// Bytes returns the rendered header for m.
func Bytes(m buildmeta.Metadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the header for m and replaces the file at path, creating its
// directory when missing.
func Write(path string, m buildmeta.Metadata) error {
	content, err := Bytes(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
