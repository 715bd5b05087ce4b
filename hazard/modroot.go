package hazard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

var errNoModule = errors.New("no go.mod in any parent directory")

// findModuleRoot walks up from dir to the nearest go.mod and reports
// the containing directory and the declared module path.
func findModuleRoot(dir string) (root, module string, err error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", err
	}
	for {
		gomod := filepath.Join(abs, "go.mod")
		data, readErr := os.ReadFile(gomod)
		if readErr == nil {
			mf, parseErr := modfile.Parse(gomod, data, nil)
			if parseErr != nil {
				return "", "", fmt.Errorf("parse %s: %w", gomod, parseErr)
			}
			if mf.Module == nil {
				return "", "", fmt.Errorf("%s has no module directive", gomod)
			}
			return abs, mf.Module.Mod.Path, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", "", errNoModule
		}
		abs = parent
	}
}
