// Command archcheck enforces import boundaries between the bot's layers.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
)

const modulePrefix = "otogi-tell/"

type listedPackage struct {
	ImportPath   string
	Imports      []string
	TestImports  []string
	XTestImports []string
}

// boundary forbids packages under from importing packages under to.
type boundary struct {
	from   string
	to     string
	except string
	reason string
}

var boundaries = []boundary{
	{from: "pkg/otogi", to: "internal/", reason: "pkg/otogi must not import internal/*"},
	{from: "pkg/otogi", to: "modules/", reason: "pkg/otogi must not import modules/*"},
	{from: "internal/kernel", to: "internal/driver", reason: "internal/kernel must not import internal/driver/*"},
	{from: "internal/driver", to: "internal/kernel", reason: "internal/driver must not import internal/kernel"},
	{from: "internal/driver", to: "modules/", reason: "internal/driver must not import modules/*"},
	{from: "modules/", to: "internal/", reason: "modules/* must not import internal/*"},
	{from: "modules/tell/reminder", to: "pkg/", reason: "reminder storage must stay transport neutral"},
	{from: "modules/help", to: "modules/", except: "modules/help", reason: "modules must not import each other"},
	{from: "modules/tell", to: "modules/", except: "modules/tell", reason: "modules must not import each other"},
}

func main() {
	packages, err := listPackages()
	if err != nil {
		fmt.Fprintf(os.Stderr, "arch-check: %v\n", err)
		os.Exit(1)
	}

	violations := collectViolations(packages)
	if len(violations) == 0 {
		_, _ = fmt.Fprintf(os.Stdout, "arch-check: passed\n")
		return
	}

	_, _ = fmt.Fprintf(os.Stdout, "arch-check: architecture violations:\n")
	for _, violation := range violations {
		_, _ = fmt.Fprintf(os.Stdout, "  - %s\n", violation)
	}
	os.Exit(1)
}

func listPackages() ([]listedPackage, error) {
	cmd := exec.Command("go", "list", "-json", "-test", "./...")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("go list -json -test ./...: %w", err)
	}

	return decodePackages(&stdout)
}

func decodePackages(r io.Reader) ([]listedPackage, error) {
	decoder := json.NewDecoder(r)
	result := make([]listedPackage, 0, 32)
	for {
		var pkg listedPackage
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode go list output: %w", err)
		}
		if pkg.ImportPath == "" {
			continue
		}
		result = append(result, pkg)
	}

	return result, nil
}

func collectViolations(packages []listedPackage) []string {
	found := make(map[string]struct{})
	for _, pkg := range packages {
		importer := strings.TrimSuffix(strings.Fields(pkg.ImportPath + " ")[0], ".test")
		imports := slices.Concat(pkg.Imports, pkg.TestImports, pkg.XTestImports)
		for _, imported := range imports {
			reason := violationReason(importer, imported)
			if reason == "" {
				continue
			}
			found[fmt.Sprintf("%s -> %s (%s)", importer, imported, reason)] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(found))
}

func violationReason(importer, imported string) string {
	if !strings.HasPrefix(importer, modulePrefix) || !strings.HasPrefix(imported, modulePrefix) {
		return ""
	}
	importer = strings.TrimPrefix(importer, modulePrefix)
	imported = strings.TrimPrefix(imported, modulePrefix)

	for _, rule := range boundaries {
		if !strings.HasPrefix(importer, rule.from) || !strings.HasPrefix(imported, rule.to) {
			continue
		}
		if rule.except != "" && strings.HasPrefix(imported, rule.except) {
			continue
		}
		return rule.reason
	}

	return ""
}
