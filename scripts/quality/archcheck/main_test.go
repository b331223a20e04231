package main

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestViolationReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		importer string
		imported string
		want     bool
	}{
		{importer: "otogi-tell/pkg/otogi", imported: "otogi-tell/internal/kernel", want: true},
		{importer: "otogi-tell/internal/kernel", imported: "otogi-tell/internal/driver/console", want: true},
		{importer: "otogi-tell/internal/driver/console", imported: "otogi-tell/internal/kernel", want: true},
		{importer: "otogi-tell/modules/tell", imported: "otogi-tell/internal/kernel", want: true},
		{importer: "otogi-tell/modules/tell/reminder", imported: "otogi-tell/pkg/otogi", want: true},
		{importer: "otogi-tell/modules/help", imported: "otogi-tell/modules/tell", want: true},
		{importer: "otogi-tell/modules/tell", imported: "otogi-tell/modules/tell/reminder"},
		{importer: "otogi-tell/modules/tell", imported: "otogi-tell/pkg/otogi"},
		{importer: "otogi-tell/internal/driver", imported: "otogi-tell/internal/driver/console"},
		{importer: "otogi-tell/cmd/bot", imported: "otogi-tell/internal/kernel"},
		{importer: "otogi-tell/pkg/otogi", imported: "github.com/google/uuid"},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.importer+"->"+testCase.imported, func(t *testing.T) {
			t.Parallel()

			got := violationReason(testCase.importer, testCase.imported) != ""
			if got != testCase.want {
				t.Fatalf("violation = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestCollectViolations(t *testing.T) {
	t.Parallel()

	packages, err := decodePackages(strings.NewReader(`
		{"ImportPath":"otogi-tell/modules/help","Imports":["otogi-tell/pkg/otogi"]}
		{"ImportPath":"otogi-tell/modules/help [otogi-tell/modules/help.test]","TestImports":["otogi-tell/modules/tell"]}
		{"ImportPath":"otogi-tell/pkg/otogi","XTestImports":["otogi-tell/internal/kernel","otogi-tell/internal/kernel"]}
		{"Imports":["otogi-tell/internal/kernel"]}
	`))
	if err != nil {
		t.Fatalf("decode packages failed: %v", err)
	}

	want := []string{
		"otogi-tell/modules/help -> otogi-tell/modules/tell (modules must not import each other)",
		"otogi-tell/pkg/otogi -> otogi-tell/internal/kernel (pkg/otogi must not import internal/*)",
	}
	if diff := cmp.Diff(want, collectViolations(packages)); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}
}
