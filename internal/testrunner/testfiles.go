package testrunner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// conventionalTestDirs lists the directories checked, relative to the
// project root, for test files in addition to sibling-naming (§4.4
// "Test-file identification").
var conventionalTestDirs = []string{
	filepath.Join("tests", "unit"),
	filepath.Join("tests", "integration"),
	filepath.Join("tests", "properties"),
}

// FindTestFiles maps a changed source file to the set of test files that
// exercise it: the conventional sibling "<base>.test.<ext>" and
// "<base>.spec.<ext>" files, plus any file under tests/unit,
// tests/integration, or tests/properties whose name contains the source
// file's base name (extension stripped). Returned paths are relative to
// workDir, deduplicated, and filtered to files that actually exist —
// a project need not have all three directories, or any of them.
func FindTestFiles(workDir, sourceFile string) []string {
	dir := filepath.Dir(sourceFile)
	base := filepath.Base(sourceFile)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	seen := make(map[string]bool)
	var out []string

	add := func(rel string) {
		if seen[rel] {
			return
		}
		if _, err := os.Stat(filepath.Join(workDir, rel)); err != nil {
			return
		}
		seen[rel] = true
		out = append(out, rel)
	}

	add(filepath.Join(dir, stem+".test"+ext))
	add(filepath.Join(dir, stem+".spec"+ext))

	for _, testDir := range conventionalTestDirs {
		entries, err := os.ReadDir(filepath.Join(workDir, testDir))
		if err != nil {
			continue // this project may not use the directory at all
		}
		for _, e := range entries {
			if e.IsDir() || !strings.Contains(e.Name(), stem) {
				continue
			}
			add(filepath.Join(testDir, e.Name()))
		}
	}

	sort.Strings(out)
	return out
}

// IsPropertyTestFile reports whether path is flagged as a property-based
// test by convention: residing under a tests/properties directory, or
// carrying a "_property"/"_prop" naming marker. FindTestFiles scans the
// tests/properties directory but does not use the naming marker.
func IsPropertyTestFile(path string) bool {
	slash := filepath.ToSlash(path)
	if strings.Contains(slash, "/tests/properties/") || strings.HasPrefix(slash, "tests/properties/") {
		return true
	}
	base := strings.ToLower(filepath.Base(path))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Contains(stem, "_property") || strings.HasSuffix(stem, "_prop")
}

// ValidatePropertyTestFiles reads every entry of testFiles flagged by
// IsPropertyTestFile off disk (relative to workDir) and runs
// CheckPropertyIterations over their source (§4.4 "Property-test
// validator"). A file that can't be read is skipped rather than reported
// as a violation, since the caller's list may be stale relative to disk.
func ValidatePropertyTestFiles(workDir string, testFiles []string) []PropertyWarning {
	sources := make(map[string]string)
	for _, tf := range testFiles {
		if !IsPropertyTestFile(tf) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(workDir, tf))
		if err != nil {
			continue
		}
		sources[tf] = string(data)
	}
	return CheckPropertyIterations(sources)
}

// FindTestFilesForAll maps every entry of sourceFiles through
// FindTestFiles and returns the deduplicated, sorted union — the form the
// Orchestrator needs when a task's code generation touched more than one
// source file in a single pass.
func FindTestFilesForAll(workDir string, sourceFiles []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range sourceFiles {
		for _, tf := range FindTestFiles(workDir, f) {
			if !seen[tf] {
				seen[tf] = true
				out = append(out, tf)
			}
		}
	}
	sort.Strings(out)
	return out
}
