package harness

import (
	"path/filepath"
	"strings"
)

// ExpSuffix is appended to a test file path to locate its cached expectation file.
const ExpSuffix = ".exp"

// TestCase identifies a single test source file.
type TestCase struct {
	// Path is the file path exactly as supplied on the command line or by globbing.
	Path string
	// Base is the final path element.
	Base string
	// Name is Base with the source extension stripped. Failure artifacts and
	// the skipped/failed summary lists use this form.
	Name string
}

// NewTestCase derives a TestCase from a test file path.
func NewTestCase(path string) TestCase {
	base := filepath.Base(path)
	return TestCase{
		Path: path,
		Base: base,
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
	}
}

// ExpPath returns the location of the optional cached expectation file.
func (t TestCase) ExpPath() string {
	return t.Path + ExpSuffix
}
