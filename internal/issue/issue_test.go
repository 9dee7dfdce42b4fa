// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValues_SortedAndComplete(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(InstallFailedID) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), InstallFailedID)
	}
	for i, is := range values {
		if want := ID(i + 1); is.ID() != want {
			t.Errorf("Values()[%d].ID() = %d, want %d", i, is.ID(), want)
		}
	}
}

func TestAllIssuesHaveContent(t *testing.T) {
	t.Parallel()

	for _, is := range Values() {
		if strings.TrimSpace(is.Title()) == "" {
			t.Errorf("issue %d has no title", is.ID())
		}
		if !strings.Contains(string(is.MarkdownMsg()), "# ") {
			t.Errorf("issue %d has no Markdown heading", is.ID())
		}
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id       ID
		contains string
	}{
		{SystemDirectoryID, "System directory refused"},
		{InstallationExistsID, "--overwrite"},
		{UnsafeArchiveID, "Unsafe archive"},
		{TemplateInvalidID, "cmat.sh"},
		{ConfigLoadFailedID, "cmat config init"},
	}
	for _, tt := range tests {
		is := Get(tt.id)
		if is == nil {
			t.Errorf("Get(%d) = nil", tt.id)
			continue
		}
		if !strings.Contains(string(is.MarkdownMsg()), tt.contains) {
			t.Errorf("Get(%d) message missing %q", tt.id, tt.contains)
		}
	}

	if Get(ID(999)) != nil {
		t.Error("Get(999) should be nil")
	}
}

func TestIssue_LinksAreCloned(t *testing.T) {
	t.Parallel()

	is := Get(UnsafeArchiveID)
	links := is.ExtLinks()
	if len(links) == 0 {
		t.Fatal("UnsafeArchiveID has no external links")
	}
	links[0] = "https://example.invalid"
	if is.ExtLinks()[0] == "https://example.invalid" {
		t.Error("ExtLinks() exposed internal slice")
	}
}

// The remaining tests swap the package-level renderer and therefore do not
// run in parallel.

func TestIssue_Render_AppendsLinks(t *testing.T) {
	original := render
	t.Cleanup(func() { render = original })

	var gotStyle string
	render = func(in, stylePath string) (string, error) {
		gotStyle = stylePath
		return in, nil
	}

	out, err := Get(UnsafeArchiveID).Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if gotStyle != "notty" {
		t.Errorf("style = %q, want notty", gotStyle)
	}
	if !strings.Contains(out, "## See also") || !strings.Contains(out, "zip-slip") {
		t.Errorf("Render() output missing links:\n%s", out)
	}

	out, err = Get(PermissionDeniedID).Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(out, "See also") {
		t.Errorf("issue without links rendered a See also section:\n%s", out)
	}
}

func TestAllIssuesAreRenderable(t *testing.T) {
	for _, is := range Values() {
		out, err := is.Render("notty")
		if err != nil {
			t.Errorf("issue %d: Render() error = %v", is.ID(), err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("issue %d rendered empty output", is.ID())
		}
	}
}
