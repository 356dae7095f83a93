// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

// allIds lists every issue ID in declaration order.
var allIds = []Id{
	ContainerEngineNotFoundId,
	EngineVersionTooOldId,
	ConfigLoadFailedId,
	InterfaceNotSetId,
	PermissionDeniedId,
	ChecksumMismatchId,
	ServiceStartFailedId,
	UpdateDownloadFailedId,
}

// plainRender replaces glamour with an identity renderer for the test.
func plainRender(t *testing.T) {
	t.Helper()
	originalRender := render
	t.Cleanup(func() { render = originalRender })

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}
}

func TestId_Constants(t *testing.T) {
	seen := make(map[Id]bool)
	for _, id := range allIds {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}

	// Verify IDs start at 1 (iota + 1)
	if ContainerEngineNotFoundId != 1 {
		t.Errorf("ContainerEngineNotFoundId = %d, want 1", ContainerEngineNotFoundId)
	}
}

func TestIssue_Id(t *testing.T) {
	issue := Get(ChecksumMismatchId)
	if issue == nil {
		t.Fatal("Get(ChecksumMismatchId) returned nil")
	}

	if issue.Id() != ChecksumMismatchId {
		t.Errorf("issue.Id() = %d, want %d", issue.Id(), ChecksumMismatchId)
	}
}

func TestIssue_LinksAreClones(t *testing.T) {
	issue := Get(ContainerEngineNotFoundId)
	if issue == nil {
		t.Fatal("Get(ContainerEngineNotFoundId) returned nil")
	}

	links := issue.ExtLinks()
	if len(links) == 0 {
		t.Fatal("ContainerEngineNotFound should link to install docs")
	}
	original := links[0]
	links[0] = "modified"
	if issue.ExtLinks()[0] != original {
		t.Error("ExtLinks() should return a clone")
	}

	docs := Get(ChecksumMismatchId).DocLinks()
	if len(docs) == 0 {
		t.Fatal("ChecksumMismatch should link to the release files")
	}
	docs[0] = "modified"
	if Get(ChecksumMismatchId).DocLinks()[0] == "modified" {
		t.Error("DocLinks() should return a clone")
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{ContainerEngineNotFoundId, false, "Container engine not found"},
		{EngineVersionTooOldId, false, "Container engine too old"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{InterfaceNotSetId, false, "No capture interface"},
		{PermissionDeniedId, false, "Permission denied"},
		{ChecksumMismatchId, false, "Checksum mismatch"},
		{ServiceStartFailedId, false, "Failed to start services"},
		{UpdateDownloadFailedId, false, "Update download failed"},
		{Id(9999), true, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}

			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain '%s'", tt.id, tt.contains)
			}
		})
	}
}

func TestValues(t *testing.T) {
	issues := Values()

	if len(issues) != len(allIds) {
		t.Errorf("Values() returned %d issues, want %d", len(issues), len(allIds))
	}

	for _, issue := range issues {
		if issue.Id() == 0 {
			t.Error("found issue with ID 0")
		}
	}
}

func TestIssue_Render(t *testing.T) {
	plainRender(t)

	rendered, err := Get(InterfaceNotSetId).Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "simplensm config set suricata.interface") {
		t.Error("Render() output should contain the config command")
	}
	if !strings.Contains(rendered, "## See also") {
		t.Error("Render() output should contain the See also section")
	}
}

func TestIssue_Render_WithLinks(t *testing.T) {
	plainRender(t)

	testIssue := &Issue{
		id:       Id(9999),
		mdMsg:    "# Test Issue\n\nThis is a test.",
		docLinks: []HttpLink{"https://docs.example.com"},
		extLinks: []HttpLink{"https://external.example.com"},
	}

	rendered, err := testIssue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	docIdx := strings.Index(rendered, "<https://docs.example.com>")
	extIdx := strings.Index(rendered, "<https://external.example.com>")
	if docIdx < 0 || extIdx < 0 {
		t.Fatalf("Render() should list every link, got:\n%s", rendered)
	}
	if docIdx > extIdx {
		t.Error("doc links should be listed before external links")
	}
	if len(testIssue.DocLinks()) != 1 {
		t.Error("Render() must not grow the doc link slice")
	}
}

func TestIssue_Render_NoLinks(t *testing.T) {
	plainRender(t)

	testIssue := &Issue{
		id:    Id(9998),
		mdMsg: "# Test Issue\n\nNo links here.",
	}

	rendered, err := testIssue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	if strings.Contains(rendered, "See also") {
		t.Error("Render() without links should not contain 'See also'")
	}
}

func TestAllIssuesAreRenderable(t *testing.T) {
	plainRender(t)

	for _, issue := range Values() {
		if issue.MarkdownMsg() == "" {
			t.Errorf("Issue %d has empty MarkdownMsg", issue.Id())
		}
		rendered, err := issue.Render("")
		if err != nil {
			t.Errorf("Issue %d failed to render: %v", issue.Id(), err)
		}
		if rendered == "" {
			t.Errorf("Issue %d rendered to empty string", issue.Id())
		}
	}
}

// TestIssuesMapCompleteness verifies all issue IDs are in the map
func TestIssuesMapCompleteness(t *testing.T) {
	for _, id := range allIds {
		if Get(id) == nil {
			t.Errorf("Issue with ID %d is not in the issues map", id)
		}
	}
}
