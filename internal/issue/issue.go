// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

const (
	TargetNotFoundID ID = iota + 1
	SystemDirectoryID
	TargetNotWritableID
	InstallationExistsID
	DownloadFailedID
	ArchiveTooLargeID
	UnsafeArchiveID
	ChecksumMismatchID
	TemplateInvalidID
	ConfigLoadFailedID
	PermissionDeniedID
	InstallFailedID
)

type (
	ID int

	MarkdownMsg string

	HTTPLink string

	// Issue is a catalog entry: Markdown guidance for one class of failure.
	Issue struct {
		id       ID          // ID used to look up the issue
		title    string      // One-line summary for plain output
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HTTPLink  // Project documentation
		extLinks []HTTPLink  // External links that might be useful for the user
	}
)

func (i *Issue) ID() ID {
	return i.id
}

func (i *Issue) Title() string {
	return i.title
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HTTPLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HTTPLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue's Markdown, followed by its links, with the
// glamour style at stylePath ("dark", "light", "notty" or a JSON file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

const templateDocs HTTPLink = "https://github.com/dasien/ClaudeMultiAgentTemplate#readme"

var (
	render = glamour.Render //nolint:gochecknoglobals // Swappable in tests.

	targetNotFoundIssue = &Issue{
		id:    TargetNotFoundID,
		title: "The installation directory does not exist",
		mdMsg: `
# Installation directory not found

The directory you chose does not exist or is not a directory.

## Things you can try:
- Create the project directory first:
~~~
$ mkdir -p ~/projects/my-app
$ cmat install ~/projects/my-app
~~~
- Check the path for typos; relative paths are resolved from the current directory.`,
		docLinks: []HTTPLink{templateDocs},
	}

	systemDirectoryIssue = &Issue{
		id:    SystemDirectoryID,
		title: "Refusing to install into a system directory",
		mdMsg: `
# System directory refused

cmat never writes into operating system directories such as ` + "`/usr`" + `,
` + "`/etc`" + ` or ` + "`C:\\Windows`" + `, nor into anything nested below them.
Symbolic links are resolved first, so a link pointing into one of them is refused too.

## Things you can try:
- Install into your project directory instead:
~~~
$ cmat install .
~~~`,
		docLinks: []HTTPLink{templateDocs},
	}

	targetNotWritableIssue = &Issue{
		id:    TargetNotWritableID,
		title: "The installation directory is not writable",
		mdMsg: `
# Directory not writable

cmat could not create a file in the installation directory.

## Things you can try:
- Check the directory's ownership and permissions:
~~~
$ ls -ld <dir>
~~~
- Choose a directory you own.`,
	}

	installationExistsIssue = &Issue{
		id:    InstallationExistsID,
		title: "A .claude directory already exists",
		mdMsg: `
# Existing installation found

The directory already contains a ` + "`.claude`" + ` directory and cmat will not
replace it without confirmation.

## Things you can try:
- Replace it; the current tree is backed up and restored if anything fails:
~~~
$ cmat install --overwrite <dir>
~~~
- Inspect it first:
~~~
$ cmat check <dir>
~~~`,
	}

	downloadFailedIssue = &Issue{
		id:    DownloadFailedID,
		title: "The template archive could not be downloaded",
		mdMsg: `
# Download failed

cmat makes a single HTTPS request for the template archive and does not retry.
Nothing in your directory was changed.

## Things you can try:
- Check your network connection and proxy settings (` + "`HTTPS_PROXY`" + `).
- Verify the configured ref exists:
~~~
$ cmat config show
~~~
- Set ` + "`GITHUB_TOKEN`" + ` if you are hitting GitHub rate limits.
- Run the same command again.`,
		extLinks: []HTTPLink{"https://www.githubstatus.com"},
	}

	archiveTooLargeIssue = &Issue{
		id:    ArchiveTooLargeID,
		title: "The template archive exceeds the download size limit",
		mdMsg: `
# Archive too large

The server sent more data than ` + "`download.max_bytes`" + ` allows.

## Things you can try:
- Make sure ` + "`source`" + ` points at the CMAT template repository.
- Raise the limit in your config file if the template really grew.`,
	}

	unsafeArchiveIssue = &Issue{
		id:    UnsafeArchiveID,
		title: "The template archive contains unsafe entries",
		mdMsg: `
# Unsafe archive rejected

An entry in the downloaded archive tried to escape the extraction directory
(path traversal, absolute path, symbolic link) or exceeded the extraction limits.
Extraction stopped and everything written so far was removed. Your directory
is unchanged.

## Things you can try:
- Make sure ` + "`source.base_url`" + `, ` + "`source.owner`" + ` and ` + "`source.repo`" + ` point at a
  trusted repository.
- Report the archive to the template maintainers.`,
		docLinks: []HTTPLink{templateDocs},
		extLinks: []HTTPLink{"https://security.snyk.io/research/zip-slip-vulnerability"},
	}

	checksumMismatchIssue = &Issue{
		id:    ChecksumMismatchID,
		title: "The template archive does not match the pinned checksum",
		mdMsg: `
# Checksum mismatch

` + "`download.sha256`" + ` is set and the downloaded archive has a different digest.
Branch archives change on every commit, so pin a tag when using a checksum.

## Things you can try:
- Pin a release tag:
~~~
$ cmat install --ref v3.0.0 <dir>
~~~
- Remove or update ` + "`download.sha256`" + ` in your config file.`,
	}

	templateInvalidIssue = &Issue{
		id:    TemplateInvalidID,
		title: "The downloaded template is missing required files",
		mdMsg: `
# Template validation failed

The archive was extracted but does not contain every file a v3 template needs,
for example ` + "`.claude/scripts/cmat.sh`" + ` and ` + "`.claude/AGENT_CONTRACTS.json`" + `.
Any previous installation has been restored.

## Things you can try:
- Check that the configured ref is a v3 template.
- Review ` + "`install.extra_required_files`" + ` in your config file.`,
		docLinks: []HTTPLink{templateDocs},
	}

	configLoadFailedIssue = &Issue{
		id:    ConfigLoadFailedID,
		title: "The configuration file could not be loaded",
		mdMsg: `
# Configuration error

cmat reads ` + "`config.cue`" + ` from its configuration directory and validates it
against a schema.

## Things you can try:
- Print the path and the effective settings:
~~~
$ cmat config path
$ cmat config show
~~~
- Recreate a default file:
~~~
$ cmat config init
~~~`,
		extLinks: []HTTPLink{"https://cuelang.org/docs/"},
	}

	permissionDeniedIssue = &Issue{
		id:    PermissionDeniedID,
		title: "Permission denied",
		mdMsg: `
# Permission denied

cmat could not read or write a file it needed.

## Things you can try:
- Check ownership of the installation directory and its ` + "`.claude`" + ` tree.
- Avoid running cmat with elevated privileges; install into a directory you own.`,
	}

	installFailedIssue = &Issue{
		id:    InstallFailedID,
		title: "The installation failed unexpectedly",
		mdMsg: `
# Installation failed

An unexpected error interrupted the installation. Any previous installation
was restored from its backup.

## Things you can try:
- Run again with ` + "`--verbose`" + ` for the full error chain.
- Look for leftover ` + "`.claude.backup-*`" + ` directories:
~~~
$ cmat check <dir>
~~~`,
	}

	issues = map[ID]*Issue{ //nolint:gochecknoglobals // Immutable catalog.
		targetNotFoundIssue.ID():     targetNotFoundIssue,
		systemDirectoryIssue.ID():    systemDirectoryIssue,
		targetNotWritableIssue.ID():  targetNotWritableIssue,
		installationExistsIssue.ID(): installationExistsIssue,
		downloadFailedIssue.ID():     downloadFailedIssue,
		archiveTooLargeIssue.ID():    archiveTooLargeIssue,
		unsafeArchiveIssue.ID():      unsafeArchiveIssue,
		checksumMismatchIssue.ID():   checksumMismatchIssue,
		templateInvalidIssue.ID():    templateInvalidIssue,
		configLoadFailedIssue.ID():   configLoadFailedIssue,
		permissionDeniedIssue.ID():   permissionDeniedIssue,
		installFailedIssue.ID():      installFailedIssue,
	}
)

// Values returns every catalog entry ordered by ID.
func Values() []*Issue {
	ids := maps.Keys(issues)
	slices.Sort(ids)
	out := make([]*Issue, len(ids))
	for i, id := range ids {
		out[i] = issues[id]
	}
	return out
}

// Get returns the catalog entry for id, or nil.
func Get(id ID) *Issue {
	return issues[id]
}
