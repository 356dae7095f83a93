// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ContainerEngineNotFoundId Id = iota + 1
	EngineVersionTooOldId
	ConfigLoadFailedId
	InterfaceNotSetId
	PermissionDeniedId
	ChecksumMismatchId
	ServiceStartFailedId
	UpdateDownloadFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // project documentation for this issue
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown. An empty stylePath lets
// glamour pick a style for the current terminal.
func (i *Issue) Render(stylePath string) (string, error) {
	if stylePath == "" {
		stylePath = styles.AutoStyle
	}

	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			md.WriteString("\n- <" + string(link) + ">")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

SimpleNSM runs Suricata and EveBox as containers, but neither Docker nor
Podman could be used.

## Supported container engines:
- **Docker** (preferred; containers restart on boot)
- **Podman** 4.6 or newer

## Things you can try:
- Install Docker:
  - https://docs.docker.com/engine/install/
- Or install Podman:
  - Debian/Ubuntu: ` + "`sudo apt install podman`" + `
  - Fedora/RHEL: ` + "`sudo dnf install podman`" + `

- Make sure the Docker daemon is running:
~~~
$ sudo systemctl start docker
~~~

- Force a specific engine in simplensm.toml:
~~~toml
container_engine = "podman"  # or "docker"
~~~`,
		extLinks: []HttpLink{"https://docs.docker.com/engine/install/", "https://podman.io/docs/installation"},
	}

	engineVersionTooOldIssue = &Issue{
		id: EngineVersionTooOldId,
		mdMsg: `
# Container engine too old!

The installed Podman is older than 4.6, the oldest release whose ` + "`run`" + `
and ` + "`stop`" + ` behaviour SimpleNSM relies on.

## Things you can try:
- Upgrade Podman from your distribution's backports or the upstream packages
- Install Docker instead; it is preferred when both are present

~~~
$ podman version
~~~`,
		extLinks: []HttpLink{"https://podman.io/docs/installation"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the SimpleNSM configuration file.

## Configuration file location:
- ` + "`./simplensm.toml`" + ` in the current directory
- or the path given by ` + "`--config`" + ` / ` + "`SIMPLENSM_CONFIG`" + `

## Things you can try:
- Create a default configuration:
~~~
$ simplensm config init
~~~

- Check the file is valid TOML and only uses known keys
- Remove the config file to use defaults

## Example configuration:
~~~toml
container_engine = "auto"
start_on_boot = true

[suricata]
interface = "eth0"

[evebox]
enabled = true
allow_remote = false
~~~`,
	}

	interfaceNotSetIssue = &Issue{
		id: InterfaceNotSetId,
		mdMsg: `
# No capture interface configured!

Suricata needs a network interface to listen on before it can be started.

## Things you can try:
- List the interfaces on this host:
~~~
$ ip -brief link
~~~

- Set the interface:
~~~
$ simplensm config set suricata.interface eth0
~~~`,
		extLinks: []HttpLink{"https://docs.suricata.io/en/latest/command-line-options.html"},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to perform this operation.

## Common causes:
- Podman was selected but SimpleNSM is not running as root; Suricata needs
  host networking and raw socket capabilities that rootless Podman cannot grant
- The Docker socket is not accessible to your user
- The data directory is not writable

## Things you can try:
- Run SimpleNSM with sudo:
~~~
$ sudo simplensm start
~~~

- For Docker, add your user to the docker group:
~~~
$ sudo usermod -aG docker $USER
~~~`,
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum mismatch!

The downloaded SimpleNSM binary does not match its published SHA-256
checksum. The installed binary was left untouched.

## Things you can try:
- Retry the update; the release may have been published mid-download
- Check for a proxy or captive portal rewriting downloads
- Download and verify the release manually`,
		docLinks: []HttpLink{"https://evebox.org/files/simplensm/"},
	}

	serviceStartFailedIssue = &Issue{
		id: ServiceStartFailedId,
		mdMsg: `
# Failed to start services!

The container engine refused to start one of the SimpleNSM containers.

## Things you can try:
- Look at the engine's output above for the reason
- Pull the images again:
~~~
$ simplensm update --images-only
~~~

- Check that no other program is using port 5636
- Run in the foreground to watch both containers:
~~~
$ simplensm run
~~~`,
	}

	updateDownloadFailedIssue = &Issue{
		id: UpdateDownloadFailedId,
		mdMsg: `
# Update download failed!

SimpleNSM could not fetch the latest release. The installed binary was left
untouched.

## Things you can try:
- Check network connectivity to evebox.org
- Override the download location in simplensm.toml:
~~~toml
[update]
url = "https://evebox.org/files/simplensm"
~~~`,
		docLinks: []HttpLink{"https://evebox.org/files/simplensm/"},
	}

	issues = map[Id]*Issue{
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		engineVersionTooOldIssue.Id():     engineVersionTooOldIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		interfaceNotSetIssue.Id():         interfaceNotSetIssue,
		permissionDeniedIssue.Id():        permissionDeniedIssue,
		checksumMismatchIssue.Id():        checksumMismatchIssue,
		serviceStartFailedIssue.Id():      serviceStartFailedIssue,
		updateDownloadFailedIssue.Id():    updateDownloadFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
