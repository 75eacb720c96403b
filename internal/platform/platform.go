package platform

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

var (
	goos          = runtime.GOOS
	osReleasePath = "/etc/os-release"
)

// OSRelease contains the fields of /etc/os-release relevant to msrpack
type OSRelease struct {
	ID              string
	IDLike          string
	VersionCodename string
	PrettyName      string
}

// ReadOSRelease returns the os-release information of the current system
func ReadOSRelease() (*OSRelease, error) {
	content, err := os.ReadFile(osReleasePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read os-release: %w", err)
	}

	osr := &OSRelease{}
	for _, line := range strings.Split(string(content), "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "ID":
			osr.ID = value
		case "ID_LIKE":
			osr.IDLike = value
		case "VERSION_CODENAME":
			osr.VersionCodename = value
		case "PRETTY_NAME":
			osr.PrettyName = value
		}
	}

	return osr, nil
}

// AptBased reports whether the distribution uses the apt package manager
func (o *OSRelease) AptBased() bool {
	if o.ID == "debian" || o.ID == "ubuntu" {
		return true
	}
	for _, like := range strings.Fields(o.IDLike) {
		if like == "debian" || like == "ubuntu" {
			return true
		}
	}
	return false
}

// Name returns a human-readable distribution name for error messages
func (o *OSRelease) Name() string {
	if o.PrettyName != "" {
		return o.PrettyName
	}
	if o.ID != "" {
		return o.ID
	}
	return "unknown"
}

// Check verifies that the host can run the packaging toolchains. It fails
// on non-Linux hosts and on Linux distributions that are not apt-based.
func Check() error {
	if goos != "linux" {
		return fmt.Errorf("unsupported operating system %q: msrpack requires a Debian-based Linux distribution", goos)
	}

	osr, err := ReadOSRelease()
	if err != nil {
		return err
	}
	if !osr.AptBased() {
		return fmt.Errorf("unsupported distribution %q: msrpack requires an apt-based distribution (Debian or Ubuntu)", osr.Name())
	}

	return nil
}
