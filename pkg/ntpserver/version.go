// Package ntpserver answers NTP client queries as a stateless stratum 1
// time source.
package ntpserver

const (
	// Version is the semantic version of the library.
	Version = "0.3.0"

	VersionMajor = 0
	VersionMinor = 3
	VersionPatch = 0
)

func VersionInfo() string {
	return "go-sntpd v" + Version
}
