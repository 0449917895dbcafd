// Package version holds the build version, set with -ldflags at release time.
package version

var Version = "dev"
