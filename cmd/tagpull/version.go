package main

import "runtime/debug"

// Variables injected via ldflags at build time.
var (
	Version = "DEV"
	Date    = ""
)

func init() {
	if Version == "DEV" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
	}
}

func versionString() string {
	if Date == "" {
		return "tagpull " + Version
	}

	return "tagpull " + Version + " (" + Date + ")"
}
