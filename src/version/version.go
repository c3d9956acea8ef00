package version

import (
	"runtime/debug"
)

// set with -ldflags "-X papertrader/src/version.Version=..."
var (
	Commit         = "unknown"
	Version        = "unknown"
	BuildTimestamp = "unknown"
)

func GetBuildInfo() map[string]string {
	data := make(map[string]string, 0)

	if bi, ok := debug.ReadBuildInfo(); ok {
		data["go_version"] = bi.GoVersion
		for _, s := range bi.Settings {
			data[s.Key] = s.Value
		}
	}

	data["commit"] = Commit
	data["version"] = Version
	data["build_timestamp"] = BuildTimestamp

	return data
}
