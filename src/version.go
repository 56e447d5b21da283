package raspiaprs

import (
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
)

// Set at build time via `-ldflags "-X 'github.com/doismellburning/raspiaprs/src.RASPIAPRS_VERSION=X'"`
var RASPIAPRS_VERSION string

func getBuildSettingOrDefault(bi *debug.BuildInfo, key string, defaultValue string) string {
	if bi == nil {
		return defaultValue
	}

	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}

	return defaultValue
}

// Version goes into the APRS-IS login line and the position comment.
func Version() string {
	if RASPIAPRS_VERSION != "" {
		return RASPIAPRS_VERSION
	}

	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}

	return "0.0.0-dev"
}

func printVersion(w io.Writer, verbose bool) {
	var buildInfo, _ = debug.ReadBuildInfo()

	var buildTimeStr = getBuildSettingOrDefault(buildInfo, "vcs.time", "UNKNOWN")

	var (
		buildCommit               = getBuildSettingOrDefault(buildInfo, "vcs.revision", "UNKNOWN")
		buildDirtyStr             = getBuildSettingOrDefault(buildInfo, "vcs.modified", "INVALID")
		buildDirty, buildDirtyErr = strconv.ParseBool(buildDirtyStr)
	)

	if buildDirty {
		buildCommit += "-DIRTY"
	} else if buildDirtyErr != nil {
		buildCommit += "-UNKNOWNDIRTY"
	}

	fmt.Fprintf(w, "RasPiAPRS - Version %s (revision %s, built at %s)\n", Version(), buildCommit, buildTimeStr)

	if verbose && buildInfo != nil {
		fmt.Fprintf(w, "\nBuildInfo: %+v\n", buildInfo)
	}
}
