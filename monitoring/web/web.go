// Package web includes the static control page served by the monitor.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"runtime"
	"strconv"
)

// DevModeEnv names the variable that makes GetAssets serve the page from the
// source tree, so it can be edited without rebuilding.
const DevModeEnv = "SAVESTATE_MONITOR_DEV"

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the control page assets.
func GetAssets() http.FileSystem {
	if isDevelopmentMode() {
		_, srcFile, _, ok := runtime.Caller(0)
		if !ok {
			panic("error getting path")
		}

		assetPath := path.Join(path.Dir(srcFile), "dist")
		slog.Warn("serving control page from source tree", "path", assetPath)

		return http.Dir(assetPath)
	}

	subFS, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(subFS)
}

func isDevelopmentMode() bool {
	on, err := strconv.ParseBool(os.Getenv(DevModeEnv))
	return err == nil && on
}
