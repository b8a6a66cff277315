// Package version provides utilities for extracting build and dependency information
package version

import (
	"runtime/debug"
	"sort"
)

// DependencyInfo represents a module dependency and its version
type DependencyInfo struct {
	Path    string `json:"path"`
	Version string `json:"version"`
	Replace string `json:"replace,omitempty"` // If module is replaced
}

// BuildInfo contains build-time information
type BuildInfo struct {
	GoVersion    string           `json:"goVersion"`
	MainModule   string           `json:"mainModule"`
	MainVersion  string           `json:"mainVersion"`
	Dependencies []DependencyInfo `json:"dependencies"`
}

// domainDeps are the module paths that drive the coordination plane's
// behavior (KV/broker transport, HTTP introspection, logging, tracker ids).
// GetServiceVersion narrows the dependency list to these so /version stays
// readable instead of dumping the full transitive module graph.
var domainDeps = []string{
	"github.com/redis/go-redis/v9",
	"go.etcd.io/bbolt",
	"github.com/labstack/echo/v4",
	"github.com/sirupsen/logrus",
	"github.com/google/uuid",
}

// ServiceVersion is the payload the health server's /version route reports:
// a service's identity alongside its build info.
type ServiceVersion struct {
	Service string     `json:"service"`
	Build   *BuildInfo `json:"build"`
}

// GetServiceVersion returns service's build info with Dependencies filtered
// to domainDeps.
func GetServiceVersion(service string) ServiceVersion {
	build := GetBuildInfo()
	kept := make([]DependencyInfo, 0, len(domainDeps))
	for _, dep := range build.Dependencies {
		for _, want := range domainDeps {
			if dep.Path == want {
				kept = append(kept, dep)
				break
			}
		}
	}
	build.Dependencies = kept
	return ServiceVersion{Service: service, Build: build}
}

// GetBuildInfo extracts build information from the current binary
// This uses runtime/debug to get module information embedded at build time
func GetBuildInfo() *BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return &BuildInfo{
			GoVersion:    "unknown",
			MainModule:   "unknown",
			MainVersion:  "unknown",
			Dependencies: []DependencyInfo{},
		}
	}

	buildInfo := &BuildInfo{
		GoVersion:    info.GoVersion,
		MainModule:   info.Path,
		MainVersion:  info.Main.Version,
		Dependencies: make([]DependencyInfo, 0, len(info.Deps)),
	}

	// Extract dependencies
	for _, dep := range info.Deps {
		depInfo := DependencyInfo{
			Path:    dep.Path,
			Version: dep.Version,
		}
		if dep.Replace != nil {
			depInfo.Replace = dep.Replace.Path + "@" + dep.Replace.Version
		}
		buildInfo.Dependencies = append(buildInfo.Dependencies, depInfo)
	}

	// Sort dependencies by path for consistent output
	sort.Slice(buildInfo.Dependencies, func(i, j int) bool {
		return buildInfo.Dependencies[i].Path < buildInfo.Dependencies[j].Path
	})

	return buildInfo
}

// GetModuleVersion returns the version of the decs.evalgo.org module being
// used. Returns "unknown" if it is not found in the dependency graph or
// running in dev mode.
func GetModuleVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	if info.Path == "decs.evalgo.org" {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
		return "dev"
	}

	for _, dep := range info.Deps {
		if dep.Path == "decs.evalgo.org" {
			if dep.Replace != nil {
				return dep.Replace.Version + " (replaced)"
			}
			return dep.Version
		}
	}

	return "unknown"
}

// GetDependency returns version information for a specific dependency
func GetDependency(modulePath string) *DependencyInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			depInfo := &DependencyInfo{
				Path:    dep.Path,
				Version: dep.Version,
			}
			if dep.Replace != nil {
				depInfo.Replace = dep.Replace.Path + "@" + dep.Replace.Version
			}
			return depInfo
		}
	}

	return nil
}
