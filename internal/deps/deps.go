package deps

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Requirement defines an external binary the service shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// Group names alternatives; a group is satisfied when any member is available.
	Group string
}

// Status reports the availability of a dependency.
type Status struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

// Requirements lists the binaries the analysis pipeline needs. Downloaders
// are given in probe order and form one alternative group.
func Requirements(ffmpeg, ffprobe string, downloaders ...string) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: ffmpeg, Description: "segment extraction"},
		{Name: "FFprobe", Command: ffprobe, Description: "segment diagnostics", Optional: true},
	}
	for i, bin := range downloaders {
		req := Requirement{Command: bin, Group: "downloader"}
		switch i {
		case 0:
			req.Name, req.Description = "Primary downloader", "audio download"
		case 1:
			req.Name, req.Description = "Secondary downloader", "audio download fallback"
		default:
			req.Name, req.Description = fmt.Sprintf("Downloader %d", i+1), "audio download fallback"
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		status := Status{Requirement: req}
		if req.Command == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(req.Command)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
			results = append(results, status)
			continue
		}
		status.Path = path
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing returns the names of unmet requirements. Optional entries never
// count, and a group counts once, only when none of its members is available.
func Missing(statuses []Status) []string {
	var missing []string
	groups := make(map[string]bool)
	var order []string
	for _, s := range statuses {
		if s.Optional {
			continue
		}
		if s.Group != "" {
			if _, seen := groups[s.Group]; !seen {
				order = append(order, s.Group)
			}
			groups[s.Group] = groups[s.Group] || s.Available
			continue
		}
		if !s.Available {
			missing = append(missing, s.Name)
		}
	}
	for _, g := range order {
		if !groups[g] {
			missing = append(missing, g)
		}
	}
	return missing
}

// Report logs one line per dependency and a warning for anything unmet.
// Startup continues either way; requests that need a missing binary fail.
func Report(logger *slog.Logger, statuses []Status) {
	for _, s := range statuses {
		if s.Available {
			logger.Info("Dependency available", "name", s.Name, "command", s.Command, "path", s.Path)
			continue
		}
		logger.Warn("Dependency unavailable",
			"name", s.Name,
			"command", s.Command,
			"purpose", s.Description,
			"optional", s.Optional,
			"detail", s.Detail)
	}
	if missing := Missing(statuses); len(missing) > 0 {
		logger.Warn("Required dependencies missing, /analyze will fail until they are installed",
			"missing", strings.Join(missing, ", "))
	}
}
