package deps

// PipelineRequirements lists the binaries a conversion run can invoke.
// FFmpeg is mandatory: without it no job can succeed. ImageMagick is
// optional because the reconstruction stage degrades to a global skip
// when it is missing.
func PipelineRequirements(ffmpegBinary, magickBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Encodes slideshow videos and verifies images",
		},
		{
			Name:        "ImageMagick",
			Command:     magickBinary,
			Description: "Rewrites images without metadata profiles",
			Optional:    true,
		},
	}
}

// MissingRequired returns the names of unavailable non-optional dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}

// Find returns the status with the given name, if present.
func Find(statuses []Status, name string) (Status, bool) {
	for _, status := range statuses {
		if status.Name == name {
			return status, true
		}
	}
	return Status{}, false
}
