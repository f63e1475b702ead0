package analyzer

// getServiceName extracts service.name from resource attributes.
// Returns "unknown" if service.name is not found or empty.
func getServiceName(attrs map[string]string) string {
	if name, ok := attrs["service.name"]; ok && name != "" {
		return name
	}
	return "unknown"
}
