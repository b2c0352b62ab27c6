package mapping

// SupportedProviders lists the search backends the engine can be configured with.
// Config files must use these exact names in their provider field.
var SupportedProviders = []string{
	"memory",
	"mongo",
}

// IsSupportedProvider checks if a provider name is supported
func IsSupportedProvider(name string) bool {
	for _, p := range SupportedProviders {
		if p == name {
			return true
		}
	}
	return false
}
