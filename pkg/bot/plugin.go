package bot

// Plugin contributes commands and raw-update handlers. Plugins are compiled
// in and registered once at boot.
type Plugin interface {
	Name() string
	Commands() map[string]CommandMetadata
	UpdateHandlers() []UpdateHandler
}
