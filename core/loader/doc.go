// Package loader provides the plugin-like feature loading system.
//
// Each feature of the HTTP service implements the Feature interface, which names it,
// reports whether it is enabled and registers its routes.
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// The Manager holds the registry: Register() adds features, LoadAll() loads the
// enabled ones in registration order. The 'library' and 'tags' features are loaded
// this way by the start command.
package loader
