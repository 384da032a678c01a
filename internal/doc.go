// Package internal contains the core implementation packages for protoplast.
//
// # Package Organization
//
// The internal packages are organized leaves first:
//
//   - types: handles, object ids and store events shared by everything else
//   - errors: ProtoError codes, the source error collector and helpers
//   - logging: slog-backed structured logger and operation timing
//   - world: the host object model and an in-memory implementation
//   - schematic: schematic kinds, the kind registry and the built-in kinds
//   - registry: the template store and static dependency analysis
//   - cycles: cycle values and the policies that decide how to respond
//   - hooks: the twelve lifecycle hook slots
//   - tree: per-request dependency tree construction
//   - engine: applies and removes a built tree against the world
//   - manager: the public entry point tying store, builder and engine together
//   - config: viper file configuration and the ProtoConfig builder
//   - loader: YAML and JSONC template sources feeding the manager
//   - watcher: fsnotify change notifications driving loader syncs
//   - websocket, server: the live inspector served by `protoplast watch`
//   - version: build information
//
// # Inter-Package Communication
//
//   - The loader decodes files and calls Register, Reload and Unregister
//   - The manager builds a tree per request and hands it to the engine
//   - The store broadcasts registered, reloaded and unregistered events,
//     which the inspector forwards to connected browsers
//   - The watcher batches file events and hands them to the loader
package internal
