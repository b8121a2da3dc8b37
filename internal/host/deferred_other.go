//go:build !windows

package host

// DeferredDelivery reports whether the platform queues signals until the
// process explicitly dispatches them. Unix delivers them synchronously.
const DeferredDelivery = false
