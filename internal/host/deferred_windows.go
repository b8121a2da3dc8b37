//go:build windows

package host

// DeferredDelivery reports whether the platform queues signals until the
// process explicitly dispatches them. Windows console events arrive on a
// separate thread and are queued for the main path to flush.
const DeferredDelivery = true
