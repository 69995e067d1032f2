// Package realtime broadcasts dashboard notifications to websocket subscribers.
// Publishing is fire-and-forget: callers never wait on delivery.
package realtime
