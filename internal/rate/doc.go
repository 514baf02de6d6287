// Package rate implements Redis fixed-window counters used to throttle
// clients that keep presenting bad credentials.
//
// # Window semantics
//
// INCR + EXPIRE on the first hit of a window. Keys are
// "<prefix>:f:<client>" and expire on their own, so nothing needs
// cleaning up.
package rate
