// Package pools reuses render buffers across requests.
package pools
