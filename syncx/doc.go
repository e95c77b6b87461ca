// Package syncx implements component C6: the recursive mutex and
// future/promise pair, built directly on fiber.Context's unified
// suspend/resume wait-queue primitive (spec §4.3, §4.4). Both types assume
// every call happens on behalf of whichever fiber currently holds its VM's
// strand baton (see fiber.Context), so neither needs its own locking.
package syncx
