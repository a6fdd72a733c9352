// Package avl implements a height-balanced binary search tree with parent
// back references, usable as an ordered in-memory map.
//
// Node storage lives in a generational arena; parent, left and right links
// are plain arena references, so removing a node can never leave a
// dangling pointer behind.
//
// Note: an individual tree is not thread safe, so either access only
// from a single goroutine or use a mutex/rwmutex to restrict access.
package avl
