package pages

import "errors"

// ErrorExhausted address space exhausted, the OS mapping collaborator
// cannot satisfy the request. Retry policy, if any, belongs to the
// caller.
var ErrorExhausted = errors.New("pages.exhausted")

// ErrorOutofMemory metadata allocator exhausted, no storage for a fresh
// extent descriptor.
var ErrorOutofMemory = errors.New("pages.outofmemory")
