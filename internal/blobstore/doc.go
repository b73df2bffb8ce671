// Package blobstore is the durable-object-store boundary: get/put by path,
// a not-found signal distinguishable from I/O failure, and a short tag used
// to label per-backend metrics. Everything above this package — file-store
// layout, batch metadata, retries — is backend-agnostic.
package blobstore
