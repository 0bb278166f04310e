// Package fetcher streams a remote archive to a local file while reporting
// fractional progress. It is meant for the install worker only: every call
// blocks until the body is fully written or the request fails.
package fetcher
