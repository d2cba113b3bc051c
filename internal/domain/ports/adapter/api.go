package adapter

import "context"

// BackendAPI is the job-application REST backend as seen by use cases.
// Implementations inject the session's bearer token.
type BackendAPI interface {
	Do(ctx context.Context, method, path string, in, out any) error
}
