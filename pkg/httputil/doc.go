// Package httputil provides the HTTP plumbing shared by remote fetch
// adapters.
//
// # Retry
//
// [Retry] runs an operation with exponential backoff. Only errors marked
// with [Retryable] are retried; everything else is returned at once:
//
//	err := httputil.Retry(ctx, httputil.Backoff{}, func(attempt int) error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    defer resp.Body.Close()
//	    return httputil.CheckResponse(resp)
//	})
//
// [CheckResponse] classifies statuses: 2xx is success, 404 wraps
// [ErrNotFound], 408, 429 and 5xx are retryable, and any other status is a
// permanent [StatusError].
//
// # Metadata cache
//
// [Cache] keeps small JSON documents, such as the version an unversioned
// package resolved to, on disk with a TTL. Binaries go through pkg/cache
// instead.
package httputil
