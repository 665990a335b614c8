// Package inference wraps the remote transcription/rewrite API with error
// classification and exponential backoff.
//
// Every failed call is normalized into a ClassifiedError whose kind drives the
// retry policy: auth and unknown errors surface immediately, quota errors wait
// out the server's retry-after hint (60s when absent), and server or network
// errors back off 1s/2s/4s across at most three retries. The client is
// stateless between calls and safe for concurrent use.
package inference
