// Package retry bounds provider calls with an attempt budget, jittered
// exponential backoff, and a shared circuit breaker.
//
// Only transient failures consume the attempt budget; validation-class
// errors surface immediately. Repeated transient failures across jobs
// open the breaker, which fails calls fast for a cool-down period before
// letting a single probe through.
package retry
