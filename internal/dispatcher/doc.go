// Package dispatcher turns an incoming tool call into a handler invocation.
//
// Each call moves through the phases Received, Resolving, Authenticating,
// Validating, Executing and Responding. A failure stops the call in the
// phase where it happened and is reported as an *Error:
//
//   - KindNotFound: no tool with that name (Resolving)
//   - KindUnauthorized: missing, unknown or expired bearer token (Authenticating)
//   - KindBadParameters: arguments do not match the schema; Field names the
//     offending parameter (Validating)
//   - KindHandlerError: the handler returned an error, panicked, or the
//     caller went away (Executing)
//
// Handler panics are recovered, so one bad call never takes the server down.
package dispatcher
