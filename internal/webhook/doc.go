// Package webhook implements the inbound HTTP surface with HMAC-SHA256
// signature verification and early acknowledgment.
//
// The messaging platform redelivers a webhook on any non-200 or slow
// response, so the handler always answers 200 "OK" immediately and hands
// verified deliveries to a detached background processor. Application-level
// outcomes (extraction, ledger writes, forwards) are never visible in the
// HTTP response.
//
// # Security Model
//
//   - HMAC-SHA256 over the exact raw body bytes as received on the wire;
//     the body is never parsed or re-serialized upstream of the check
//   - Base64-encoded digests compared with crypto/subtle (constant-time)
//   - Verification failures drop the delivery silently (logged warning,
//     still 200 to the caller) — never a process-level error
//   - Body size limits enforced to prevent DoS
//   - Request logging excludes payload content
//
// # Request Flow
//
//  1. HTTP POST arrives at / or /webhook
//  2. Raw body read under the size limit
//  3. x-line-signature extracted and verified against the channel secret
//  4. 200 "OK" written unconditionally
//  5. On successful verification only, the delivery is handed to the
//     processor, which detaches from the request lifecycle
//
// GET and HEAD on the same paths serve as health checks.
package webhook
