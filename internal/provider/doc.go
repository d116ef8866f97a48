// Package provider converts normalized inference requests into the wire
// calls of remote inference engines. It is structured into small files by
// concern:
//
//   - provider.go: Adapter interface, normalized Chunk, engine dispatch.
//   - chat.go: OpenAI-compatible chat completions (also the Gemini BYOT
//     surface, which is OpenAI-compatible with different defaults).
//   - completion.go: OpenAI-compatible legacy text completions.
//   - converse.go: cloud converse API (Bedrock-style gateway).
//   - params.go: shared parameter vocabulary mapping and message shaping.
//   - sse.go: SSE reading with a chunk-inactivity timeout.
//   - config.go: spec config extraction helpers.
//   - errors.go: error taxonomy (config, transport, provider, callback).
//
// Adapters are stateless; all per-call state lives in the request, the
// specs, and the chunk callback. Secrets found in specs.Config are
// decrypted immediately before use and never logged.
package provider
