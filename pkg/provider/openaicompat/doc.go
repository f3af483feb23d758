// Package openaicompat holds the wire types and calls shared by every vendor
// that speaks the OpenAI Chat Completions or Images API: openai itself,
// DashScope's compatible mode, sora2api's image model and local servers.
//
// Responses are accepted as a plain JSON completion or as an SSE transcript
// of chunks, since several proxies stream even when stream=false.
package openaicompat
