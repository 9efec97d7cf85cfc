// Package inbound adapts raw network callbacks to the crediting
// engine.
//
// Ad networks deliver server-side verification callbacks as GET
// requests and retry on any non-2xx answer. The dispatcher maps every
// crediting outcome, including the deduplicated replay, to the HTTP
// status that stops or sustains those retries.
package inbound
