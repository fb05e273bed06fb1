// Package inbound parses Mandrill inbound webhook events into a read-only message view.
//
// A Mandrill inbound webhook POSTs a form field named mandrill_events, holding a JSON array of
// events. Each event carries the type ("inbound"), a Unix timestamp, and a msg object describing
// the received email. Message wraps a single event; Attachment wraps one attachment record and
// decodes its content on demand.
//
// Mandrill batches one inbound event per POST, so New only looks at the first element of an
// array. ParseBatch is available for callers that need every event.
package inbound
