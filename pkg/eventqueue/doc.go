// Package eventqueue is the HTTP fallback channel for messages that should
// not travel over UDP.
//
// Each circuit gets a bounded Queue addressed by an unguessable capability
// id. Viewers long-poll the capability URL; a waiting poll is answered as
// soon as an event arrives, otherwise events buffer until the next poll.
// Events are delivered oldest first and a full queue rejects new events.
//
// Responses are JSON batches:
//
//	{"id": 3, "events": [{"message": "EnableSimulator", "body": {...}}]}
//
// The client passes the id of the last batch it received as ?ack=N. A poll
// whose ack does not match the last batch handed out receives that batch
// again.
package eventqueue
