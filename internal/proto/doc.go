// Package proto defines the signaling wire contract.
//
// Every message is one variant of a closed set. On the wire a message is a
// JSON object whose "type" member names the variant in snake_case, followed
// by the variant's fields:
//
//	{"type":"join_room","room_id":"...","username":"alice"}
//
// Byte fields are JSON arrays of numbers and absent optional fields are
// null, which keeps the format byte-compatible with existing clients. Each
// encoded message is framed by a 4-byte big-endian length prefix.
package proto
