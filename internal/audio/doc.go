// Package audio holds the playback side of a call: a lock-free sample ring
// between the network and the output device, the latency policy that decides
// which packets to discard, and payload decoders.
package audio
