// Package proto declares the wire contract of every system service: the
// action codes a client puts in word a of a request and the status codes a
// server puts in word a of its reply.
//
// Larger payloads never travel in a message. The sender places them in a page
// it owns and passes the address and length in the remaining words.
package proto
