/*
Package resilience guards server request handlers.

# Overview

A server runs every request through a Guard. A handler that panics is run
again, up to Settings.Attempts times in total; if it panics on every attempt
the request fails with ErrPersistentFailure and the server replies with its
persistent failure status instead of dying.

# States

When Settings.Threshold consecutive requests fail persistently the circuit
opens and requests are refused with ErrCircuitOpen until Settings.Cooldown
has passed. The next request is then let through as a probe:

	Closed --[threshold]-> Open --[cooldown]-> Half-Open --[success]-> Closed
	                                              |
	                                          [failure]
	                                              |
	                                              v
	                                            Open

# Usage

	guard := resilience.New("mm", resilience.Settings{
		Attempts:  3,
		Threshold: 5,
		Cooldown:  time.Second,
	})

	reply, err := guard.Execute(func() itc.Message {
		return handler.Handle(from, msg)
	})
*/
package resilience
