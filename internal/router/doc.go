// Package router implements the consumer side of a client.
//
// The Message Channel hands every accepted envelope to Router.Deliver, which
// only enqueues. A single dispatch goroutine pops envelopes in arrival order
// and calls the handler registered for the envelope's tag, or the default
// handler.
package router
