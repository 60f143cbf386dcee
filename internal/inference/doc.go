// Package inference loads a compiled program into statically sized memory and runs it.
//
// A Loader walks a fixed state machine:
//
//	Uninitialized --Initialize--> Initialized --LoadProgram--> ProgramLoaded --LoadProgram--> MethodReady
//
// Initialize sets up the method and temporary arenas over their pools. LoadProgram parses
// the program, plans the method's buffers from the method arena, and loads the method.
// Once MethodReady, Run binds caller buffers as inputs, executes the method and copies
// output 0 back to the caller.
//
// A failure leaves the Loader at the last state it reached; nothing from a failed
// load is kept. Errors carry a status.Code and the stage that failed.
//
// All memory a run touches is reserved by LoadProgram, so Run does not allocate.
// A Loader must not be copied and is not safe for concurrent use; callers that share one
// across goroutines must serialize every call.
package inference
