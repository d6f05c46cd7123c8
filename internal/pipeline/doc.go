// Package pipeline is the cycle controller. It sequences the preflight
// states (environment validation, instance lock) and then runs cycles of
// fetch followed by transcribe, either once or forever with a fixed pause.
//
// States:
//
//	Start → ValidateEnv → AcquireLock → RunFetch → RunTranscribe → End
//	                                      ↑                │
//	                                      └──── Sleep ←────┘   (run-forever)
//
// Only preflight failures stop the controller. Stage outcomes are logged and
// counted but never change what runs next: transcribe always follows fetch,
// and the next cycle always follows the sleep, so a misconfiguration fixed
// between cycles heals without a restart.
//
// Every cycle writes a start and a finish boundary line with timestamps.
// The context is checked before each stage and during the sleep; a cancelled
// context never starts new work, but a running stage is waited for.
package pipeline
