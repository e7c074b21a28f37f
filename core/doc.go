// Package core defines the shared vocabulary of the agentway runtime: events
// and their parts, sessions with append-only histories, the Agent interface
// and its control signals, the RunContext threading one turn's execution
// scope through the agent tree, and the SessionStore / MemoryStore service
// contracts implemented by the session and memory packages.
package core
