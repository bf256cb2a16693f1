// Package executor runs a single agent turn against its model provider.
//
// A RunCommand bundles the agent, the conversation thread and the hook that
// observes the run. Executor.Run renders the agent's instructions, streams the
// provider's reply to the hook, appends the reply to the thread and completes
// a Promise with the final text. A Future decodes that text into the caller's
// type:
//
//	cmd, err := NewRunCommand(agent, thread, hook)
//	if err != nil {
//	    return err
//	}
//	fut := NewFuture(DefaultUnmarshal[book.Outline]())
//	if err := NewLocal().Run(ctx, cmd.WithStream(true), fut); err != nil {
//	    return err
//	}
//	outline, err := fut.Get()
//
// Failed provider attempts are retried according to a retry.Policy behind a
// circuit breaker shared by every run of the same Local executor.
package executor
