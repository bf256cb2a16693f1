// Package provider abstracts the language model backends used to draft,
// review and revise a book.
//
// A Provider turns CompletionParams (instructions, the conversation thread and
// an optional response schema) into a channel of stream events:
//
//  1. Delim marks the start and end of a model turn
//  2. Chunk carries an incremental piece of the assistant reply
//  3. Response carries the complete reply and the tokens it used
//  4. Error reports a failure; no Response follows it
//
// The channel is closed once the turn is over. Every event carries the run and
// turn ids so events from concurrent chapter tasks can be told apart.
//
//	events, err := prov.ChatCompletion(ctx, provider.CompletionParams{
//	    RunID:        uuidx.New(),
//	    Instructions: "You are a novelist",
//	    Thread:       thread,
//	    Stream:       true,
//	    Model:        model,
//	})
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    switch ev := ev.(type) {
//	    case provider.Chunk:
//	        fmt.Print(ev.Chunk.Content)
//	    case provider.Response:
//	        reply = ev.Response.Content
//	    case provider.Error:
//	        return ev
//	    }
//	}
package provider
