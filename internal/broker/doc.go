// Package broker distributes production events over named topics so progress
// can be watched from another process.
//
// Two implementations exist: Local keeps topics in memory and delivers to
// in-process subscribers, dropping a subscriber that can't keep up; NATS
// publishes JSON encoded events on "<prefix>.<book id>".
//
//	topic := broker.NATS(conn, "bookstart").Topic(ctx, bookID)
//	sub, err := topic.Subscribe(ctx, printer)
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
//	hook := broker.PublishingHook(topic, bookID)
package broker
