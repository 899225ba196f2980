/*
Package redisfeed drains a Redis list into a worker pool.

A Publisher LPUSHes payloads onto a list; a Feed BRPOPs them off the other end and
submits one pool task per payload, so payloads are handled in publish order when the
pool has a single worker and in roughly that order otherwise.

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	pool := workerpool.New(8)
	defer pool.Close()

	feed, err := redisfeed.New(redisfeed.Config{
		Redis:   client,
		Key:     "jobs",
		Pool:    pool,
		Handler: func(payload string) { process(payload) },
	})
	if err != nil {
		return err
	}

	go feed.Run(ctx)

	pub, _ := redisfeed.NewPublisher(client, "jobs")
	pub.Publish(ctx, "a", "b", "c")

Run stops when ctx is cancelled (within one PollTimeout) or when the pool refuses a
task because it has been closed. In the second case the payload is pushed back onto
the list so another consumer can pick it up.
*/
package redisfeed
