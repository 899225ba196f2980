/*
Package streaming holds the queueing side of workq.

  - queue: Generic blocking FIFO whose shutdown state is distinct from emptiness
  - redisfeed: Consumer that pops a Redis list and submits each payload to a pool

Basic usage:

	q := queue.New[int]()
	go func() {
		for i := 0; i < 10; i++ {
			q.Enqueue(i)
		}
		q.SignalShutdown()
	}()

	for {
		n, ok := q.Dequeue()
		if !ok {
			return
		}
		fmt.Println(n)
	}
*/
package streaming
