// Package herald is a lightweight, minimal, inter-process publish/subscribe
// transport confined to a single host.
//
// A Publisher accepts subscriber connections over a local TCP control
// channel and fans out published messages to each subscriber through a
// shared-memory region dedicated to that subscriber. TCP carries only a
// short handshake; the data path is shared memory, coordinated by a
// generation counter and a triple-buffered, latest-value-wins scheme.
//
// # Publisher example (no error checking)
//
//	pub := herald.NewPublisher(8080, 1024)
//	pub.Init()
//	for i := 0; ; i++ {
//		pub.Publish([]byte(fmt.Sprintf("message %d", i)))
//		time.Sleep(100 * time.Millisecond)
//	}
//
// # Subscriber example (no error checking)
//
//	sub := herald.NewSubscriber(8080, func(data []byte) {
//		fmt.Println("got callback data:", string(data))
//	})
//	sub.Init()
//	time.Sleep(10 * time.Second)
//
// herald does not provide message durability, authentication, cross-host
// transport, publisher backpressure signalling, or multi-publisher
// ordering. See SPEC_FULL.md for the full contract.
package herald
