// Package transport carries serialized event packets over NATS.
//
// The package has three layers. Client is a managed NATS connection with
// circuit breaker protection and reconnect handling. Publisher turns
// event.Event values into packets and addresses them by provenance.
// Subscriber does the reverse: it subscribes a set of subjects and decodes
// raw packets back into typed events through a worker pool.
//
// # Client
//
// Client wraps the NATS connection with a circuit breaker (open after 5
// consecutive failures, cooldown doubling up to one minute), bounded dial
// retries, and optional metric and health reporting:
//
//	client, err := transport.NewClient("nats://localhost:4222",
//	    transport.WithName("rig01-tap"),
//	    transport.WithMaxReconnects(-1),
//	    transport.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
// Publish sends raw bytes. PublishMsg additionally stamps a Nats-Msg-Id
// header with a fresh uuid so JetStream-enabled consumers can deduplicate.
// Subscribe returns a handle whose Unsubscribe is idempotent.
//
// When the circuit is open, operations fail fast with errors.ErrCircuitOpen
// instead of piling onto a broker that is already struggling. Without a
// connection they return errors.ErrNoConnection.
//
// # Subjects
//
// Packets are addressed by their provenance under a configurable prefix:
//
//	<prefix>.events.<stageID>.<subStream>   stage event and spike packets
//	<prefix>.system.<stageID>               system packets
//
// The wildcard helpers build subscription subjects for taps:
// EventWildcard matches every stage, StageWildcard one stage across its
// sub-streams, Wildcard everything under the prefix.
//
// # Publisher
//
// Publisher serializes into pooled buffers and publishes either inline or
// through a ring drained by a background goroutine:
//
//	pub, err := transport.NewPublisher(client, cfg.SubjectRoot(),
//	    transport.WithPublisherMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := pub.Start(ctx); err != nil {
//	    return err
//	}
//	defer pub.Stop(5 * time.Second)
//
//	// Inline on the caller's goroutine.
//	err = pub.Publish(ctx, ttlEvent)
//
//	// Asynchronous through the ring.
//	err = pub.Enqueue(spikeEvent)
//
// The ring drops the oldest pending packet when full, so acquisition
// never blocks on a slow broker. Drops are counted under the
// publisher_ring metric prefix and the publish drop counter.
//
// # Subscriber
//
// Subscriber feeds raw packets through a decode pool and invokes a typed
// callback. Undecodable packets are classified, counted and dropped:
//
//	sub, err := transport.NewSubscriber(client, registry2, handle,
//	    transport.WithSubjects(transport.Wildcard(cfg.SubjectRoot())),
//	    transport.WithDecodeWorkers(4),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := sub.Start(ctx); err != nil {
//	    return err
//	}
//	defer sub.Stop(5 * time.Second)
//
//	func handle(ctx context.Context, subject string, e event.Event) {
//	    switch ev := e.(type) {
//	    case *event.TTL:
//	        // line toggled
//	    case *event.Spike:
//	        // waveform crossed threshold
//	    }
//	}
//
// # Testing
//
// Unit tests run against an in-memory Bus; see the testutil package.
// Integration tests start a real NATS server in a container:
//
//	tc := transport.NewTestClient(t, transport.WithFastStartup())
//	pub, _ := transport.NewPublisher(tc.Client, "test")
package transport
