// Package testutil provides shared helpers for SigStreams integration tests.
//
// # MockBus
//
// MockBus is an in-memory transport.Bus with NATS wildcard matching. It
// records every published packet for verification and dispatches to matching
// subscriptions synchronously, so unit tests run without a broker:
//
//	bus := testutil.NewMockBus()
//	pub, _ := transport.NewPublisher(bus, "ephys")
//	_ = pub.Publish(ctx, ttlEvent)
//	testutil.AssertMessageReceived(t, bus, "ephys.events.100.0")
//
// SetPublishError injects failures for error-path tests, and Close makes
// every call fail with ErrShuttingDown for shutdown tests. All MockBus
// methods are safe for concurrent use.
//
// # Canned channels and packets
//
// NewChannels builds the standard one-stage rig: four 30 kHz headstage
// channels, an 8-line TTL bank, a sync bank with a sample-index metadata
// field, a message channel, a tetrode spike channel and a configuration
// channel. The event builders produce well-formed packets against those
// descriptors, and MalformedPackets holds byte strings the decoder must
// reject:
//
//	chans := testutil.NewChannels(t)
//	ttl := testutil.TTLEvent(t, chans.TTL, 1000, 3, true)
//	raw := testutil.Packet(t, ttl)
//
// # Rig
//
// Rig connects a publisher and a subscriber over a MockBus and collects
// whatever decodes, exercising the full serialize, carry and decode path in
// memory:
//
//	rig := testutil.NewRig(t, chans.Registry, "ephys")
//	rig.Start(t)
//	_ = rig.Publisher.Publish(ctx, ttl)
//	rig.WaitForEvents(t, 1, time.Second)
//
// Decode workers run concurrently, so collected order is not publish order.
//
// # Mocks versus containers
//
// MockBus serves unit tests. For behavior that depends on a real broker,
// wire loss or reconnection, use transport.NewTestClient, which runs NATS in
// a testcontainer.
package testutil
