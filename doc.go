// Package sigstreams provides typed channel metadata and a compact binary
// event codec for multi-stage signal-processing pipelines, built for
// electrophysiology acquisition rigs where continuous neural signals,
// digital line toggles, annotations and spike waveforms flow through a
// chain of processing stages.
//
// # Philosophy: Descriptors Are the Contract
//
// Every event on the wire is bound to a channel descriptor declared up
// front. The descriptor fixes the payload shape (line count, text length,
// element kind, waveform window) and the metadata schema; packets carry
// only provenance and payload bytes. A consumer that holds the same
// descriptors decodes any packet without per-packet schema negotiation,
// and a packet whose shape disagrees with its descriptor is rejected at
// the boundary instead of corrupting downstream state.
//
// Three identifiers locate a channel: the owning stage's id, the
// sub-stream multiplexed under that stage, and the type index among
// channels of the same shape. Together they form the registry key that
// every stage-produced packet carries in its header.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│           Stages                    │  acquisition, filters,
//	│   (stage.New, stage.NewBuilder)     │  detectors, sinks
//	└──────────────────┬──────────────────┘
//	                   │ declare
//	┌──────────────────▼──────────────────┐
//	│       Channel Descriptors           │  continuous, event,
//	│  (channel.Registry, metadata.Field) │  spike, configuration
//	└──────────────────┬──────────────────┘
//	                   │ bind
//	┌──────────────────▼──────────────────┐
//	│           Events                    │  TTL, Text, Binary,
//	│   (event.NewTTL, event.NewSpike)    │  Spike, System
//	└──────────────────┬──────────────────┘
//	                   │ serialize
//	┌──────────────────▼──────────────────┐
//	│        Binary Packets               │  fixed headers,
//	│  (Serialize / event.Deserialize)    │  descriptor-sized payloads
//	└──────────────────┬──────────────────┘
//	                   │ publish
//	┌──────────────────▼──────────────────┐
//	│        NATS Subjects                │  <root>.events.<stage>.<sub>
//	│ (transport.Publisher / Subscriber)  │  <root>.system.<stage>
//	└─────────────────────────────────────┘
//
// # Packet Layout
//
// Stage-produced packets (TTL, text, binary arrays) and spike packets
// share an 18-byte header; system packets stop after the sub-stream
// field. Multi-byte fields use host byte order, matching the acquisition
// hardware the pipeline runs beside.
//
//	offset  size  field
//	     0     1  base kind (0 system, 1 stage, 2 spike)
//	     1     1  sub-kind  (payload kind / electrode kind / system kind)
//	     2     2  stage id
//	     4     2  sub-stream
//	     6     2  type index            ┐
//	     8     2  selector              │ stage and spike
//	    10     8  timestamp             ┘ packets only
//	    18     -  payload, then metadata trailer
//
// The selector is the toggled line for TTL packets, a caller-defined
// discriminator for text and binary packets, and the sorted-unit id for
// spikes. The metadata trailer is raw field values in schema order; the
// schema itself lives on the descriptor, never on the wire.
//
// # Framework Packages
//
// Model:
//   - channel: descriptors, registry, payload and electrode kinds
//   - metadata: typed field schemas and values for event trailers
//   - stage: stage identity and the channel builder
//   - event: event values, the binary codec, packet type detection
//
// Infrastructure:
//   - transport: NATS client, subject scheme, publisher, subscriber
//   - config: layered JSON config and the YAML channel manifest
//   - metric: Prometheus registry, counters and the metrics endpoint
//   - health: component health monitor with aggregation
//   - errors: classified errors (transient, fatal, invalid)
//
// Utilities:
//   - pkg/buffer: bounded ring buffer with overflow policies
//   - pkg/retry: retry policies with backoff
//   - pkg/worker: bounded worker pools
//   - pkg/tlsutil: client TLS configs for broker connections
//   - testutil: mock bus, canned channel topologies, test rig
//
// # Usage Patterns
//
// Declaring channels:
//
//	registry := channel.NewRegistry()
//	acq := stage.New(100, "acquisition")
//	b := stage.NewBuilder(acq, 0, registry)
//
//	raw, _ := b.Continuous(channel.SignalHeadstage,
//	    channel.WithName("CH1"), channel.WithSampleRate(30000))
//	digital, _ := b.Event(channel.TTL, 8, channel.WithName("digital-in"))
//	spikes, _ := b.Spike(channel.Tetrode, sources, channel.WithName("tetrode-1"))
//
// Emitting events:
//
//	e, _ := event.NewTTL(digital, timestamp, line, word)
//	pub, _ := transport.NewPublisher(client, cfg.SubjectRoot())
//	pub.Publish(ctx, e)
//
// Tapping a stream:
//
//	sub, _ := transport.NewSubscriber(client, registry, handle,
//	    transport.WithSubjects(transport.Wildcard(cfg.SubjectRoot())))
//	sub.Start(ctx)
//
// The handler receives decoded events; a type switch on the concrete
// event types recovers the full payload. See cmd/sigtap for the complete
// wiring including config, metrics and health.
//
// # Design Principles
//
// Descriptors over negotiation:
//   - Shape and schema are declared once, packets stay minimal
//   - Incompatible packets fail loudly at decode time
//
// Immutable events:
//   - Events own their payload bytes from construction
//   - Serialize never mutates, decode never aliases the input
//
// Bounded everything:
//   - Publisher ring drops oldest under overflow, counted
//   - Subscriber decode pool has a fixed queue, drops are counted
//
// Testability:
//   - Explicit dependencies, the broker hides behind a two-method Bus
//   - testutil runs the full path in memory, integration tests use
//     testcontainers against a real broker
//
// # Binary
//
// cmd/sigtap subscribes to a node's subjects and prints every decoded
// event as a structured log line:
//
//	sigtap --config=/etc/sigstreams/sigtap.json \
//	       --manifest=/etc/sigstreams/channels.yaml
//
// Without a manifest the tap still prints system packets; stage and
// spike packets need the channel declarations to decode.
package sigstreams
