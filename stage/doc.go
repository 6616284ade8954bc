// Package stage provides the pipeline-side view of channel ownership: the
// concrete Stage identity and the Builder that declares a stage's output
// channels into a registry during pipeline establishment.
//
// A stage's numeric id is its stable identity; its display name is
// presentation only and may be renamed at runtime. Descriptors capture the
// name as a snapshot at declaration time, so a rename never rewrites
// history.
//
// The Builder hands out indexes the way the pipeline wires channels: the
// output index counts all declarations of the stage's sub-stream in order,
// and the type index counts declarations within each shape. Packets on the
// wire carry the type index, so consumers resolve them per shape.
//
//	sorter := stage.New(5, "spike sorter")
//	b := stage.NewBuilder(sorter, 0, registry)
//
//	ch1, _ := b.Continuous(channel.SignalHeadstage, channel.WithName("CH1"))
//	ttl, _ := b.Event(channel.TTL, 8)
//	spikes, err := b.Spike(channel.SingleElectrode, []*channel.Continuous{ch1})
package stage
