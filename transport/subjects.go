package transport

import (
	"fmt"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/event"
)

// Subject layout. Stage-produced packets are addressed by their origin so
// taps can subscribe to one stage, one sub-stream or everything:
//
//	<prefix>.events.<stageID>.<subStream>   binary, text, ttl and spike packets
//	<prefix>.system.<stageID>               system packets
//
// The prefix is typically config.SubjectRoot().

// EventSubject returns the subject for stage-produced packets of one
// sub-stream.
func EventSubject(prefix string, stageID, subStream uint16) string {
	return fmt.Sprintf("%s.events.%d.%d", prefix, stageID, subStream)
}

// SystemSubject returns the subject for system packets of one stage.
func SystemSubject(prefix string, stageID uint16) string {
	return fmt.Sprintf("%s.system.%d", prefix, stageID)
}

// SubjectForType returns the subject e publishes on, derived from its
// provenance.
func SubjectForType(prefix string, e event.Event) (string, error) {
	switch ev := e.(type) {
	case *event.System:
		return SystemSubject(prefix, ev.StageID()), nil
	case *event.TTL:
		p := ev.Info().Provenance()
		return EventSubject(prefix, p.StageID, p.SubStream), nil
	case *event.Text:
		p := ev.Info().Provenance()
		return EventSubject(prefix, p.StageID, p.SubStream), nil
	case *event.Binary:
		p := ev.Info().Provenance()
		return EventSubject(prefix, p.StageID, p.SubStream), nil
	case *event.Spike:
		p := ev.Info().Provenance()
		return EventSubject(prefix, p.StageID, p.SubStream), nil
	default:
		return "", errors.WrapInvalid(errors.ErrInvalidData, "Subject", "SubjectForType",
			fmt.Sprintf("no subject mapping for event type %s", e.Type()))
	}
}

// EventWildcard matches the stage-produced packets of every stage under
// prefix.
func EventWildcard(prefix string) string {
	return prefix + ".events.>"
}

// StageWildcard matches the stage-produced packets of a single stage across
// all of its sub-streams.
func StageWildcard(prefix string, stageID uint16) string {
	return fmt.Sprintf("%s.events.%d.*", prefix, stageID)
}

// SystemWildcard matches the system packets of every stage under prefix.
func SystemWildcard(prefix string) string {
	return prefix + ".system.>"
}

// Wildcard matches every packet under prefix.
func Wildcard(prefix string) string {
	return prefix + ".>"
}
