package pipeline

import "github.com/google/uuid"

// VideoID and ProcessingID are opaque, globally unique identifiers rendered
// as canonical 128-bit UUID strings. Both are thin wrappers over
// github.com/google/uuid so equality/hashing follow value semantics.

type VideoID uuid.UUID

func NewVideoID() VideoID { return VideoID(uuid.New()) }

func (v VideoID) String() string { return uuid.UUID(v).String() }

func (v VideoID) IsNil() bool { return uuid.UUID(v) == uuid.Nil }

func ParseVideoID(s string) (VideoID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return VideoID{}, err
	}
	return VideoID(id), nil
}

type ProcessingID uuid.UUID

func NewProcessingID() ProcessingID { return ProcessingID(uuid.New()) }

func (p ProcessingID) String() string { return uuid.UUID(p).String() }

func (p ProcessingID) IsNil() bool { return uuid.UUID(p) == uuid.Nil }

func ParseProcessingID(s string) (ProcessingID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ProcessingID{}, err
	}
	return ProcessingID(id), nil
}
