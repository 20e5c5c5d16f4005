package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const snapshotVersion = 1

type snapshot struct {
	Version uint          `cbor:"1,keyasint"`
	Saves   []savedRecord `cbor:"2,keyasint"`
}

type savedRecord struct {
	Name       string            `cbor:"1,keyasint"`
	CreatedAt  time.Time         `cbor:"2,keyasint"`
	ModifiedAt time.Time         `cbor:"3,keyasint"`
	Fragments  map[string][]byte `cbor:"4,keyasint"`
}

// SnapshotCodec turns the whole registry into one CBOR blob and back.
// Encoding is deterministic, so equal registries produce equal blobs, and
// fragments are stored as byte strings without reinterpretation.
type SnapshotCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewSnapshotCodec creates a SnapshotCodec.
func NewSnapshotCodec() *SnapshotCodec {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano

	enc, err := encOpts.EncMode()
	if err != nil {
		panic(err)
	}

	dec, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}

	return &SnapshotCodec{enc: enc, dec: dec}
}

// Encode serializes the records in order.
func (c *SnapshotCodec) Encode(records []*SaveRecord) ([]byte, error) {
	s := snapshot{
		Version: snapshotVersion,
		Saves:   make([]savedRecord, 0, len(records)),
	}

	for _, rec := range records {
		s.Saves = append(s.Saves, savedRecord{
			Name:       rec.Name,
			CreatedAt:  rec.CreatedAt,
			ModifiedAt: rec.ModifiedAt,
			Fragments:  rec.Fragments,
		})
	}

	return c.enc.Marshal(s)
}

// Decode parses a blob produced by Encode.
func (c *SnapshotCodec) Decode(blob []byte) ([]*SaveRecord, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty snapshot")
	}

	var s snapshot

	err := c.dec.Unmarshal(blob, &s)
	if err != nil {
		return nil, err
	}

	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}

	records := make([]*SaveRecord, 0, len(s.Saves))
	names := make(map[string]bool, len(s.Saves))

	for _, saved := range s.Saves {
		if names[saved.Name] {
			return nil, fmt.Errorf("duplicated save %q in snapshot", saved.Name)
		}

		names[saved.Name] = true

		fragments := make(FragmentMap, len(saved.Fragments))
		for k, v := range saved.Fragments {
			fragments[k] = v
		}

		records = append(records, &SaveRecord{
			Name:       saved.Name,
			CreatedAt:  saved.CreatedAt,
			ModifiedAt: saved.ModifiedAt,
			Fragments:  fragments,
		})
	}

	return records, nil
}
