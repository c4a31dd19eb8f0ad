package pack

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ritzau/modpack/pkg/graph"
	"github.com/ritzau/modpack/pkg/module"
	"github.com/ritzau/modpack/pkg/stream"
)

// ErrCorruptBlob is returned when a blob does not follow the packed layout
var ErrCorruptBlob = errors.New("corrupt module blob")

// Loader reads one module payload of the given type from r
type Loader func(r io.Reader, typeKey string) (module.Module, error)

// Record is one decoded module entry
type Record struct {
	Vertex int64 // vertex id in tree mode, import index in legacy mode
	Module module.Module
}

// Unpacked is the decoded form of a blob
type Unpacked struct {
	Legacy      bool
	NumVertices int64
	Order       []int64
	Records     []Record
}

// Root returns the root record in tree mode, nil otherwise
func (u *Unpacked) Root() module.Module {
	if u.Legacy || len(u.Records) == 0 {
		return nil
	}
	return u.Records[0].Module
}

// Unpack decodes a blob produced by Pack. load reads each payload; it must
// consume exactly the bytes the module wrote with SaveToBinary.
func Unpack(blob []byte, load Loader) (*Unpacked, error) {
	r := stream.NewReader(bytes.NewReader(blob))

	count, err := r.ReadUint64()
	if err != nil {
		return nil, corrupt("header", err)
	}

	u := &Unpacked{}
	if count == 0 {
		u.Legacy = true
		n, err := r.ReadUint64()
		if err != nil {
			return nil, corrupt("import count", err)
		}
		for i := uint64(0); i < n; i++ {
			rec, err := readRecord(r, load, int64(i))
			if err != nil {
				return nil, err
			}
			u.Records = append(u.Records, rec)
		}
	} else {
		ids, err := r.ReadUint64s()
		if err != nil {
			return nil, corrupt("canonical order", err)
		}
		if uint64(len(ids)) != count {
			return nil, fmt.Errorf("%w: order has %d entries for %d vertices", ErrCorruptBlob, len(ids), count)
		}
		u.NumVertices = int64(count)
		seen := make(map[uint64]bool, len(ids))
		for _, id := range ids {
			if id >= count || seen[id] {
				return nil, fmt.Errorf("%w: bad vertex %d in canonical order", ErrCorruptBlob, id)
			}
			seen[id] = true
			u.Order = append(u.Order, int64(id))
		}
		if u.Order[0] != graph.RootID {
			return nil, fmt.Errorf("%w: canonical order starts at %d", ErrCorruptBlob, u.Order[0])
		}
		// Only the collector vertex carries no record
		for _, id := range u.Order {
			if id == graph.CollectorID {
				continue
			}
			rec, err := readRecord(r, load, id)
			if err != nil {
				return nil, err
			}
			u.Records = append(u.Records, rec)
		}
	}

	if _, err := r.Read(make([]byte, 1)); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing bytes after last record", ErrCorruptBlob)
	}
	return u, nil
}

func readRecord(r *stream.Reader, load Loader, vertex int64) (Record, error) {
	typeKey, err := r.ReadString()
	if err != nil {
		return Record{}, corrupt(fmt.Sprintf("type key of record %d", vertex), err)
	}
	m, err := load(r, typeKey)
	if err != nil {
		return Record{}, corrupt(fmt.Sprintf("payload of record %d (%s)", vertex, typeKey), err)
	}
	return Record{Vertex: vertex, Module: m}, nil
}

func corrupt(what string, err error) error {
	return fmt.Errorf("%w: reading %s: %w", ErrCorruptBlob, what, err)
}
