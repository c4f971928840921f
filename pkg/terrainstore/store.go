// Package terrainstore persists terrain patches for a region.
//
// Three backends share the Store interface: MemoryStore for tests and
// single-process use, SQLStore on any database/sql driver, and S3Store
// with one object per patch. Patches are stored in a small binary form
// written with the protocol body encoder.
package terrainstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/simwire/simwire/pkg/protocol"
	"github.com/simwire/simwire/pkg/terrain"
)

var (
	// ErrNotFound is returned by GetPatch for positions never set.
	ErrNotFound = errors.New("terrainstore: patch not found")

	// ErrOutOfRange is returned for patch coordinates outside the grid.
	ErrOutOfRange = errors.New("terrainstore: patch coordinates out of range")

	// ErrCorrupt is returned when stored bytes do not decode to a patch.
	ErrCorrupt = errors.New("terrainstore: corrupt patch record")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("terrainstore: store closed")
)

// Store holds terrain patches by grid position.
type Store interface {
	// GetPatch returns the patch at (x, y) or ErrNotFound.
	GetPatch(ctx context.Context, x, y int) (terrain.Patch, error)

	// SetPatch stores p at (x, y), replacing any earlier patch.
	SetPatch(ctx context.Context, x, y int, p terrain.Patch) error

	// Close releases the store's resources.
	Close() error
}

// recordVersion tags the binary patch layout.
const recordVersion = 1

// recordSize is the encoded size of one patch.
const recordSize = 1 + 2 + 2 + terrain.PatchSize*terrain.PatchSize*8

func checkCoords(x, y int) error {
	if x < 0 || y < 0 || x >= terrain.MaxPatchCoord || y >= terrain.MaxPatchCoord {
		return fmt.Errorf("%w: (%d, %d)", ErrOutOfRange, x, y)
	}
	return nil
}

// encodePatch serializes p at (x, y).
func encodePatch(x, y int, p *terrain.Patch) ([]byte, error) {
	e := protocol.NewEncoder(recordSize)
	e.WriteUint8(recordVersion)
	e.WriteUint16(uint16(x))
	e.WriteUint16(uint16(y))
	for row := range p.Heights {
		for col := range p.Heights[row] {
			e.WriteFloat64(p.Heights[row][col])
		}
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// decodePatch parses a record written by encodePatch.
func decodePatch(data []byte) (terrain.Patch, error) {
	var p terrain.Patch
	if len(data) != recordSize {
		return p, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(data))
	}
	d := protocol.NewDecoder(data)
	version, _ := d.ReadUint8()
	if version != recordVersion {
		return p, fmt.Errorf("%w: version %d", ErrCorrupt, version)
	}
	x, _ := d.ReadUint16()
	y, _ := d.ReadUint16()
	p.X, p.Y = int(x), int(y)
	for row := range p.Heights {
		for col := range p.Heights[row] {
			h, err := d.ReadFloat64()
			if err != nil {
				return p, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			p.Heights[row][col] = h
		}
	}
	return p, nil
}
