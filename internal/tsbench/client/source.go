package client

import (
	"sync"

	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

// BatchSource yields the batches written by one INGEST operation.
type BatchSource interface {
	NextBatches() ([]*workload.Batch, error)
}

// activeDevices keeps the devices below the real insert floor.
func activeDevices(devices []*schema.DeviceSchema, floor int) []*schema.DeviceSchema {
	var active []*schema.DeviceSchema
	for _, device := range devices {
		if device.DeviceID < floor {
			active = append(active, device)
		}
	}
	return active
}

// BoundSource serves a client bound to its own devices: every INGEST operation writes one batch per owned active
// device, then advances the client's insert loop index.
type BoundSource struct {
	generator *workload.Generator
	devices   []*schema.DeviceSchema
	loopIndex int64
}

func NewBoundSource(generator *workload.Generator, owned []*schema.DeviceSchema, activeFloor int) *BoundSource {
	return &BoundSource{generator: generator, devices: activeDevices(owned, activeFloor)}
}

func (s *BoundSource) NextBatches() ([]*workload.Batch, error) {
	batches := make([]*workload.Batch, 0, len(s.devices))
	for _, device := range s.devices {
		batch, err := s.generator.NextIngestBatch(device, s.loopIndex)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	s.loopIndex++
	return batches, nil
}

// SharedSource is shared by all unbound clients. Each call hands out the next (device, loop) pair round-robin
// over the active devices, so every device advances one loop before any device advances two.
type SharedSource struct {
	mu        sync.Mutex
	generator *workload.Generator
	devices   []*schema.DeviceSchema
	next      int
	loopIndex int64
}

func NewSharedSource(generator *workload.Generator, devices []*schema.DeviceSchema, activeFloor int) *SharedSource {
	return &SharedSource{generator: generator, devices: activeDevices(devices, activeFloor)}
}

func (s *SharedSource) NextBatches() ([]*workload.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.devices) == 0 {
		return nil, nil
	}
	batch, err := s.generator.NextIngestBatch(s.devices[s.next], s.loopIndex)
	if err != nil {
		return nil, err
	}
	s.next++
	if s.next == len(s.devices) {
		s.next = 0
		s.loopIndex++
	}
	return []*workload.Batch{batch}, nil
}
