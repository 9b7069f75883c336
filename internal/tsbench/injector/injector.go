// Package injector degrades ingest batches to emulate poor data quality: single missing points and whole
// missing packets. Injectors are seeded and owned by one worker.
package injector

import (
	"math/rand"

	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

// Injector returns a degraded copy of a batch. The input batch is not modified.
type Injector interface {
	Inject(batch *workload.Batch) *workload.Batch
}

// PointMissing drops each record independently with probability Rate.
type PointMissing struct {
	rate float64
	rand *rand.Rand
}

func NewPointMissing(rate float64, seed int64) *PointMissing {
	return &PointMissing{rate: rate, rand: rand.New(rand.NewSource(seed))}
}

func (p *PointMissing) Inject(batch *workload.Batch) *workload.Batch {
	records := make([]workload.Record, 0, len(batch.Records))
	for _, record := range batch.Records {
		if p.rand.Float64() >= p.rate {
			records = append(records, record)
		}
	}
	return &workload.Batch{Device: batch.Device, Records: records}
}

// PacketMissing splits the batch into consecutive packets of packetSize records and drops each packet with
// probability rate. The last packet may be shorter.
type PacketMissing struct {
	rate       float64
	packetSize int
	rand       *rand.Rand
}

func NewPacketMissing(rate float64, packetSize int, seed int64) *PacketMissing {
	return &PacketMissing{rate: rate, packetSize: max(packetSize, 1), rand: rand.New(rand.NewSource(seed))}
}

func (p *PacketMissing) Inject(batch *workload.Batch) *workload.Batch {
	records := make([]workload.Record, 0, len(batch.Records))
	for start := 0; start < len(batch.Records); start += p.packetSize {
		end := min(start+p.packetSize, len(batch.Records))
		if p.rand.Float64() >= p.rate {
			records = append(records, batch.Records[start:end]...)
		}
	}
	return &workload.Batch{Device: batch.Device, Records: records}
}

type chain []Injector

func (c chain) Inject(batch *workload.Batch) *workload.Batch {
	for _, injector := range c {
		batch = injector.Inject(batch)
	}
	return batch
}

// New returns the injectors enabled by config, seeded for one client, or nil when injection is off. Packets are
// dropped before single points.
func New(config configuration.InjectionConfig, clientID int) Injector {
	seed := config.Seed + int64(clientID)
	var injectors chain
	if config.PacketMissingRate > 0 {
		injectors = append(injectors, NewPacketMissing(config.PacketMissingRate, config.PacketSize, seed))
	}
	if config.PointMissingRate > 0 {
		// offset so the two injectors do not draw the same sequence
		injectors = append(injectors, NewPointMissing(config.PointMissingRate, seed+1))
	}
	if len(injectors) == 0 {
		return nil
	}
	return injectors
}
