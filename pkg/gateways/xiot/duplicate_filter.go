package xiot

import (
	"fmt"
	"sync"

	bloomFilter "github.com/bits-and-blooms/bloom/v3"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
)

// measurementFilter reports readings that were already stored. Brokers deliver
// at least once, so a redelivered batch would otherwise append its readings twice.
type measurementFilter interface {
	seen(board, address, timestamp string) bool
}

type noDuplicateFilter struct{}

func (noDuplicateFilter) seen(string, string, string) bool { return false }

// duplicateFilter keeps one bloom filter per board and clears it once its
// approximate fill reaches maximumPercentageFilterUsage.
type duplicateFilter struct {
	mu                           sync.Mutex
	filters                      map[string]*bloomFilter.BloomFilter
	filterCapacity               uint
	duplicationProbability       float64
	maximumPercentageFilterUsage float32
}

func newMeasurementFilter(conf entities.IngestConfig) measurementFilter {
	if !conf.DuplicateFilter {
		return noDuplicateFilter{}
	}
	return &duplicateFilter{
		filters:                      map[string]*bloomFilter.BloomFilter{},
		filterCapacity:               conf.FilterCapacity,
		duplicationProbability:       conf.DuplicateProbability,
		maximumPercentageFilterUsage: conf.ResetFilterUsage,
	}
}

// seen tests and records the reading in one step. Readings without a
// timestamp cannot be told apart and are never reported as seen.
func (d *duplicateFilter) seen(board, address, timestamp string) bool {
	if timestamp == "" {
		return false
	}
	key := []byte(fmt.Sprintf("%s_%s", timestamp, address))

	d.mu.Lock()
	defer d.mu.Unlock()
	filter, ok := d.filters[board]
	if !ok {
		filter = bloomFilter.NewWithEstimates(d.filterCapacity, d.duplicationProbability)
		d.filters[board] = filter
	}
	if filter.Test(key) {
		return true
	}
	d.resetDuplicationFilter(filter)
	filter.Add(key)
	return false
}

func (d *duplicateFilter) resetDuplicationFilter(filter *bloomFilter.BloomFilter) {
	approximatedFilterSize := filter.ApproximatedSize()
	filterCapacity := filter.Cap()
	currentPercentageFilterUsage := (float32(approximatedFilterSize) / float32(filterCapacity)) * 100
	if currentPercentageFilterUsage >= d.maximumPercentageFilterUsage {
		filter.ClearAll()
	}
}
