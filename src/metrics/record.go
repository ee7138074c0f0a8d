package metrics

import (
	"fmt"

	"github.com/p2pbackup/transferviz/src/logging"
)

// Transfer is one completed transfer between two nodes.
type Transfer struct {
	Time       float64 // completion time, seconds since simulation start
	Type       string
	Duration   float64 // seconds
	Uploader   string
	Downloader string
}

// Metadata holds the required per-run scalars.
type Metadata struct {
	ParallelEnabled   bool
	TotalNodes        int
	SimulationEndTime float64 // seconds
	DataLossEvents    int
	NodesWithDataLoss int
}

// Record is the reconstructed simulation run: scalar metadata, the transfer
// completion log, and a lazy handle to the large sample series. It is
// read-only after Load.
type Record struct {
	Meta      Metadata
	Transfers []Transfer

	// Raw gives on-demand access to the optional sample series (sim_* and
	// bw_* arrays) without copying them out of the container.
	Raw SeriesSource

	store *Store
}

var requiredMetadata = []string{
	"metadata_parallel_enabled",
	"metadata_total_nodes",
	"metadata_simulation_end_time",
	"metadata_data_loss_events",
	"metadata_nodes_with_data_loss",
}

var transferColumns = []string{
	"transfer_times",
	"transfer_types",
	"transfer_durations",
	"uploaders",
	"downloaders",
}

// Load opens the container at path (extension optional) and reconstructs the
// run record. The transfer columns are optional as a group; the big sample
// series stay in the container behind Record.Raw.
func Load(path string) (*Record, error) {
	st, err := Open(path)
	if err != nil {
		return nil, err
	}
	rec, err := build(st)
	if err != nil {
		st.Close()
		return nil, err
	}
	rec.store = st
	return rec, nil
}

func build(st *Store) (*Record, error) {
	logging.Debugf("container entries: %v", st.Keys())

	vals := make(map[string]float64, len(requiredMetadata))
	for _, name := range requiredMetadata {
		if !st.Has(name) {
			return nil, fmt.Errorf("metrics container missing required field %q", name)
		}
		v, err := st.Floats(name)
		if err != nil {
			return nil, err
		}
		if len(v) == 0 {
			return nil, fmt.Errorf("required field %q is empty", name)
		}
		vals[name] = v[0]
	}

	rec := &Record{
		Meta: Metadata{
			ParallelEnabled:   vals["metadata_parallel_enabled"] != 0,
			TotalNodes:        int(vals["metadata_total_nodes"]),
			SimulationEndTime: vals["metadata_simulation_end_time"],
			DataLossEvents:    int(vals["metadata_data_loss_events"]),
			NodesWithDataLoss: int(vals["metadata_nodes_with_data_loss"]),
		},
		Raw: st,
	}

	transfers, err := loadTransfers(st)
	if err != nil {
		return nil, err
	}
	rec.Transfers = transfers
	return rec, nil
}

func loadTransfers(st *Store) ([]Transfer, error) {
	for _, name := range transferColumns {
		if !st.Has(name) {
			// absent as a group is a valid empty run
			return nil, nil
		}
	}
	times, err := st.Floats("transfer_times")
	if err != nil {
		return nil, err
	}
	types, err := st.Strings("transfer_types")
	if err != nil {
		return nil, err
	}
	durations, err := st.Floats("transfer_durations")
	if err != nil {
		return nil, err
	}
	uploaders, err := st.Strings("uploaders")
	if err != nil {
		return nil, err
	}
	downloaders, err := st.Strings("downloaders")
	if err != nil {
		return nil, err
	}

	n := len(times)
	for _, m := range []int{len(types), len(durations), len(uploaders), len(downloaders)} {
		if m < n {
			n = m
		}
	}
	transfers := make([]Transfer, n)
	for i := 0; i < n; i++ {
		transfers[i] = Transfer{
			Time:       times[i],
			Type:       types[i],
			Duration:   durations[i],
			Uploader:   uploaders[i],
			Downloader: downloaders[i],
		}
	}
	return transfers, nil
}

// Close releases the underlying container.
func (r *Record) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
