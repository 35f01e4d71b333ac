package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

func buildFile(t *testing.T, b Backend) *nwb.File {
	t.Helper()
	f, err := nwb.NewFileFromMetadata(metadata.Metadata{
		"NWBFile": map[string]any{
			"session_start_time": "2020-03-01T12:00:00",
			"identifier":         "session-1",
		},
	})
	require.NoError(t, err)

	acq, err := f.Acquisition()
	require.NoError(t, err)
	data := make([]int16, 300*4)
	for i := range data {
		data[i] = int16(i % 97)
	}
	_, err = nwb.AddTimeSeries(acq, nwb.TimeSeries{
		Name: "ElectricalSeries", Type: "ElectricalSeries", Unit: "volts",
		Data: nwb.DataIO{Backend: string(b.Name), Config: b.DefaultConfig(), Data: array.MustNew(data, 300, 4)},
		Rate: 30000, Conversion: 1.95e-7,
	})
	require.NoError(t, err)

	units, err := nwb.NewTable(f.Root(), "units", "Units", "units")
	require.NoError(t, err)
	require.NoError(t, nwb.AddRaggedColumn(units, "spike_times", "times", [][]float64{{0.5, 1}, {2}}))
	return f
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, name := range Names() {
		t.Run(string(name), func(t *testing.T) {
			b, err := Lookup(name)
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), "out."+string(name))

			ok, err := b.Exists(path)
			require.NoError(t, err)
			assert.False(t, ok)

			io, err := b.Open(path, Overwrite)
			require.NoError(t, err)
			require.NoError(t, io.Write(ctx, buildFile(t, b)))
			require.NoError(t, io.Close())

			ok, err = b.Exists(path)
			require.NoError(t, err)
			assert.True(t, ok)

			io, err = b.Open(path, Append)
			require.NoError(t, err)
			defer io.Close()
			f, err := io.Read(ctx)
			require.NoError(t, err)

			assert.Equal(t, "session-1", f.Identifier())
			assert.Equal(t, "NWBFile", f.Root().NeurodataType())

			es, err := f.Group("acquisition/ElectricalSeries")
			require.NoError(t, err)
			assert.Equal(t, "ElectricalSeries", es.NeurodataType())
			data, err := es.Dataset("data")
			require.NoError(t, err)
			assert.Equal(t, []int{300, 4}, data.Array().Shape())
			assert.Equal(t, 1.95e-7, data.Attrs()["conversion"])
			assert.Equal(t, "volts", data.Attrs()["unit"])

			_, dio := nwb.Unwrap(data.Data())
			require.NotNil(t, dio)
			assert.Equal(t, string(name), dio.Backend)
			assert.Equal(t, b.DefaultConfig().Compression, dio.Config.Compression)
			assert.Equal(t, b.DefaultConfig().Level, dio.Config.Level)
			assert.Len(t, dio.Config.Chunks, 2)

			start, err := es.Dataset("starting_time")
			require.NoError(t, err)
			assert.Equal(t, 30000.0, start.Attrs()["rate"])

			units, err := f.Group("units")
			require.NoError(t, err)
			table, err := nwb.AsTable(units)
			require.NoError(t, err)
			assert.Equal(t, []string{"spike_times"}, table.ColumnNames())
			row, err := nwb.RaggedRow[float64](table, "spike_times", 0)
			require.NoError(t, err)
			assert.Equal(t, []float64{0.5, 1}, row)
		})
	}
}

func TestAppendMissingFile(t *testing.T) {
	for _, name := range Names() {
		b, err := Lookup(name)
		require.NoError(t, err)
		_, err = b.Open(filepath.Join(t.TempDir(), "missing"), Append)
		var ioe *IOError
		require.ErrorAs(t, err, &ioe, name)
		assert.Equal(t, name, ioe.Backend)
		assert.Equal(t, "open", ioe.Op)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, nil, 0o644))
	for _, name := range Names() {
		b, err := Lookup(name)
		require.NoError(t, err)

		ok, err := b.Exists(plain)
		require.NoError(t, err, name)
		assert.True(t, ok, name)
		ok, err = b.Exists(filepath.Join(dir, "missing"))
		require.NoError(t, err, name)
		assert.False(t, ok, name)

		_, err = b.Exists(filepath.Join(plain, "child"))
		var ioe *IOError
		require.ErrorAs(t, err, &ioe, name)
		assert.Equal(t, name, ioe.Backend)
		assert.Equal(t, "exists", ioe.Op)
	}
}

func TestReadInOverwriteMode(t *testing.T) {
	b, err := Lookup(HDF5)
	require.NoError(t, err)
	io, err := b.Open(filepath.Join(t.TempDir(), "x.nwb"), Overwrite)
	require.NoError(t, err)
	defer io.Close()
	_, err = io.Read(context.Background())
	assert.Error(t, err)
}

func TestBackendMismatch(t *testing.T) {
	hdf5, err := Lookup(HDF5)
	require.NoError(t, err)
	zarr, err := Lookup(Zarr)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "x.nwb")
	io, err := hdf5.Open(path, Overwrite)
	require.NoError(t, err)
	defer io.Close()
	err = io.Write(context.Background(), buildFile(t, zarr))
	assert.ErrorIs(t, err, ErrUnsupportedConfig)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "a failed write leaves no file")
}

func TestLookup(t *testing.T) {
	b, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, HDF5, b.Name)
	b, err = Lookup("ZARR")
	require.NoError(t, err)
	assert.Equal(t, Zarr, b.Name)
	_, err = Lookup("n5")
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.Equal(t, []Name{HDF5, Zarr}, Names())

	assert.Equal(t, nwb.DatasetConfig{Compression: nwb.Gzip, Level: 4}, mustLookup(t, HDF5).DefaultConfig())
	assert.Equal(t, nwb.DatasetConfig{Compression: nwb.Zstd, Level: 3}, mustLookup(t, Zarr).DefaultConfig())
}

func mustLookup(t *testing.T, n Name) Backend {
	b, err := Lookup(n)
	require.NoError(t, err)
	return b
}
