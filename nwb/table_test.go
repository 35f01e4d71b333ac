package nwb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-nwbconv/array"
)

func TestTable(t *testing.T) {
	root := Empty().Root()
	units, err := NewTable(root, "units", "Units", "sorted units")
	require.NoError(t, err)
	assert.Equal(t, 0, units.Rows())

	require.NoError(t, AddRaggedColumn(units, "spike_times", "spike times in seconds", [][]float64{
		{0.1, 0.2}, {}, {1.5},
	}))
	assert.Equal(t, 3, units.Rows())
	require.NoError(t, units.AddColumn("quality", "curation label", array.FromSlice([]string{"good", "mua", "good"})))
	assert.Equal(t, []string{"spike_times", "quality"}, units.ColumnNames())

	err = units.AddColumn("depth", "", array.FromSlice([]float64{1, 2}))
	assert.Error(t, err, "row count mismatch")
	assert.ErrorIs(t, AddRaggedColumn(units, "spike_times", "", [][]float64{{}, {}, {}}), ErrExists)

	row, err := RaggedRow[float64](units, "spike_times", 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, row)
	row, err = RaggedRow[float64](units, "spike_times", 1)
	require.NoError(t, err)
	assert.Empty(t, row)
	row, err = RaggedRow[float64](units, "spike_times", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, row)
	_, err = RaggedRow[float64](units, "spike_times", 3)
	assert.Error(t, err)

	index, err := units.Dataset("spike_times_index")
	require.NoError(t, err)
	assert.Equal(t, "VectorIndex", index.NeurodataType())
	assert.Equal(t, "/units/spike_times", index.Attrs().String("target"))

	ids, err := units.Column("id")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, ids.Data())

	view, err := AsTable(units.Group)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Rows())
	_, err = AsTable(root)
	assert.Error(t, err)
}

func TestTableRegion(t *testing.T) {
	root := Empty().Root()
	electrodes, err := NewTable(root, "electrodes", "DynamicTable", "metadata about extracellular electrodes")
	require.NoError(t, err)
	require.NoError(t, electrodes.AddColumn("location", "brain area", array.FromSlice([]string{"CA1", "CA1", "CA3"})))

	series, err := root.CreateGroup("series")
	require.NoError(t, err)
	region, err := electrodes.AddRegion(series, "electrodes", "channels", []int64{0, 2})
	require.NoError(t, err)
	assert.Equal(t, "DynamicTableRegion", region.NeurodataType())
	assert.Equal(t, "/electrodes", region.Attrs().String("table"))

	_, err = electrodes.AddRegion(series, "bad", "", []int64{3})
	assert.Error(t, err)
}
