package behavior

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/datainterface"
	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "position.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newFile(t *testing.T, iface datainterface.Interface) (*nwb.File, metadata.Metadata) {
	t.Helper()
	md := metadata.Merge(iface.Metadata(), metadata.Metadata{
		metadata.NWBFile: map[string]any{"session_start_time": "2023-03-03T08:00:00Z"},
	})
	f, err := nwb.NewFileFromMetadata(md)
	require.NoError(t, err)
	return f, md
}

func TestPositionAddToNWB(t *testing.T) {
	p, err := NewPosition(map[string]any{
		"file_path": writeCSV(t, "t,x,y,speed\n0.0,1,2,9\n0.5, 1.5, 2.5,9\n1.0,2,3,9\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Samples())

	f, md := newFile(t, p)
	require.NoError(t, p.AddToNWB(context.Background(), f, md, nil))

	ss, err := f.Group("processing/behavior/Position/SpatialSeries")
	require.NoError(t, err)
	assert.Equal(t, "SpatialSeries", ss.NeurodataType())
	pos, err := f.Group("processing/behavior/Position")
	require.NoError(t, err)
	assert.Equal(t, "Position", pos.NeurodataType())

	data, err := ss.Dataset("data")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, data.Array().Shape())
	vals, _ := array.Values[float64](data.Array())
	assert.Equal(t, []float64{1, 2, 1.5, 2.5, 2, 3}, vals)
	assert.Equal(t, "meters", data.Attrs()["unit"])

	ts, err := ss.Dataset("timestamps")
	require.NoError(t, err)
	tv, _ := array.Values[float64](ts.Array())
	assert.Equal(t, []float64{0, 0.5, 1}, tv)

	frame, err := ss.Dataset("reference_frame")
	require.NoError(t, err)
	assert.Equal(t, "unknown", frame.Array().Value())

	assert.Equal(t, []nwb.Location{{Container: "processing/behavior/Position/SpatialSeries", Field: "data"}}, p.Datasets())
}

func TestPositionThreeDimensionsAndStub(t *testing.T) {
	var b strings.Builder
	b.WriteString("time,x,y,z\n")
	for i := 0; i < 150; i++ {
		b.WriteString("1,2,3,4\n")
	}
	p, err := NewPosition(map[string]any{"file_path": writeCSV(t, b.String()), "time_column": "time"})
	require.NoError(t, err)

	f, md := newFile(t, p)
	require.NoError(t, md.SetPath("Behavior.SpatialSeries.name", "head"))
	require.NoError(t, p.AddToNWB(context.Background(), f, md, datainterface.Options{"stub_test": true}))

	d, err := f.Dataset("processing/behavior/Position/head/data")
	require.NoError(t, err)
	assert.Equal(t, []int{StubRows, 3}, d.Array().Shape())
	assert.Equal(t, "processing/behavior/Position/head", p.Datasets()[0].Container)
}

func TestNewPositionRejects(t *testing.T) {
	tests := map[string]string{
		"missing column": "t,x\n0,1\n",
		"bad number":     "t,x,y\n0,1,abc\n",
		"backwards time": "t,x,y\n1,0,0\n0.5,0,0\n",
		"empty":          "t,x,y\n",
		"ragged row":     "t,x,y\n0,1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewPosition(map[string]any{"file_path": writeCSV(t, content)})
			assert.ErrorIs(t, err, datainterface.ErrDataShape)
		})
	}

	_, err := NewPosition(map[string]any{"file_path": filepath.Join(t.TempDir(), "none.csv")})
	assert.ErrorIs(t, err, datainterface.ErrConfiguration)
}
