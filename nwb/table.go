package nwb

import (
	"fmt"

	"github.com/robert-malhotra/go-nwbconv/array"
)

// Table is a DynamicTable: a group of equally long column datasets plus
// an id column. Ragged columns store their values flat with a companion
// "<name>_index" column holding the end offset of each row.
type Table struct {
	*Group
}

// NewTable creates an empty table under parent.
func NewTable(parent *Group, name, neurodataType, description string) (*Table, error) {
	g, err := parent.CreateTypedGroup(name, neurodataType)
	if err != nil {
		return nil, err
	}
	g.attrs["description"] = description
	return &Table{Group: g}, nil
}

// AsTable views g as a table. g must have an id column.
func AsTable(g *Group) (*Table, error) {
	if _, err := g.Dataset("id"); err != nil {
		return nil, fmt.Errorf("%s is not a table: %w", g.Path(), err)
	}
	return &Table{Group: g}, nil
}

// Rows returns the number of rows, 0 for a table without ids yet.
func (t *Table) Rows() int {
	d, err := t.Dataset("id")
	if err != nil {
		return 0
	}
	return d.Array().Len()
}

// SetIDs sets the row ids. It fails if the table already has rows.
func (t *Table) SetIDs(ids []int64) error {
	if t.Has("id") {
		return fmt.Errorf("%w: %s/id", ErrExists, t.Path())
	}
	d, err := t.CreateDataset("id", array.FromSlice(ids))
	if err != nil {
		return err
	}
	d.SetType("ElementIdentifiers")
	return nil
}

// ColumnNames returns the column names in the order they were added.
func (t *Table) ColumnNames() []string {
	switch v := t.attrs["colnames"].(type) {
	case []string:
		return append([]string{}, v...)
	case string:
		return []string{v}
	}
	return nil
}

// Column returns the data of the named column.
func (t *Table) Column(name string) (*array.Array, error) {
	d, err := t.Dataset(name)
	if err != nil {
		return nil, err
	}
	return d.Array(), nil
}

// AddColumn adds a column whose first dimension is the row count. The
// first column of a table without ids assigns ids 0..n-1.
func (t *Table) AddColumn(name, description string, data array.Valuer) error {
	a, _ := Unwrap(data)
	if a == nil || a.Rank() == 0 {
		return fmt.Errorf("column %s: data must have at least one dimension", name)
	}
	n := a.Shape()[0]
	if err := t.ensureRows(n); err != nil {
		return fmt.Errorf("column %s: %w", name, err)
	}
	d, err := t.CreateDataset(name, data)
	if err != nil {
		return err
	}
	d.SetType("VectorData")
	d.attrs["description"] = description
	t.attrs["colnames"] = append(t.ColumnNames(), name)
	return nil
}

// AddRaggedColumn adds a column with a variable number of values per row.
func AddRaggedColumn[T array.Element](t *Table, name, description string, rows [][]T) error {
	if err := t.ensureRows(len(rows)); err != nil {
		return fmt.Errorf("column %s: %w", name, err)
	}
	indexName := name + "_index"
	if t.Has(indexName) {
		return fmt.Errorf("%w: %s/%s", ErrExists, t.Path(), indexName)
	}

	var flat []T
	index := make([]uint64, len(rows))
	for i, r := range rows {
		flat = append(flat, r...)
		index[i] = uint64(len(flat))
	}
	if flat == nil {
		flat = []T{}
	}
	d, err := t.CreateDataset(name, array.FromSlice(flat))
	if err != nil {
		return err
	}
	d.SetType("VectorData")
	d.attrs["description"] = description

	idx, err := t.CreateDataset(indexName, array.FromSlice(index))
	if err != nil {
		return err
	}
	idx.SetType("VectorIndex")
	idx.attrs["description"] = "Index for VectorData '" + name + "'"
	idx.attrs["target"] = d.Path()
	t.attrs["colnames"] = append(t.ColumnNames(), name)
	return nil
}

// RaggedRow returns the values of one row of a ragged column.
func RaggedRow[T array.Element](t *Table, name string, row int) ([]T, error) {
	data, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	index, err := t.Column(name + "_index")
	if err != nil {
		return nil, err
	}
	ends, ok := index.Float64s()
	if !ok || row < 0 || row >= len(ends) {
		return nil, fmt.Errorf("row %d out of range for %s", row, name)
	}
	vals, ok := array.Values[T](data)
	if !ok {
		return nil, fmt.Errorf("column %s holds %v", name, data.DType())
	}
	start := 0
	if row > 0 {
		start = int(ends[row-1])
	}
	return vals[start:int(ends[row])], nil
}

// AddRegion adds a DynamicTableRegion dataset to parent that selects rows
// of t.
func (t *Table) AddRegion(parent *Group, name, description string, rows []int64) (*Dataset, error) {
	n := int64(t.Rows())
	for _, r := range rows {
		if r < 0 || r >= n {
			return nil, fmt.Errorf("region %s: row %d out of range [0, %d)", name, r, n)
		}
	}
	d, err := parent.CreateDataset(name, array.FromSlice(rows))
	if err != nil {
		return nil, err
	}
	d.SetType("DynamicTableRegion")
	d.attrs["description"] = description
	d.attrs["table"] = t.Path()
	return d, nil
}

func (t *Table) ensureRows(n int) error {
	if !t.Has("id") {
		ids := make([]int64, n)
		for i := range ids {
			ids[i] = int64(i)
		}
		return t.SetIDs(ids)
	}
	if rows := t.Rows(); rows != n {
		return fmt.Errorf("%d rows, table has %d", n, rows)
	}
	return nil
}
