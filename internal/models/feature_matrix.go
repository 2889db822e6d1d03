package models

import (
	"fmt"
	"time"
)

// FeatureMatrix holds the base series columns plus appended feature columns,
// aligned row-for-row with the series index. Column order is preserved in
// insertion order.
type FeatureMatrix struct {
	Index   []time.Time          `json:"index"`
	Columns []string             `json:"columns"`
	Data    map[string][]float64 `json:"data"`
}

// NewFeatureMatrix creates an empty matrix over the given index.
func NewFeatureMatrix(index []time.Time) *FeatureMatrix {
	return &FeatureMatrix{
		Index:   index,
		Columns: make([]string, 0),
		Data:    make(map[string][]float64),
	}
}

// AddColumn appends a named column. The column must match the index length;
// adding an existing name replaces the values but keeps the original position.
func (m *FeatureMatrix) AddColumn(name string, values []float64) error {
	if len(values) != len(m.Index) {
		return fmt.Errorf("column %s has %d rows, matrix has %d", name, len(values), len(m.Index))
	}
	if _, exists := m.Data[name]; !exists {
		m.Columns = append(m.Columns, name)
	}
	m.Data[name] = values
	return nil
}

// Column returns the values for a named column, or nil if absent.
func (m *FeatureMatrix) Column(name string) []float64 {
	return m.Data[name]
}

// Rows returns the number of rows in the matrix.
func (m *FeatureMatrix) Rows() int {
	return len(m.Index)
}
