package domain

// SchemaColumn describes one column of a tabular result.
type SchemaColumn struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// Schema wraps the column list the backend returns with each record set.
type Schema struct {
	ColumnSchemas []SchemaColumn `json:"column_schemas"`
}

// RecordsOutput is a tabular response item.
type RecordsOutput struct {
	Schema Schema  `json:"schema"`
	Rows   [][]any `json:"rows"`
}

// RowCount returns the number of rows carried by the output.
func (r RecordsOutput) RowCount() int {
	return len(r.Rows)
}

// ColumnNames lists column names in schema order.
func (r RecordsOutput) ColumnNames() []string {
	names := make([]string, 0, len(r.Schema.ColumnSchemas))
	for _, col := range r.Schema.ColumnSchemas {
		names = append(names, col.Name)
	}
	return names
}

// Output is one item of an execution response: either a record set or an
// affected-rows count. Exactly one field is non-nil on a well-formed item.
type Output struct {
	Records      *RecordsOutput `json:"records,omitempty"`
	AffectedRows *int           `json:"affectedrows,omitempty"`
}

// ExecutionResponse is the success envelope returned by the backend.
type ExecutionResponse struct {
	Code            int      `json:"code"`
	Output          []Output `json:"output"`
	ExecutionTimeMS int64    `json:"execution_time_ms"`
}

// Dimension is the minimal chart-axis descriptor for one column.
type Dimension struct {
	Name string `json:"name"`
}

// DimensionsAndXName pairs the dimension list with the chosen x-axis column.
type DimensionsAndXName struct {
	Dimensions []Dimension `json:"dimensions"`
	XName      string      `json:"xName"`
}

// ResultRecord is a tabular result held by the result store.
type ResultRecord struct {
	Key                int                `json:"key"`
	Type               QueryKind          `json:"type"`
	Records            RecordsOutput      `json:"records"`
	DimensionsAndXName DimensionsAndXName `json:"dimensionsAndXName"`
}
