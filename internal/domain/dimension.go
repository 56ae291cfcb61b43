package domain

// TimeDataTypes are the column data types treated as time axes.
var TimeDataTypes = []string{
	"Date",
	"DateTime",
	"Timestamp",
	"TimestampSecond",
	"TimestampMillisecond",
	"TimestampMicrosecond",
	"TimestampNanosecond",
}

// IsTimeDataType reports whether dataType names a time column.
func IsTimeDataType(dataType string) bool {
	for _, t := range TimeDataTypes {
		if t == dataType {
			return true
		}
	}
	return false
}

// DeriveDimensions builds one dimension per column, in column order, and
// picks the first time-typed column as the x axis. XName stays empty when no
// column has a time type.
func DeriveDimensions(columns []SchemaColumn) DimensionsAndXName {
	dims := make([]Dimension, 0, len(columns))
	xName := ""
	found := false
	for _, col := range columns {
		if !found && IsTimeDataType(col.DataType) {
			found = true
			xName = col.Name
		}
		dims = append(dims, Dimension{Name: col.Name})
	}
	return DimensionsAndXName{Dimensions: dims, XName: xName}
}

// EmptyDimensions is used for record sets without rows.
func EmptyDimensions() DimensionsAndXName {
	return DimensionsAndXName{Dimensions: []Dimension{}, XName: ""}
}
