package types

type ColumnDef struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

type TableSchema struct {
	TableName string      `json:"table_name"`
	Columns   []ColumnDef `json:"columns"`
}
