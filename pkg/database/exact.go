package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ExactString is a string column compared byte for byte. MySQL and SQL Server
// default to case-insensitive collations, so there the column is declared
// with a binary one. Both still ignore trailing spaces in `=` and `IN`;
// callers that need exact matches recheck rows with ==.
type ExactString string

// GormDataType implements schema.GormDataTypeInterface.
func (ExactString) GormDataType() string {
	return string(schema.String)
}

// GormDBDataType implements migrator.GormDataTypeInterface. Other dialects
// use their default string type.
func (ExactString) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	size := field.Size
	if size <= 0 {
		size = 255
	}
	switch db.Dialector.Name() {
	case "mysql":
		return fmt.Sprintf("varchar(%d) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin", size)
	case "sqlserver":
		return fmt.Sprintf("nvarchar(%d) COLLATE Latin1_General_100_BIN2", size)
	default:
		return ""
	}
}
