package dbmo

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// scanRecords reads all rows into records, reusing one scan buffer for every row.
func scanRecords(rows *sql.Rows) ([]*Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	dbTypes := make([]string, len(columns))
	for i, ct := range columnTypes {
		dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var results []*Record
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := newRecordSize(len(columns))
		for i, col := range columns {
			r.setDirect(col, processDBValue(values[i], dbTypes[i]))
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// processDBValue 驱动可能复用 []byte 的底层缓冲区：文本类型转成 string，二进制类型复制一份
func processDBValue(val any, dbType string) any {
	b, ok := val.([]byte)
	if !ok {
		return val
	}
	if isBinaryType(dbType) {
		cp := make([]byte, len(b))
		copy(cp, b)
		return cp
	}
	return string(b)
}

func isBinaryType(dbType string) bool {
	switch {
	case strings.Contains(dbType, "BLOB"), strings.Contains(dbType, "BINARY"),
		dbType == "BYTEA", dbType == "IMAGE", dbType == "RAW", dbType == "LONG RAW":
		return true
	}
	return false
}

// ToStruct fills dest, a pointer to a struct or to a struct pointer, from r. Columns are
// matched to fields by db / column tag or name, then to SetName(v) methods; unmatched columns
// are skipped and NULL leaves the member at its zero value.
func ToStruct(r *Record, dest any) error {
	if r == nil {
		return fmt.Errorf("dbmo: record is nil")
	}
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("dbmo: dest must be a non-nil pointer, got %T", dest)
	}
	sv := rv.Elem()
	if sv.Kind() == reflect.Ptr {
		if sv.IsNil() {
			sv.Set(reflect.New(sv.Type().Elem()))
		}
		sv = sv.Elem()
	}
	if sv.Kind() != reflect.Struct {
		return fmt.Errorf("dbmo: dest must point to a struct, got %T", dest)
	}
	ms := membersOf(sv.Type())
	for _, col := range r.Columns() {
		if _, err := ms.set(sv, col, r.Get(col)); err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
	}
	return nil
}

// ToStructs fills dest, a pointer to a slice of structs or struct pointers, one element per
// record.
func ToStructs(records []*Record, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dbmo: dest must be a pointer to a slice, got %T", dest)
	}
	slice := rv.Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(records))
	elemType := slice.Type().Elem()
	for _, r := range records {
		elem := reflect.New(elemType)
		if err := ToStruct(r, elem.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, elem.Elem())
	}
	slice.Set(out)
	return nil
}

// mapRecords converts records into fresh values of T, a struct or pointer to struct.
func mapRecords[T any](records []*Record) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, r := range records {
		var v T
		if err := ToStruct(r, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
