package dbmo

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// convertStruct 类型转换函数命名空间
type convertStruct struct{}

// Convert is the value conversion utility used when result columns are assigned to typed
// members. Every ToXxxWithError returns an error for impossible conversions; ToXxx falls back
// to the optional default.
var Convert = convertStruct{}

// derefPointer 解引用指针，nil 指针返回 nil
func derefPointer(a any) any {
	if a == nil {
		return nil
	}
	v := reflect.ValueOf(a)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.CanInterface() {
		return v.Interface()
	}
	return nil
}

// unwrapValue resolves pointers and driver.Valuer wrappers (sql.NullString ...) to a plain value.
func unwrapValue(a any) any {
	a = derefPointer(a)
	if dv, ok := a.(driver.Valuer); ok {
		if v, err := dv.Value(); err == nil {
			return v
		}
	}
	return a
}

func withDefault[T any](v T, err error, def []T) T {
	if err != nil {
		var zero T
		if len(def) > 0 {
			return def[0]
		}
		return zero
	}
	return v
}

// ToBoolWithError 支持 1/0, t/f, true/false, yes/no, on/off（大小写不敏感）
func (convertStruct) ToBoolWithError(a any) (bool, error) {
	switch v := unwrapValue(a).(type) {
	case nil:
		return false, fmt.Errorf("cannot convert nil to bool")
	case bool:
		return v, nil
	case int, int8, int16, int32, int64:
		return reflect.ValueOf(v).Int() != 0, nil
	case uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(v).Uint() != 0, nil
	case float32, float64:
		return reflect.ValueOf(v).Float() != 0, nil
	case []byte:
		return Convert.ToBoolWithError(string(v))
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, nil
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "on":
			return true, nil
		case "no", "off":
			return false, nil
		}
		return false, fmt.Errorf("cannot parse %q as bool", v)
	default:
		return false, fmt.Errorf("cannot convert %T to bool", a)
	}
}

func (convertStruct) ToBool(a any, defaultValue ...bool) bool {
	v, err := Convert.ToBoolWithError(a)
	return withDefault(v, err, defaultValue)
}

// ToInt64WithError 将任意类型转换为 int64
func (convertStruct) ToInt64WithError(a any) (int64, error) {
	switch v := unwrapValue(a).(type) {
	case nil:
		return 0, fmt.Errorf("cannot convert nil to int64")
	case int, int8, int16, int32, int64:
		return reflect.ValueOf(v).Int(), nil
	case uint, uint8, uint16, uint32, uint64:
		return int64(reflect.ValueOf(v).Uint()), nil
	case float32, float64:
		return int64(reflect.ValueOf(v).Float()), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", a)
	}
}

func (convertStruct) ToInt64(a any, defaultValue ...int64) int64 {
	v, err := Convert.ToInt64WithError(a)
	return withDefault(v, err, defaultValue)
}

func (convertStruct) ToIntWithError(a any) (int, error) {
	v, err := Convert.ToInt64WithError(a)
	return int(v), err
}

func (convertStruct) ToInt(a any, defaultValue ...int) int {
	v, err := Convert.ToIntWithError(a)
	return withDefault(v, err, defaultValue)
}

// ToUint64WithError 将任意类型转换为 uint64，负数返回错误
func (convertStruct) ToUint64WithError(a any) (uint64, error) {
	switch v := unwrapValue(a).(type) {
	case nil:
		return 0, fmt.Errorf("cannot convert nil to uint64")
	case uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(v).Uint(), nil
	case int, int8, int16, int32, int64:
		n := reflect.ValueOf(v).Int()
		if n < 0 {
			return 0, fmt.Errorf("cannot convert negative value %d to uint64", n)
		}
		return uint64(n), nil
	case float32, float64:
		f := reflect.ValueOf(v).Float()
		if f < 0 {
			return 0, fmt.Errorf("cannot convert negative value %v to uint64", f)
		}
		return uint64(f), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseUint(strings.TrimSpace(string(v)), 10, 64)
	case string:
		return strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to uint64", a)
	}
}

func (convertStruct) ToUint64(a any, defaultValue ...uint64) uint64 {
	v, err := Convert.ToUint64WithError(a)
	return withDefault(v, err, defaultValue)
}

// ToFloat64WithError 将任意类型转换为 float64
func (convertStruct) ToFloat64WithError(a any) (float64, error) {
	switch v := unwrapValue(a).(type) {
	case nil:
		return 0, fmt.Errorf("cannot convert nil to float64")
	case float32, float64:
		return reflect.ValueOf(v).Float(), nil
	case int, int8, int16, int32, int64:
		return float64(reflect.ValueOf(v).Int()), nil
	case uint, uint8, uint16, uint32, uint64:
		return float64(reflect.ValueOf(v).Uint()), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", a)
	}
}

func (convertStruct) ToFloat64(a any, defaultValue ...float64) float64 {
	v, err := Convert.ToFloat64WithError(a)
	return withDefault(v, err, defaultValue)
}

// ToStringWithError 将任意类型转换为 string，nil 返回空串
func (convertStruct) ToStringWithError(a any) (string, error) {
	switch v := unwrapValue(a).(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format("2006-01-02 15:04:05.999999999"), nil
	default:
		bs, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("cannot convert %T to string: %w", a, err)
		}
		return string(bs), nil
	}
}

func (convertStruct) ToString(a any, defaultValue ...string) string {
	v, err := Convert.ToStringWithError(a)
	return withDefault(v, err, defaultValue)
}

// ToDurationWithError 整数按纳秒处理，字符串按 time.ParseDuration 解析
func (convertStruct) ToDurationWithError(a any) (time.Duration, error) {
	switch v := unwrapValue(a).(type) {
	case nil:
		return 0, fmt.Errorf("cannot convert nil to time.Duration")
	case time.Duration:
		return v, nil
	case int, int8, int16, int32, int64:
		return time.Duration(reflect.ValueOf(v).Int()), nil
	case uint, uint8, uint16, uint32, uint64:
		return time.Duration(reflect.ValueOf(v).Uint()), nil
	case string:
		return time.ParseDuration(v)
	default:
		return 0, fmt.Errorf("cannot convert %T to time.Duration", a)
	}
}

func (convertStruct) ToDuration(a any, defaultValue ...time.Duration) time.Duration {
	v, err := Convert.ToDurationWithError(a)
	return withDefault(v, err, defaultValue)
}

// timeLayouts are tried in order for textual timestamps returned by drivers such as SQLite.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST", // time.Time.String, as written by modernc sqlite
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"20060102",
	"15:04:05",
	"2006年01月02日 15:04:05",
	"2006年01月02日",
	time.RFC1123Z,
	time.RFC1123,
}

// ToTimeWithError 字符串按常见布局解析，整数按 Unix 秒处理
func (convertStruct) ToTimeWithError(a any) (time.Time, error) {
	switch v := unwrapValue(a).(type) {
	case nil:
		return time.Time{}, fmt.Errorf("cannot convert nil to time.Time")
	case time.Time:
		return v, nil
	case int64:
		return time.Unix(v, 0), nil
	case int:
		return time.Unix(int64(v), 0), nil
	case int32:
		return time.Unix(int64(v), 0), nil
	case []byte:
		return Convert.ToTimeWithError(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, nil
		}
		// 去掉 time.Now().String() 带出的单调时钟读数
		if i := strings.Index(s, " m="); i > 0 {
			s = s[:i]
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse string %q to time.Time", v)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", a)
	}
}

func (convertStruct) ToTime(a any, defaultValue ...time.Time) time.Time {
	v, err := Convert.ToTimeWithError(a)
	return withDefault(v, err, defaultValue)
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// setFieldValue assigns value to field, converting through Convert when the types differ.
// A nil value (SQL NULL) sets the zero value of the field. Errors wrap ErrConversion.
func setFieldValue(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	// sql.NullString, custom scanners ...
	if field.CanAddr() && field.Addr().Type().Implements(scannerType) {
		if err := field.Addr().Interface().(sql.Scanner).Scan(value); err != nil {
			return fmt.Errorf("%w: %v", ErrConversion, err)
		}
		return nil
	}

	v := reflect.ValueOf(value)
	if field.Kind() == reflect.Ptr {
		if v.Kind() == reflect.Ptr && v.IsNil() {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return setFieldValue(field.Elem(), value)
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		v = v.Elem()
		value = v.Interface()
	}
	if v.Type().AssignableTo(field.Type()) {
		field.Set(v)
		return nil
	}

	var err error
	switch field.Kind() {
	case reflect.String:
		var s string
		if s, err = Convert.ToStringWithError(value); err == nil {
			field.SetString(s)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			var d time.Duration
			if d, err = Convert.ToDurationWithError(value); err == nil {
				field.SetInt(int64(d))
			}
			break
		}
		var n int64
		if n, err = Convert.ToInt64WithError(value); err == nil {
			if field.OverflowInt(n) {
				err = fmt.Errorf("value %d overflows %s", n, field.Type())
			} else {
				field.SetInt(n)
			}
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		if n, err = Convert.ToUint64WithError(value); err == nil {
			if field.OverflowUint(n) {
				err = fmt.Errorf("value %d overflows %s", n, field.Type())
			} else {
				field.SetUint(n)
			}
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if f, err = Convert.ToFloat64WithError(value); err == nil {
			field.SetFloat(f)
		}
	case reflect.Bool:
		var b bool
		if b, err = Convert.ToBoolWithError(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.Uint8 {
			if s, ok := value.(string); ok {
				field.SetBytes([]byte(s))
				break
			}
		}
		err = fmt.Errorf("cannot convert %T to %s", value, field.Type())
	case reflect.Interface:
		if v.Type().Implements(field.Type()) {
			field.Set(v)
			break
		}
		err = fmt.Errorf("cannot convert %T to %s", value, field.Type())
	default:
		if field.Type() == timeType {
			var t time.Time
			if t, err = Convert.ToTimeWithError(value); err == nil {
				field.Set(reflect.ValueOf(t))
			}
			break
		}
		if v.Type().ConvertibleTo(field.Type()) {
			field.Set(v.Convert(field.Type()))
			break
		}
		err = fmt.Errorf("cannot convert %T to %s", value, field.Type())
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return nil
}
