package dbmo

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// memberSet describes how a struct type exposes named values. Lookup keys are lower-cased.
// Fields are matched by db / column tag or by field name, then accessor methods:
// getters Name() or GetName(), setters SetName(v).
type memberSet struct {
	typ     reflect.Type
	fields  map[string][]int
	getters map[string]int // method index on the pointer type
	setters map[string]int
}

// 成员描述按类型缓存，结构体定义在运行时不会改变
var memberCache sync.Map // reflect.Type -> *memberSet

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func membersOf(t reflect.Type) *memberSet {
	if cached, ok := memberCache.Load(t); ok {
		return cached.(*memberSet)
	}
	ms := &memberSet{
		typ:     t,
		fields:  make(map[string][]int),
		getters: make(map[string]int),
		setters: make(map[string]int),
	}
	ms.collectFields(t, nil)
	ms.collectMethods(reflect.PointerTo(t))
	actual, _ := memberCache.LoadOrStore(t, ms)
	return actual.(*memberSet)
}

type fieldEntry struct {
	index []int
	tag   string
	name  string
}

// collectFields registers tags first, then field names. Outer fields shadow embedded ones.
func (ms *memberSet) collectFields(t reflect.Type, parent []int) {
	var entries []fieldEntry
	queue := []fieldEntry{{index: parent}}
	types := []reflect.Type{t}
	for len(queue) > 0 {
		cur, ct := queue[0], types[0]
		queue, types = queue[1:], types[1:]
		for i := 0; i < ct.NumField(); i++ {
			f := ct.Field(i)
			index := append(append([]int(nil), cur.index...), i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				queue = append(queue, fieldEntry{index: index})
				types = append(types, f.Type)
				continue
			}
			if !f.IsExported() {
				continue
			}
			tag := f.Tag.Get("db")
			if tag == "" {
				tag = f.Tag.Get("column")
			}
			if idx := strings.IndexByte(tag, ','); idx >= 0 {
				tag = tag[:idx]
			}
			if tag == "-" {
				continue
			}
			entries = append(entries, fieldEntry{index: index, tag: strings.ToLower(tag), name: strings.ToLower(f.Name)})
		}
	}
	for _, e := range entries {
		if _, ok := ms.fields[e.tag]; e.tag != "" && !ok {
			ms.fields[e.tag] = e.index
		}
	}
	for _, e := range entries {
		if _, ok := ms.fields[e.name]; !ok {
			ms.fields[e.name] = e.index
		}
	}
}

func (ms *memberSet) collectMethods(pt reflect.Type) {
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		in, out := m.Type.NumIn()-1, m.Type.NumOut() // receiver excluded
		switch {
		case strings.HasPrefix(m.Name, "Set") && len(m.Name) > 3 && in == 1 &&
			(out == 0 || out == 1 && m.Type.Out(0) == errorType):
			ms.setters[strings.ToLower(m.Name[3:])] = i
		case in == 0 && out == 1 && m.Type.Out(0) != errorType:
			key := strings.ToLower(m.Name)
			if strings.HasPrefix(m.Name, "Get") && len(m.Name) > 3 {
				key = strings.ToLower(m.Name[3:])
			}
			// GetName() wins over Name()
			if _, ok := ms.getters[key]; !ok || strings.HasPrefix(m.Name, "Get") {
				ms.getters[key] = i
			}
		}
	}
}

// addressable returns a pointer-backed value of the struct held by v, copying when needed so
// pointer-receiver methods are callable. ok is false for nil or non-struct input.
func addressable(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		if rv.Elem().Kind() != reflect.Ptr {
			break
		}
		rv = rv.Elem()
	}
	switch {
	case rv.Kind() == reflect.Ptr && rv.Elem().Kind() == reflect.Struct:
		return rv.Elem(), true
	case rv.Kind() == reflect.Struct:
		cp := reflect.New(rv.Type())
		cp.Elem().Set(rv)
		return cp.Elem(), true
	}
	return reflect.Value{}, false
}

// get reads member name from the addressable struct value sv.
func (ms *memberSet) get(sv reflect.Value, name string) (any, bool) {
	key := strings.ToLower(name)
	if index, ok := ms.fields[key]; ok {
		return sv.FieldByIndex(index).Interface(), true
	}
	if mi, ok := ms.getters[key]; ok {
		return sv.Addr().Method(mi).Call(nil)[0].Interface(), true
	}
	return nil, false
}

// set writes value into member name of sv. found is false when the type has no such member.
func (ms *memberSet) set(sv reflect.Value, name string, value any) (found bool, err error) {
	key := strings.ToLower(name)
	if index, ok := ms.fields[key]; ok {
		if err := setFieldValue(sv.FieldByIndex(index), value); err != nil {
			return true, fmt.Errorf("member %s.%s: %w", ms.typ.Name(), name, err)
		}
		return true, nil
	}
	mi, ok := ms.setters[key]
	if !ok {
		return false, nil
	}
	method := sv.Addr().Method(mi)
	arg := reflect.New(method.Type().In(0)).Elem()
	if err := setFieldValue(arg, value); err != nil {
		return true, fmt.Errorf("member %s.%s: %w", ms.typ.Name(), name, err)
	}
	if out := method.Call([]reflect.Value{arg}); len(out) == 1 && !out[0].IsNil() {
		return true, fmt.Errorf("%w: member %s.%s: %v", ErrConversion, ms.typ.Name(), name, out[0].Interface())
	}
	return true, nil
}
